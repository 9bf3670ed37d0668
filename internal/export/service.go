package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pdf-filer/internal/entity"
	"github.com/joseph-ayodele/pdf-filer/internal/repository"
)

const (
	DocumentsSheet = "Documents"
	RunsSheet      = "Runs"

	// LatestRunsLimit bounds an export without a run id.
	LatestRunsLimit = 50
)

var documentHeaders = []string{
	"Run",
	"Processed At",
	"Original Filename",
	"Date",
	"Date Source",
	"Sender",
	"Confidence",
	"Stage",
	"Document Type",
	"Label",
	"Folder",
	"Fallback",
	"Final Path",
	"Cache Hit",
	"Dry Run",
	"Error",
}

var runHeaders = []string{
	"Run",
	"Started At",
	"Ended At",
	"Dry Run",
	"Total",
	"Success",
	"Fallback",
	"Failed",
}

// Service turns stored runs and documents into XLSX workbooks.
type Service struct {
	runs   repository.RunRepository
	docs   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(runs repository.RunRepository, docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, docs: docs, logger: logger}
}

// ExportDocumentsXLSX returns a workbook for one run, or for the latest runs when runID is empty.
// An unknown run id yields common.ErrNotFound.
func (s *Service) ExportDocumentsXLSX(ctx context.Context, runID string) ([]byte, error) {
	start := time.Now()

	runs, err := s.selectRuns(ctx, strings.TrimSpace(runID))
	if err != nil {
		return nil, err
	}
	var docs []*entity.Document
	for _, r := range runs {
		ds, err := s.docs.ListByRun(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("list documents of run %s: %w", r.ID, err)
		}
		docs = append(docs, ds...)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", DocumentsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(RunsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if idx, _ := f.GetSheetIndex(DocumentsSheet); idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := writeRows(f, DocumentsSheet, documentHeaders, len(docs), func(i int) []any {
		return documentRow(docs[i])
	}); err != nil {
		return nil, err
	}
	if err := writeRows(f, RunsSheet, runHeaders, len(runs), func(i int) []any {
		return runRow(runs[i])
	}); err != nil {
		return nil, err
	}

	_ = f.SetColWidth(DocumentsSheet, "A", "B", 20)
	_ = f.SetColWidth(DocumentsSheet, "C", "C", 36)
	_ = f.SetColWidth(DocumentsSheet, "F", "F", 28)
	_ = f.SetColWidth(DocumentsSheet, "K", "K", 24)
	_ = f.SetColWidth(DocumentsSheet, "M", "M", 60)
	_ = f.SetColWidth(DocumentsSheet, "P", "P", 48)
	_ = f.SetColWidth(RunsSheet, "A", "C", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"run_id", runID,
		"runs", len(runs),
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) selectRuns(ctx context.Context, runID string) ([]*entity.Run, error) {
	if runID == "" {
		runs, err := s.runs.List(ctx, LatestRunsLimit)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		return runs, nil
	}
	r, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return []*entity.Run{r}, nil
}

func writeRows(f *excelize.File, sheet string, headers []string, n int, row func(int) []any) error {
	hdr := make([]any, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return fmt.Errorf("xlsx header %s: %w", sheet, err)
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := row(i)
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("xlsx row %s/%d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func documentRow(d *entity.Document) []any {
	errMsg := ""
	if d.Error != nil {
		errMsg = truncate(*d.Error, 240)
	}
	return []any{
		d.RunID,
		d.ProcessedAt.UTC().Format(time.RFC3339),
		d.OriginalFilename,
		d.DatePrefix,
		d.DateSource,
		d.FinalSender,
		d.FinalConfidence,
		d.StageUsed,
		d.DocumentType,
		d.FilenameLabel,
		d.FinalFolder,
		yesNo(d.RoutedToFallback),
		d.FinalTargetPath,
		yesNo(d.CacheHit),
		yesNo(d.DryRun),
		errMsg,
	}
}

func runRow(r *entity.Run) []any {
	ended := ""
	if r.EndedAt != nil {
		ended = r.EndedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		r.ID,
		r.StartedAt.UTC().Format(time.RFC3339),
		ended,
		yesNo(r.DryRun),
		r.Total,
		r.Success,
		r.Fallback,
		r.Failed,
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
