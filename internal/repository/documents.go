package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/entity"
)

type DocumentRepository interface {
	Insert(ctx context.Context, doc *entity.Document) (int64, error)
	// LatestByFingerprint returns the newest record for fp, or nil when there is none.
	LatestByFingerprint(ctx context.Context, fp string) (*entity.Document, error)
	ListByRun(ctx context.Context, runID string) ([]*entity.Document, error)
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{db: db, logger: logger}
}

var documentColumns = []string{
	"run_id", "input_path", "original_filename", "file_fingerprint", "naming_template",
	"file_size_bytes", "file_created_at", "pdf_meta_created_at", "chosen_date_prefix", "date_source",
	"extraction_method", "pages_processed", "extracted_char_count",
	"final_sender_canonical", "final_confidence", "final_document_type", "final_filename_label",
	"final_evidence", "final_notes", "final_filename", "final_target_folder", "final_target_path",
	"routed_to_fallback", "stage_used", "llm_model_stage1", "llm_model_stage2",
	"stage1_confidence", "stage2_confidence", "llm_target_folder", "llm_is_private", "llm_folder_reason",
	"llm_raw_json_stage1", "llm_raw_json_stage2", "llm_raw_json_final",
	"cache_hit", "dry_run", "error", "processed_at",
}

var selectDocument = "SELECT id, " + strings.Join(documentColumns, ", ") + " FROM documents"

func (r *documentRepo) Insert(ctx context.Context, d *entity.Document) (int64, error) {
	evidence, err := json.Marshal(nonNil(d.Evidence))
	if err != nil {
		return 0, fmt.Errorf("encode evidence: %w", err)
	}
	var errMsg any
	if d.Error != nil {
		errMsg = *d.Error
	}
	args := []any{
		d.RunID, d.InputPath, d.OriginalFilename, nullString(d.Fingerprint), nullString(d.NamingTemplate),
		d.SizeBytes, nullTime(d.FileBirthTime), nullTime(d.PDFMetaDate), d.DatePrefix, d.DateSource,
		nullString(d.ExtractionMethod), d.PagesProcessed, d.ExtractedChars,
		d.FinalSender, d.FinalConfidence, d.DocumentType, d.FilenameLabel,
		string(evidence), d.Notes, nullString(d.FinalFilename), d.FinalFolder, nullString(d.FinalTargetPath),
		boolInt(d.RoutedToFallback), d.StageUsed, nullString(d.Stage1Model), nullString(d.Stage2Model),
		nullFloat(d.Stage1Confidence), nullFloat(d.Stage2Confidence), nullString(d.LLMTargetFolder), boolInt(d.IsPrivate), nullString(d.LLMFolderReason),
		nullString(d.RawJSONStage1), nullString(d.RawJSONStage2), nullString(d.RawJSONFinal),
		boolInt(d.CacheHit), boolInt(d.DryRun), errMsg, formatTime(d.ProcessedAt),
	}

	query := "INSERT INTO documents(" + strings.Join(documentColumns, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(documentColumns)), ", ") + ") RETURNING id"

	var id int64
	if err := r.db.QueryRowContext(ctx, r.db.Dialect.Rebind(query), args...).Scan(&id); err != nil {
		r.logger.Error("repository.document.insert_failed", "run_id", d.RunID, "input_path", d.InputPath, "error", err)
		return 0, common.KindWrap(common.ErrDatabase, fmt.Errorf("insert document: %w", err))
	}
	d.ID = id
	return id, nil
}

func (r *documentRepo) LatestByFingerprint(ctx context.Context, fp string) (*entity.Document, error) {
	fp = strings.TrimSpace(fp)
	if fp == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx,
		r.db.Dialect.Rebind(selectDocument+" WHERE file_fingerprint = ? ORDER BY id DESC LIMIT 1"), fp)
	d, err := scanDocument(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("repository.document.lookup_failed", "fingerprint", fp, "error", err)
		return nil, common.KindWrap(common.ErrDatabase, err)
	}
	return d, nil
}

func (r *documentRepo) ListByRun(ctx context.Context, runID string) ([]*entity.Document, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(selectDocument+" WHERE run_id = ? ORDER BY id"), runID)
	if err != nil {
		return nil, common.KindWrap(common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, common.KindWrap(common.ErrDatabase, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDocument(s rowScanner) (*entity.Document, error) {
	var (
		d                                                           entity.Document
		fingerprint, template, birth, pdfMeta, datePrefix, dateSrc  sql.NullString
		method, sender, docType, label, evidence, notes, filename   sql.NullString
		folder, target, model1, model2, llmFolder, llmReason        sql.NullString
		raw1, raw2, rawFinal, errMsg, processed                     sql.NullString
		size, pages, chars, fallback, stage, private, cacheHit, dry sql.NullInt64
		conf, conf1, conf2                                          sql.NullFloat64
	)
	err := s.Scan(
		&d.ID, &d.RunID, &d.InputPath, &d.OriginalFilename, &fingerprint, &template,
		&size, &birth, &pdfMeta, &datePrefix, &dateSrc,
		&method, &pages, &chars,
		&sender, &conf, &docType, &label,
		&evidence, &notes, &filename, &folder, &target,
		&fallback, &stage, &model1, &model2,
		&conf1, &conf2, &llmFolder, &private, &llmReason,
		&raw1, &raw2, &rawFinal,
		&cacheHit, &dry, &errMsg, &processed,
	)
	if err != nil {
		return nil, err
	}

	d.Fingerprint, d.NamingTemplate = fingerprint.String, template.String
	d.SizeBytes = size.Int64
	d.FileBirthTime, d.PDFMetaDate = parseTime(birth), parseTime(pdfMeta)
	d.DatePrefix, d.DateSource = datePrefix.String, dateSrc.String
	d.ExtractionMethod = method.String
	d.PagesProcessed, d.ExtractedChars = int(pages.Int64), int(chars.Int64)
	d.FinalSender, d.FinalConfidence = sender.String, conf.Float64
	d.DocumentType, d.FilenameLabel = docType.String, label.String
	if evidence.Valid && evidence.String != "" {
		if err := json.Unmarshal([]byte(evidence.String), &d.Evidence); err != nil {
			// pre-JSON rows stored a plain string
			d.Evidence = []string{evidence.String}
		}
	}
	d.Notes, d.FinalFilename = notes.String, filename.String
	d.FinalFolder, d.FinalTargetPath = folder.String, target.String
	d.RoutedToFallback = fallback.Int64 != 0
	d.StageUsed = int(stage.Int64)
	d.Stage1Model, d.Stage2Model = model1.String, model2.String
	d.Stage1Confidence, d.Stage2Confidence = floatPtr(conf1), floatPtr(conf2)
	d.LLMTargetFolder, d.LLMFolderReason = llmFolder.String, llmReason.String
	d.IsPrivate = private.Int64 != 0
	d.RawJSONStage1, d.RawJSONStage2, d.RawJSONFinal = raw1.String, raw2.String, rawFinal.String
	d.CacheHit, d.DryRun = cacheHit.Int64 != 0, dry.Int64 != 0
	if errMsg.Valid {
		msg := errMsg.String
		d.Error = &msg
	}
	if t := parseTime(processed); t != nil {
		d.ProcessedAt = *t
	}
	return &d, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
