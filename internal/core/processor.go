package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-filer/constants"
	"github.com/joseph-ayodele/pdf-filer/internal/classify"
	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/dates"
	"github.com/joseph-ayodele/pdf-filer/internal/entity"
	"github.com/joseph-ayodele/pdf-filer/internal/ingest"
	"github.com/joseph-ayodele/pdf-filer/internal/llm"
	"github.com/joseph-ayodele/pdf-filer/internal/mapping"
	"github.com/joseph-ayodele/pdf-filer/internal/naming"
	"github.com/joseph-ayodele/pdf-filer/internal/ocr"
	"github.com/joseph-ayodele/pdf-filer/internal/repository"
	"github.com/joseph-ayodele/pdf-filer/internal/routing"
)

// TextExtractor is satisfied by *ocr.Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// DocumentClassifier is satisfied by *classify.Classifier.
type DocumentClassifier interface {
	Classify(ctx context.Context, text string, knownSenders, folders []string) (classify.Decision, error)
}

// FileMover is satisfied by *mover.Mover.
type FileMover interface {
	Move(src, dst string) error
}

// Config is the per-process pipeline configuration.
type Config struct {
	InputDir            string
	Recursive           bool
	DatePriority        []string
	Naming              naming.Options
	ReuseClassification bool
	Stage1Model         string
	Stage2Model         string
}

// ConfigFrom maps the loaded application config onto the pipeline.
func ConfigFrom(c *common.Config) Config {
	return Config{
		InputDir:     c.Paths.InputDir,
		Recursive:    c.Paths.Recursive,
		DatePriority: c.Renaming.DateSourcePriority,
		Naming: naming.Options{
			Separator:    c.Renaming.Separator,
			KeepUmlauts:  c.Renaming.KeepUmlauts,
			MaxLen:       c.Renaming.FilenameMaxLen,
			SuffixFormat: c.Renaming.CollisionSuffixFormat,
			MaxSuffix:    c.Renaming.MaxSuffix,
			Template:     c.Renaming.NamingTemplate,
		},
		ReuseClassification: c.Cache.ReuseClassification,
		Stage1Model:         c.Classification.Stage1Model,
		Stage2Model:         c.Classification.Stage2Model,
	}
}

// Deps are the collaborators of a Processor. All are required.
type Deps struct {
	Dates      *dates.Resolver
	Extractor  TextExtractor
	Classifier DocumentClassifier
	Mapper     *mapping.Mapper
	Router     *routing.Router
	Mover      FileMover
	Runs       repository.RunRepository
	Documents  repository.DocumentRepository
}

// Processor files the PDFs of the inbox one at a time.
type Processor struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
	runID  func() string
}

func NewProcessor(cfg Config, deps Deps, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Mapper == nil {
		deps.Mapper = mapping.NewMapper(mapping.SenderMapping{})
	}
	if len(cfg.DatePriority) == 0 {
		cfg.DatePriority = []string{
			string(constants.DateSourcePDFMeta),
			string(constants.DateSourceFileBirthtime),
			string(constants.DateSourceMtime),
			string(constants.DateSourceToday),
		}
	}
	p := &Processor{cfg: cfg, deps: deps, logger: logger, now: time.Now}
	p.runID = p.newRunID
	return p
}

type RunOptions struct {
	DryRun bool
	Limit  int // 0 = all
}

// newRunID is the local start time plus eight random hex digits, so two runs
// started within the same second stay distinct.
func (p *Processor) newRunID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return p.now().Format(constants.RunIDLayout) + "-" + suffix
}

// Run processes every PDF currently in the inbox. A failing document never aborts the run.
// The run record is always ended, also when ctx is cancelled between documents.
func (p *Processor) Run(ctx context.Context, opts RunOptions) (run *entity.Run, err error) {
	runID := p.runID()
	ctx = common.WithRunID(ctx, runID)
	log := p.logger.With("run_id", runID, "dry_run", opts.DryRun)

	run, err = p.deps.Runs.Start(ctx, runID, opts.DryRun)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	log.Info("processor.run.start", "input_dir", p.cfg.InputDir)

	var counters entity.Counters
	defer func() {
		endCtx := context.WithoutCancel(ctx)
		if endErr := p.deps.Runs.End(endCtx, runID, counters); endErr != nil {
			log.Error("processor.run.end_failed", "error", endErr)
			err = errors.Join(err, endErr)
			return
		}
		if ended, getErr := p.deps.Runs.Get(endCtx, runID); getErr == nil {
			run = ended
		} else {
			run.Counters = counters
		}
		log.Info("processor.run.done",
			"total", counters.Total,
			"success", counters.Success,
			"fallback", counters.Fallback,
			"failed", counters.Failed,
		)
	}()

	paths, err := ingest.ListPDFs(p.cfg.InputDir, p.cfg.Recursive)
	if err != nil {
		return run, fmt.Errorf("list inbox: %w", err)
	}
	if opts.Limit > 0 && len(paths) > opts.Limit {
		paths = paths[:opts.Limit]
	}

	for _, path := range paths {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("processor.run.cancelled", "remaining", len(paths)-counters.Total)
			return run, ctxErr
		}
		doc := p.ProcessDocument(ctx, runID, path, opts.DryRun)
		counters.Total++
		switch Outcome(doc) {
		case constants.OutcomeFailed:
			counters.Failed++
		case constants.OutcomeFallback:
			counters.Fallback++
		default:
			counters.Success++
		}
	}
	// cancelled while the last document was in flight
	return run, ctx.Err()
}

// Outcome tallies a document: any error is failed, else fallback routing, else success.
func Outcome(d *entity.Document) constants.DocumentOutcome {
	switch {
	case d.Failed():
		return constants.OutcomeFailed
	case d.RoutedToFallback:
		return constants.OutcomeFallback
	default:
		return constants.OutcomeSuccess
	}
}

// ProcessDocument runs one file through the pipeline and persists the record.
// Errors, panics included, end up in Document.Error. An insert failure is
// added to the returned document even though that error is not stored.
// Cancelling ctx does not interrupt the document; each classification stage
// is bounded by its own timeout instead.
func (p *Processor) ProcessDocument(ctx context.Context, runID, path string, dryRun bool) *entity.Document {
	start := time.Now()
	reqID := uuid.NewString()
	ctx = common.WithRequestID(context.WithoutCancel(ctx), reqID)
	doc := &entity.Document{
		RunID:            runID,
		InputPath:        path,
		OriginalFilename: filepath.Base(path),
		ProcessedAt:      p.now().UTC(),
		DryRun:           dryRun,
		NamingTemplate:   p.cfg.Naming.Template,
		FilenameLabel:    constants.DefaultLabel,
	}
	log := p.logger.With("run_id", runID, "req_id", reqID, "file", doc.OriginalFilename)

	p.process(ctx, doc, log)

	id, err := p.deps.Documents.Insert(ctx, doc)
	if err != nil {
		log.Error("processor.document.persist_failed", "error", err)
		doc.SetError(fmt.Errorf("persist document: %w", err))
	} else {
		doc.ID = id
	}

	attrs := []any{
		"doc_id", doc.ID,
		"sender", doc.FinalSender,
		"confidence", doc.FinalConfidence,
		"stage", doc.StageUsed,
		"folder", doc.FinalFolder,
		"fallback", doc.RoutedToFallback,
		"cache_hit", doc.CacheHit,
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if doc.Failed() {
		log.Warn("processor.document.failed", append(attrs, "error", *doc.Error)...)
	} else {
		log.Info("processor.document.done", attrs...)
	}
	return doc
}

func (p *Processor) process(ctx context.Context, doc *entity.Document, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("processor.document.panic", "panic", r)
			doc.SetError(fmt.Errorf("panic: %v", r))
		}
	}()

	date := p.deps.Dates.Resolve(doc.InputPath, p.cfg.DatePriority)
	doc.DatePrefix = date.Date
	doc.DateSource = string(date.Source)
	doc.PDFMetaDate = date.PDFMeta
	doc.FileBirthTime = date.Birth

	info, err := ingest.Fingerprint(doc.InputPath)
	if err != nil {
		// unreadable input: nothing to classify and nothing to move
		doc.SetError(common.KindWrap(common.ErrExtraction, err))
		return
	}
	doc.Fingerprint = info.Fingerprint
	doc.SizeBytes = info.SizeBytes

	result := p.cached(ctx, doc, log)
	if result == nil {
		result = p.classify(ctx, doc, log)
	}

	decision := p.deps.Router.Decide(routing.Input{Result: result, HasError: doc.Failed()})
	doc.FinalFolder = decision.Folder
	doc.RoutedToFallback = decision.Fallback
	log.Debug("processor.route", "rule", decision.Rule, "target_dir", decision.TargetDir)

	base := p.cfg.Naming.BaseName(doc.DatePrefix, decision.Hint, naming.TemplateValues{
		Date:    doc.DatePrefix,
		Sender:  doc.FinalSender,
		DocType: doc.DocumentType,
		Folder:  decision.Folder,
		Label:   doc.FilenameLabel,
	})
	ext := filepath.Ext(doc.InputPath)
	if ext == "" {
		ext = "." + constants.PDFExt
	}
	dst, err := p.cfg.Naming.Resolve(decision.TargetDir, base, ext)
	if err != nil {
		doc.SetError(err)
		return
	}
	doc.FinalFilename = filepath.Base(dst)

	if doc.DryRun {
		doc.FinalTargetPath = dst
		log.Info("processor.document.dry_run", "target", dst)
		return
	}
	if err := p.deps.Mover.Move(doc.InputPath, dst); err != nil {
		doc.SetError(common.KindWrap(common.ErrMove, err))
		return
	}
	doc.FinalTargetPath = dst
}

// cached reuses the stored result of an earlier successful classification of the same bytes.
func (p *Processor) cached(ctx context.Context, doc *entity.Document, log *slog.Logger) *llm.Result {
	if !p.cfg.ReuseClassification || doc.Fingerprint == "" {
		return nil
	}
	prev, err := p.deps.Documents.LatestByFingerprint(ctx, doc.Fingerprint)
	if err != nil {
		log.Warn("processor.cache.lookup_failed", "error", err)
		return nil
	}
	if prev == nil || prev.Failed() || prev.StageUsed == 0 {
		return nil
	}

	doc.CacheHit = true
	doc.ExtractionMethod = prev.ExtractionMethod
	doc.PagesProcessed = prev.PagesProcessed
	doc.ExtractedChars = prev.ExtractedChars
	doc.StageUsed = prev.StageUsed
	doc.Stage1Model = prev.Stage1Model
	doc.Stage2Model = prev.Stage2Model
	doc.Stage1Confidence = prev.Stage1Confidence
	doc.Stage2Confidence = prev.Stage2Confidence
	doc.RawJSONStage1 = prev.RawJSONStage1
	doc.RawJSONStage2 = prev.RawJSONStage2

	res := llm.Result{
		SenderCanonical: prev.FinalSender,
		Confidence:      prev.FinalConfidence,
		Evidence:        append([]string(nil), prev.Evidence...),
		DocumentType:    prev.DocumentType,
		FilenameLabel:   prev.FilenameLabel,
		Notes:           prev.Notes,
		IsPrivate:       prev.IsPrivate,
		TargetFolder:    prev.LLMTargetFolder,
		FolderReason:    prev.LLMFolderReason,
		RawJSON:         prev.RawJSONFinal,
	}
	p.applyResult(doc, res)
	log.Info("processor.cache.hit", "previous_doc_id", prev.ID, "previous_run_id", prev.RunID)
	return &res
}

// classify extracts the text and runs the classifier. It returns nil after recording an error.
func (p *Processor) classify(ctx context.Context, doc *entity.Document, log *slog.Logger) *llm.Result {
	ex, err := p.deps.Extractor.Extract(ctx, doc.InputPath)
	doc.ExtractionMethod = string(ex.Method)
	doc.PagesProcessed = ex.PagesProcessed
	doc.ExtractedChars = ex.CharCount
	if err != nil {
		doc.SetError(common.KindWrap(common.ErrOCR, err))
		return nil
	}
	log.Debug("processor.extract.done",
		"method", ex.Method,
		"pages", ex.PagesProcessed,
		"chars", ex.CharCount,
		"needed_ocr", ex.NeededOCR,
		"elapsed_ms", ex.Duration.Milliseconds(),
	)

	doc.Stage1Model = p.cfg.Stage1Model
	doc.Stage2Model = p.cfg.Stage2Model
	dec, err := p.deps.Classifier.Classify(ctx, ex.Text, p.deps.Mapper.KnownSenders(), p.deps.Mapper.Folders())
	if dec.Stage1 != nil {
		c := dec.Stage1.Confidence
		doc.Stage1Confidence = &c
		doc.RawJSONStage1 = llm.Redact(dec.Stage1.RawJSON)
	}
	if dec.Stage2 != nil {
		c := dec.Stage2.Confidence
		doc.Stage2Confidence = &c
		doc.RawJSONStage2 = llm.Redact(dec.Stage2.RawJSON)
	}
	if err != nil {
		doc.SetError(common.KindWrap(common.ErrClassification, err))
		return nil
	}
	doc.StageUsed = dec.StageUsed

	res := dec.Final
	res.SenderCanonical = mapping.NormalizeSender(res.SenderCanonical)
	p.applyResult(doc, res)
	return &res
}

// applyResult copies the final classification onto the record, redacting free text.
func (p *Processor) applyResult(doc *entity.Document, res llm.Result) {
	red := res.Redacted()
	doc.FinalSender = res.SenderCanonical
	doc.FinalConfidence = res.Confidence
	doc.DocumentType = res.DocumentType
	if doc.DocumentType == "" {
		doc.DocumentType = string(constants.Other)
	}
	doc.FilenameLabel = strings.TrimSpace(res.FilenameLabel)
	if doc.FilenameLabel == "" {
		doc.FilenameLabel = constants.DefaultLabel
	}
	doc.Evidence = red.Evidence
	doc.Notes = red.Notes
	doc.IsPrivate = res.IsPrivate
	doc.LLMTargetFolder = res.TargetFolder
	doc.LLMFolderReason = red.FolderReason
	doc.RawJSONFinal = red.RawJSON
}
