// Package app wires the configured collaborators for the command binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/pdf-filer/internal/classify"
	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/core"
	"github.com/joseph-ayodele/pdf-filer/internal/dates"
	"github.com/joseph-ayodele/pdf-filer/internal/export"
	"github.com/joseph-ayodele/pdf-filer/internal/llm"
	"github.com/joseph-ayodele/pdf-filer/internal/llm/ollama"
	"github.com/joseph-ayodele/pdf-filer/internal/llm/openai"
	"github.com/joseph-ayodele/pdf-filer/internal/mapping"
	"github.com/joseph-ayodele/pdf-filer/internal/mover"
	"github.com/joseph-ayodele/pdf-filer/internal/ocr"
	"github.com/joseph-ayodele/pdf-filer/internal/repository"
	"github.com/joseph-ayodele/pdf-filer/internal/routing"
)

// Store is the opened and migrated database with its repositories.
type Store struct {
	DB        *repository.DB
	Runs      repository.RunRepository
	Documents repository.DocumentRepository
}

// OpenStore opens the configured database and applies pending migrations.
func OpenStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Store, error) {
	db, err := repository.Open(ctx, repository.ConfigFrom(cfg), logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		DB:        db,
		Runs:      repository.NewRunRepository(db, logger),
		Documents: repository.NewDocumentRepository(db, logger),
	}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// Exporter builds the XLSX export over the store.
func (s *Store) Exporter(logger *slog.Logger) *export.Service {
	return export.NewService(s.Runs, s.Documents, logger)
}

// Pipeline is a ready processor plus the pieces the CLI also uses directly.
type Pipeline struct {
	Processor *core.Processor
	Mapper    *mapping.Mapper
	Mover     *mover.Mover
}

// NewPipeline loads the sender mapping and wires extraction, classification,
// routing and moving around the store.
func NewPipeline(cfg *common.Config, store *Store, logger *slog.Logger) (*Pipeline, error) {
	sm, err := mapping.Load(cfg.Paths.MappingJSON)
	if err != nil {
		return nil, err
	}
	mapper := mapping.NewMapper(sm)

	gen, err := NewGenerator(cfg.Classification, logger)
	if err != nil {
		return nil, err
	}

	runner := ocr.ExecRunner{Logger: logger}
	extractor := ocr.NewExtractor(
		ocr.Config{
			Enabled:          cfg.OCR.Enabled,
			MaxPages:         cfg.OCR.MaxPages,
			DPI:              cfg.OCR.DPI,
			MinTextChars:     cfg.OCR.MinTextChars,
			MinAlnumRatio:    cfg.OCR.MinAlnumRatio,
			RecognitionLevel: cfg.OCR.RecognitionLevel,
			Languages:        cfg.OCR.Languages,
		},
		NewTextLayer(cfg.OCR, runner),
		ocr.PdftoppmRenderer{Runner: runner, Binary: cfg.OCR.Pdftoppm},
		ocr.TesseractRecognizer{Runner: runner, Binary: cfg.OCR.Tesseract, TessdataDir: cfg.OCR.TessdataDir},
		logger,
	)

	router := routing.NewRouter(routing.Policy{
		DocumentsDir:                 cfg.Paths.DocumentsDir,
		FallbackDir:                  cfg.Paths.FallbackDir,
		ThresholdSafeToFile:          cfg.Classification.ThresholdSafeToFile,
		AllowLLMFolderOverride:       cfg.Classification.AllowLLMFolderOverride,
		LLMFolderOverrideMinConf:     cfg.Classification.LLMFolderOverrideMinConf,
		RouteUnknownSenderToFallback: cfg.Mapping.RouteUnknownSenderToFallback,
	}, mapper, logger)

	mv := mover.New(logger)
	proc := core.NewProcessor(core.ConfigFrom(cfg), core.Deps{
		Dates:      dates.NewResolver(logger),
		Extractor:  extractor,
		Classifier: classify.NewClassifier(classify.FromConfig(cfg.Classification), gen, logger),
		Mapper:     mapper,
		Router:     router,
		Mover:      mv,
		Runs:       store.Runs,
		Documents:  store.Documents,
	}, logger)

	return &Pipeline{Processor: proc, Mapper: mapper, Mover: mv}, nil
}

// NewGenerator returns the model client for the configured provider.
func NewGenerator(cfg common.ClassificationConfig, logger *slog.Logger) (llm.Generator, error) {
	switch cfg.Provider {
	case "", "ollama":
		return ollama.NewClient(ollama.Config{Host: cfg.OllamaHost, Timeout: cfg.Timeout()}, logger), nil
	case "openai":
		return openai.NewClient(openai.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Timeout: cfg.Timeout()}, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", common.ErrInvalidInput, cfg.Provider)
	}
}

// NewTextLayer picks the in-process parser or the poppler pdftotext binary.
func NewTextLayer(cfg common.OCRConfig, runner ocr.Runner) ocr.TextLayer {
	if cfg.TextLayer == "pdftotext" {
		return ocr.PdftotextLayer{Runner: runner, Binary: "pdftotext"}
	}
	return ocr.BuiltinTextLayer{}
}
