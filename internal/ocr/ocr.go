package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

// TextLayer reads the embedded text of a PDF. Empty text is a valid result.
type TextLayer interface {
	ExtractText(ctx context.Context, path string) (text string, pages int, err error)
}

// PageRenderer rasterizes up to maxPages pages of a PDF, one PNG buffer per page.
type PageRenderer interface {
	RenderPages(ctx context.Context, path string, maxPages, dpi int) ([][]byte, error)
}

// OCRResult is recognized text plus the number of pages actually processed.
type OCRResult struct {
	Text           string
	PagesProcessed int
}

// Recognizer runs OCR over rendered pages. It fails on engine errors.
type Recognizer interface {
	Recognize(ctx context.Context, pages [][]byte, level string, languages []string) (OCRResult, error)
}

type Config struct {
	Enabled          bool
	MaxPages         int
	DPI              int
	MinTextChars     int
	MinAlnumRatio    float64
	RecognitionLevel string   // accurate | fast
	Languages        []string // tesseract codes, e.g. deu, eng
}

type ExtractionResult struct {
	Text           string
	Method         constants.ExtractionMethod
	PagesProcessed int
	CharCount      int
	NeededOCR      bool
	Duration       time.Duration
	Warnings       []string
}

// Extractor reads the text layer and falls back to OCR when it is insufficient.
type Extractor struct {
	cfg        Config
	textLayer  TextLayer
	renderer   PageRenderer
	recognizer Recognizer
	logger     *slog.Logger
}

func NewExtractor(cfg Config, textLayer TextLayer, renderer PageRenderer, recognizer Recognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 250
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.RecognitionLevel == "" {
		cfg.RecognitionLevel = "accurate"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"deu", "eng"}
	}
	return &Extractor{cfg: cfg, textLayer: textLayer, renderer: renderer, recognizer: recognizer, logger: logger}
}

// Extract returns the document text. A text layer failure is logged and treated as
// empty text; an OCR failure is returned wrapped in common.ErrOCR by the caller.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	res := ExtractionResult{Method: constants.MethodTextLayer}

	text, pages, err := e.textLayer.ExtractText(ctx, path)
	if err != nil {
		e.logger.Warn("ocr.textlayer.failed", "path", path, "error", err)
		res.Warnings = append(res.Warnings, "textlayer: "+err.Error())
		text, pages = "", 0
	}
	res.Text = text
	res.PagesProcessed = pages

	res.NeededOCR = NeedsOCR(text, e.cfg.MinTextChars, e.cfg.MinAlnumRatio)
	e.logger.Debug("ocr.textlayer.done",
		"path", path,
		"chars", utf8.RuneCountInString(text),
		"alnum_ratio", AlnumRatio(text),
		"needs_ocr", res.NeededOCR,
	)

	if res.NeededOCR {
		if !e.cfg.Enabled {
			e.logger.Info("ocr.disabled.using_textlayer", "path", path)
		} else {
			// recorded even when OCR fails, so the audit row shows it was tried
			res.Method = constants.MethodVisionOCR
			ocrRes, err := e.runOCR(ctx, path)
			if err != nil {
				res.Duration = time.Since(start)
				return res, err
			}
			res.Text = ocrRes.Text
			res.PagesProcessed = ocrRes.PagesProcessed
		}
	}

	res.Text = strings.TrimSpace(res.Text)
	res.CharCount = utf8.RuneCountInString(res.Text)
	res.Duration = time.Since(start)
	return res, nil
}

func (e *Extractor) runOCR(ctx context.Context, path string) (OCRResult, error) {
	if e.renderer == nil || e.recognizer == nil {
		return OCRResult{}, errors.New("ocr collaborators not configured")
	}
	pages, err := e.renderer.RenderPages(ctx, path, e.cfg.MaxPages, e.cfg.DPI)
	if err != nil {
		return OCRResult{}, fmt.Errorf("render pages: %w", err)
	}
	if len(pages) == 0 {
		return OCRResult{}, errors.New("render pages: no pages rendered")
	}
	out, err := e.recognizer.Recognize(ctx, pages, e.cfg.RecognitionLevel, e.cfg.Languages)
	if err != nil {
		return OCRResult{}, fmt.Errorf("recognize: %w", err)
	}
	e.logger.Info("ocr.recognize.ok", "path", path, "pages", out.PagesProcessed, "chars", utf8.RuneCountInString(out.Text))
	return out, nil
}
