package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/pdf-filer/internal/app"
	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/ocr"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config for OCR settings")
		forceOCR   = flag.Bool("force-ocr", false, "skip the text layer check and always run OCR")
		preview    = flag.Int("preview", 600, "characters of text to print (0 = all)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-config path] [-force-ocr] <file.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ocrCfg := common.DefaultConfig().OCR
	if *configPath != "" {
		cfg, err := common.LoadConfig(*configPath)
		if err != nil {
			logger.Error("load config", "error", err)
			os.Exit(1)
		}
		ocrCfg = cfg.OCR
	}
	if *forceOCR {
		ocrCfg.Enabled = true
		ocrCfg.MinTextChars = 1 << 30
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	runner := ocr.ExecRunner{Logger: logger}
	extractor := ocr.NewExtractor(
		ocr.Config{
			Enabled:          ocrCfg.Enabled,
			MaxPages:         ocrCfg.MaxPages,
			DPI:              ocrCfg.DPI,
			MinTextChars:     ocrCfg.MinTextChars,
			MinAlnumRatio:    ocrCfg.MinAlnumRatio,
			RecognitionLevel: ocrCfg.RecognitionLevel,
			Languages:        ocrCfg.Languages,
		},
		app.NewTextLayer(ocrCfg, runner),
		ocr.PdftoppmRenderer{Runner: runner, Binary: ocrCfg.Pdftoppm},
		ocr.TesseractRecognizer{Runner: runner, Binary: ocrCfg.Tesseract, TessdataDir: ocrCfg.TessdataDir},
		logger,
	)

	res, err := extractor.Extract(ctx, path)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"method", res.Method,
		"pages", res.PagesProcessed,
		"chars", res.CharCount,
		"needed_ocr", res.NeededOCR,
		"alnum_ratio", ocr.AlnumRatio(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
		"warnings", res.Warnings,
	)

	text := res.Text
	if *preview > 0 && utf8.RuneCountInString(text) > *preview {
		text = string([]rune(text)[:*preview]) + "\n…"
	}
	fmt.Println(text)
}
