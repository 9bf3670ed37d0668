package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TesseractRecognizer runs tesseract once per rendered page.
type TesseractRecognizer struct {
	Runner      Runner
	Binary      string // default "tesseract"
	TessdataDir string
}

func (t TesseractRecognizer) Recognize(ctx context.Context, pages [][]byte, level string, languages []string) (OCRResult, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	tmpDir, err := os.MkdirTemp("", "pdf-filer-ocr-*")
	if err != nil {
		return OCRResult{}, err
	}
	defer os.RemoveAll(tmpDir)

	var texts []string
	for i, png := range pages {
		img := filepath.Join(tmpDir, fmt.Sprintf("page-%03d.png", i+1))
		if err := os.WriteFile(img, png, 0o600); err != nil {
			return OCRResult{}, err
		}
		txt, err := t.recognizePage(ctx, bin, img, level, languages)
		if err != nil {
			return OCRResult{}, fmt.Errorf("page %d: %w", i+1, err)
		}
		texts = append(texts, txt)
	}
	return OCRResult{
		Text:           strings.TrimSpace(strings.Join(texts, "\n\n")),
		PagesProcessed: len(texts),
	}, nil
}

func (t TesseractRecognizer) recognizePage(ctx context.Context, bin, img, level string, languages []string) (string, error) {
	args := []string{img, "stdout"}
	if len(languages) > 0 {
		args = append(args, "-l", strings.Join(languages, "+"))
	}
	if level == "accurate" {
		args = append(args, "--oem", "1") // LSTM only
	}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}

	// tesseract <file> stdout -l deu+eng
	out, errb, err := t.Runner.Run(ctx, bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return Normalize(string(out)), nil
}
