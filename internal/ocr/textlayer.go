package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// BuiltinTextLayer reads the text layer in-process with ledongthuc/pdf.
type BuiltinTextLayer struct{}

func (BuiltinTextLayer) ExtractText(ctx context.Context, path string) (text string, pages int, err error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	// the parser panics on some malformed files
	defer func() {
		if rec := recover(); rec != nil {
			text, pages, err = "", 0, fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("plain text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", 0, fmt.Errorf("read text: %w", err)
	}
	return strings.TrimSpace(buf.String()), r.NumPage(), nil
}

// PdftotextLayer shells out to poppler's pdftotext.
type PdftotextLayer struct {
	Runner Runner
	Binary string // default "pdftotext"
}

func (p PdftotextLayer) ExtractText(ctx context.Context, path string) (string, int, error) {
	bin := p.Binary
	if bin == "" {
		bin = "pdftotext"
	}
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := p.Runner.Run(ctx, bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	text := string(out)
	// A form-feed \f is used as page separator by default
	pages := strings.Count(text, "\f")
	if pages == 0 && strings.TrimSpace(text) != "" {
		pages = 1
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "\f", "\n")), pages, nil
}
