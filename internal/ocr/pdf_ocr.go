package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// PdftoppmRenderer rasterizes pages with poppler's pdftoppm.
type PdftoppmRenderer struct {
	Runner Runner
	Binary string // default "pdftoppm"
}

func (p PdftoppmRenderer) RenderPages(ctx context.Context, path string, maxPages, dpi int) ([][]byte, error) {
	bin := p.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	tmpDir, err := os.MkdirTemp("", "pdf-filer-pp-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(dpi), "-png"}
	if maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(maxPages))
	}
	args = append(args, path, prefix)
	// pdftoppm -r 250 -png -f 1 -l 5 <in.pdf> <tmp/page>
	if _, errb, err := p.Runner.Run(ctx, bin, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// prefix-1.png, prefix-2.png, ... zero padded when the document has 10+ pages
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if maxPages > 0 && len(matches) > maxPages {
		matches = matches[:maxPages]
	}

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read rendered page: %w", err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}
