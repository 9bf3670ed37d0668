package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

type stubTextLayer struct {
	text  string
	pages int
	err   error
}

func (s stubTextLayer) ExtractText(context.Context, string) (string, int, error) {
	return s.text, s.pages, s.err
}

type stubRenderer struct {
	calls int
	pages [][]byte
	err   error
}

func (s *stubRenderer) RenderPages(context.Context, string, int, int) ([][]byte, error) {
	s.calls++
	return s.pages, s.err
}

type stubRecognizer struct {
	text string
	err  error
}

func (s stubRecognizer) Recognize(_ context.Context, pages [][]byte, _ string, _ []string) (OCRResult, error) {
	if s.err != nil {
		return OCRResult{}, s.err
	}
	return OCRResult{Text: s.text, PagesProcessed: len(pages)}, nil
}

var richText = strings.Repeat("Rechnung Nummer 4711 vom Stadtwerk Musterstadt. ", 5)

func testConfig() Config {
	return Config{Enabled: true, MaxPages: 5, DPI: 250, MinTextChars: 150, MinAlnumRatio: 0.35}
}

func TestAlnumRatio(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"abc1", 1},
		{"a b ", 0.5},
		{"Ääöü", 1},
		{"----", 0},
	}
	for _, tc := range cases {
		if got := AlnumRatio(tc.in); got != tc.want {
			t.Errorf("AlnumRatio(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNeedsOCR(t *testing.T) {
	if !NeedsOCR("", 150, 0.35) {
		t.Error("empty text must need OCR")
	}
	if !NeedsOCR(strings.Repeat("-", 300), 150, 0.35) {
		t.Error("noise must need OCR")
	}
	if NeedsOCR(richText, 150, 0.35) {
		t.Error("rich text should not need OCR")
	}
}

func TestExtractUsesTextLayerWhenSufficient(t *testing.T) {
	r := &stubRenderer{}
	e := NewExtractor(testConfig(), stubTextLayer{text: richText, pages: 2}, r, stubRecognizer{text: "ocr"}, nil)

	res, err := e.Extract(context.Background(), "x.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Method != constants.MethodTextLayer || res.NeededOCR {
		t.Errorf("method = %s needed = %v", res.Method, res.NeededOCR)
	}
	if res.PagesProcessed != 2 || res.CharCount == 0 {
		t.Errorf("pages = %d chars = %d", res.PagesProcessed, res.CharCount)
	}
	if r.calls != 0 {
		t.Error("renderer should not be called")
	}
}

func TestExtractFallsBackToOCR(t *testing.T) {
	r := &stubRenderer{pages: [][]byte{{1}, {2}}}
	e := NewExtractor(testConfig(), stubTextLayer{text: "kurz", pages: 2}, r, stubRecognizer{text: "Erkannter Text"}, nil)

	res, err := e.Extract(context.Background(), "x.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Method != constants.MethodVisionOCR || !res.NeededOCR {
		t.Errorf("method = %s needed = %v", res.Method, res.NeededOCR)
	}
	if res.Text != "Erkannter Text" || res.PagesProcessed != 2 {
		t.Errorf("got %q pages %d", res.Text, res.PagesProcessed)
	}
}

func TestExtractTextLayerErrorTreatedAsEmpty(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	e := NewExtractor(cfg, stubTextLayer{err: errors.New("broken xref")}, nil, nil, nil)

	res, err := e.Extract(context.Background(), "x.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "" || !res.NeededOCR || res.Method != constants.MethodTextLayer {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestExtractPropagatesOCRError(t *testing.T) {
	boom := errors.New("tesseract missing")
	r := &stubRenderer{pages: [][]byte{{1}}}
	e := NewExtractor(testConfig(), stubTextLayer{}, r, stubRecognizer{err: boom}, nil)

	res, err := e.Extract(context.Background(), "x.pdf")
	if !errors.Is(err, boom) {
		t.Fatalf("want OCR error, got %v", err)
	}
	if res.Method != constants.MethodVisionOCR || !res.NeededOCR {
		t.Errorf("method = %s needed = %v", res.Method, res.NeededOCR)
	}
}

func TestExtractNoRenderedPages(t *testing.T) {
	e := NewExtractor(testConfig(), stubTextLayer{}, &stubRenderer{}, stubRecognizer{}, nil)
	if _, err := e.Extract(context.Background(), "x.pdf"); err == nil {
		t.Fatal("expected error when nothing was rendered")
	}
}

type recordingRunner struct {
	calls  [][]string
	stdout []byte
	err    error
	onRun  func(args []string)
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.onRun != nil {
		r.onRun(args)
	}
	return r.stdout, nil, r.err
}

func TestTesseractArgs(t *testing.T) {
	run := &recordingRunner{stdout: []byte("Seite  eins\r\n\n\n\nEnde")}
	rec := TesseractRecognizer{Runner: run, TessdataDir: "/opt/tessdata"}

	res, err := rec.Recognize(context.Background(), [][]byte{{1}, {2}}, "accurate", []string{"deu", "eng"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(run.calls) != 2 || res.PagesProcessed != 2 {
		t.Fatalf("calls = %d pages = %d", len(run.calls), res.PagesProcessed)
	}
	got := strings.Join(run.calls[0], " ")
	for _, want := range []string{"tesseract ", " stdout -l deu+eng", "--oem 1", "--tessdata-dir /opt/tessdata"} {
		if !strings.Contains(got, want) {
			t.Errorf("args %q missing %q", got, want)
		}
	}
	if want := "Seite eins\n\nEnde\n\nSeite eins\n\nEnde"; res.Text != want {
		t.Errorf("text = %q", res.Text)
	}
}

func TestTesseractFailsOnPageError(t *testing.T) {
	rec := TesseractRecognizer{Runner: &recordingRunner{err: errors.New("exit status 1")}}
	if _, err := rec.Recognize(context.Background(), [][]byte{{1}}, "fast", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestPdftoppmRendersSortedPages(t *testing.T) {
	run := &recordingRunner{}
	run.onRun = func(args []string) {
		prefix := args[len(args)-1]
		for _, n := range []string{"2", "1"} {
			_ = os.WriteFile(prefix+"-"+n+".png", []byte("page"+n), 0o600)
		}
	}
	pages, err := PdftoppmRenderer{Runner: run}.RenderPages(context.Background(), "in.pdf", 5, 300)
	if err != nil {
		t.Fatalf("RenderPages: %v", err)
	}
	if len(pages) != 2 || string(pages[0]) != "page1" {
		t.Errorf("pages = %q", pages)
	}
	got := strings.Join(run.calls[0], " ")
	if !strings.HasPrefix(got, "pdftoppm -r 300 -png -f 1 -l 5 in.pdf ") {
		t.Errorf("args = %q", got)
	}
}

func TestBuiltinTextLayerRejectsNonPDF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(p, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := (BuiltinTextLayer{}).ExtractText(context.Background(), p); err == nil {
		t.Fatal("expected error for garbage input")
	}
}
