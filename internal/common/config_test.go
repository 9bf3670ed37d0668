package common

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
paths:
  input_dir: /tmp/in
  documents_dir: /tmp/docs
  fallback_dir: /tmp/docs/_Unklar
  db_path: /tmp/pdf_filer.sqlite
  logs_dir: /tmp/logs
  mapping_json: /tmp/mapping.json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.OCR.Enabled || cfg.OCR.DPI != 250 || cfg.OCR.MaxPages != 5 {
		t.Errorf("ocr defaults not applied: %+v", cfg.OCR)
	}
	if cfg.OCR.MinTextChars != 150 || cfg.OCR.MinAlnumRatio != 0.35 {
		t.Errorf("ocr thresholds: %+v", cfg.OCR)
	}
	c := cfg.Classification
	if c.ThresholdAccept != 0.80 || c.ThresholdSafeToFile != 0.70 || !c.RequireEvidence {
		t.Errorf("classification defaults: %+v", c)
	}
	if c.Timeout() != 90*time.Second {
		t.Errorf("timeout = %v", c.Timeout())
	}
	r := cfg.Renaming
	if r.Separator != " " || r.CollisionSuffixFormat != "_{n}" || r.MaxSuffix != 999 || !r.KeepUmlauts {
		t.Errorf("renaming defaults: %+v", r)
	}
	if got := strings.Join(r.DateSourcePriority, ","); got != "pdf_meta,file_birthtime,mtime,today" {
		t.Errorf("date priority = %s", got)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %s", cfg.Database.Driver)
	}
}

func TestLoadConfigOverridesKeepOtherDefaults(t *testing.T) {
	body := minimalYAML + `
classification:
  threshold_accept: 0.9
  timeout_seconds: 5
renaming:
  keep_umlauts: false
  date_source_priority: [mtime]
`
	cfg, err := LoadConfig(writeConfig(t, body))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Classification.ThresholdAccept != 0.9 {
		t.Errorf("threshold_accept = %v", cfg.Classification.ThresholdAccept)
	}
	if cfg.Classification.Stage1Model != "qwen2.5:1.5b-instruct" {
		t.Errorf("stage1 default lost: %q", cfg.Classification.Stage1Model)
	}
	if cfg.Renaming.KeepUmlauts {
		t.Error("keep_umlauts should be false")
	}
	if len(cfg.Renaming.DateSourcePriority) != 1 || cfg.Renaming.DateSourcePriority[0] != "mtime" {
		t.Errorf("date priority = %v", cfg.Renaming.DateSourcePriority)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, minimalYAML+"\nclassification:\n  stage3_modell: x\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
		t.Errorf("want CONFIG_ERROR AppError, got %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classification.ThresholdAccept = 1.5
	cfg.Renaming.CollisionSuffixFormat = "_x"
	cfg.Renaming.DateSourcePriority = []string{"pdf_meta", "ctime"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("want ErrInvalidInput, got %v", err)
	}
	for _, want := range []string{"paths.input_dir", "threshold_accept", "collision_suffix_format", "date_source_priority[1]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestValidateOpenAIRequiresKey(t *testing.T) {
	cfg, err := ParseConfig([]byte(minimalYAML + "\nclassification:\n  provider: openai\n"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("want missing key error, got %v", err)
	}
	cfg.Classification.OpenAIAPIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")
	t.Setenv("PDF_FILER_LLM_TIMEOUT_SECONDS", "12")
	t.Setenv("PDF_FILER_INPUT_DIR", "/srv/inbox")

	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Classification.OllamaHost != "http://ollama:11434" {
		t.Errorf("ollama host = %s", cfg.Classification.OllamaHost)
	}
	if cfg.Classification.TimeoutSeconds != 12 {
		t.Errorf("timeout = %d", cfg.Classification.TimeoutSeconds)
	}
	if cfg.Paths.InputDir != "/srv/inbox" {
		t.Errorf("input dir = %s", cfg.Paths.InputDir)
	}
}

func TestKindWrap(t *testing.T) {
	base := errors.New("tesseract exited 1")
	err := KindWrap(ErrOCR, base)
	if !errors.Is(err, ErrOCR) || !errors.Is(err, base) {
		t.Errorf("KindWrap lost chain: %v", err)
	}
	if again := KindWrap(ErrOCR, err); again != err {
		t.Errorf("double wrap: %v", again)
	}
	if KindWrap(ErrOCR, nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestExampleConfigParses(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "config.example.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("example config rejected: %v", err)
	}
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example config invalid: %v", err)
	}
	if !cfg.Cache.ReuseClassification || cfg.Server.WatchDebounce != 2*time.Second {
		t.Errorf("cache/server not decoded: %+v %+v", cfg.Cache, cfg.Server)
	}
}
