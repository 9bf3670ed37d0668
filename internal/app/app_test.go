package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/core"
	"github.com/joseph-ayodele/pdf-filer/internal/llm/ollama"
	"github.com/joseph-ayodele/pdf-filer/internal/llm/openai"
	"github.com/joseph-ayodele/pdf-filer/internal/ocr"
)

func TestNewGenerator(t *testing.T) {
	cfg := common.DefaultConfig().Classification

	gen, err := NewGenerator(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := gen.(*ollama.Client); !ok {
		t.Errorf("default provider = %T, want *ollama.Client", gen)
	}

	cfg.Provider = "openai"
	cfg.OpenAIAPIKey = "sk-test"
	gen, err = NewGenerator(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := gen.(*openai.Client); !ok {
		t.Errorf("openai provider = %T", gen)
	}

	cfg.Provider = "llamafile"
	if _, err := NewGenerator(cfg, nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestNewTextLayer(t *testing.T) {
	cfg := common.DefaultConfig().OCR
	if _, ok := NewTextLayer(cfg, ocr.ExecRunner{}).(ocr.BuiltinTextLayer); !ok {
		t.Error("default text layer is not the builtin parser")
	}
	cfg.TextLayer = "pdftotext"
	if _, ok := NewTextLayer(cfg, ocr.ExecRunner{}).(ocr.PdftotextLayer); !ok {
		t.Error("pdftotext not selected")
	}
}

func TestPipelineOverEmptyInbox(t *testing.T) {
	dir := t.TempDir()
	mappingPath := filepath.Join(dir, "mapping.json")
	if err := os.WriteFile(mappingPath, []byte(`{"folders":{"Stadtwerke":"Energie"},"synonyms":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := common.DefaultConfig()
	cfg.Paths = common.PathsConfig{
		InputDir:     filepath.Join(dir, "inbox"),
		DocumentsDir: filepath.Join(dir, "docs"),
		FallbackDir:  filepath.Join(dir, "_Unklar"),
		DBPath:       filepath.Join(dir, "db", "filer.sqlite"),
		LogsDir:      filepath.Join(dir, "logs"),
		MappingJSON:  mappingPath,
	}
	ctx := context.Background()

	store, err := OpenStore(ctx, &cfg, nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	p, err := NewPipeline(&cfg, store, nil)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if got := p.Mapper.KnownSenders(); len(got) != 1 || got[0] != "Stadtwerke" {
		t.Errorf("known senders = %v", got)
	}

	run, err := p.Processor.Run(ctx, core.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Total != 0 || run.EndedAt == nil {
		t.Errorf("run = %+v", run)
	}
	if _, err := store.Exporter(nil).ExportDocumentsXLSX(ctx, run.ID); err != nil {
		t.Errorf("export: %v", err)
	}
}

func TestNewPipelineMissingMapping(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.Paths.DBPath = filepath.Join(t.TempDir(), "filer.sqlite")
	cfg.Paths.MappingJSON = filepath.Join(t.TempDir(), "missing.json")
	store, err := OpenStore(context.Background(), &cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := NewPipeline(&cfg, store, nil); err == nil {
		t.Fatal("expected error for missing mapping file")
	}
}
