package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"m","response":" {\"confidence\":0.9} ","done":true}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Host: srv.URL + "/"}, nil)
	out, err := c.Generate(context.Background(), "qwen2.5:1.5b-instruct", "prompt", 0.1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"confidence":0.9}` {
		t.Errorf("out = %q", out)
	}
	if got.Model != "qwen2.5:1.5b-instruct" || got.Stream || got.Format != "json" {
		t.Errorf("request = %+v", got)
	}
	if got.Options["temperature"] != 0.1 {
		t.Errorf("temperature = %v", got.Options["temperature"])
	}
}

func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewClient(Config{Host: srv.URL}, nil).Generate(context.Background(), "x", "p", 0); err == nil {
		t.Fatal("expected error")
	}
}
