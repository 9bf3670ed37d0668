package llm

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/pdf-filer/internal/common"
)

func TestSendJSONLogsContextIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := common.WithRunID(context.Background(), "20240501-093000-abcdef12")
	ctx = common.WithRequestID(ctx, "doc-req-1")

	body, status, err := SendJSON(ctx, srv.Client(), srv.URL, map[string]string{"q": "x"}, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("status %d body %s", status, body)
	}
	logs := buf.String()
	for _, want := range []string{`"req_id":"doc-req-1"`, `"run_id":"20240501-093000-abcdef12"`} {
		if !strings.Contains(logs, want) {
			t.Errorf("log missing %s:\n%s", want, logs)
		}
	}
}
