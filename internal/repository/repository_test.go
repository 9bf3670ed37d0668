package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "db", "filer.sqlite")}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	v, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != len(migrations) {
		t.Errorf("version = %d, want %d", v, len(migrations))
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != len(migrations) {
		t.Errorf("schema_migrations rows = %d", n)
	}
}

func TestMigrateLegacyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.sqlite")
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	legacy := []string{
		`CREATE TABLE runs (run_id TEXT PRIMARY KEY, started_at TEXT NOT NULL, ended_at TEXT,
			count_total INTEGER DEFAULT 0, count_success INTEGER DEFAULT 0, count_fallback INTEGER DEFAULT 0, count_failed INTEGER DEFAULT 0)`,
		`CREATE TABLE documents (id INTEGER PRIMARY KEY AUTOINCREMENT, run_id TEXT NOT NULL, input_path TEXT NOT NULL,
			original_filename TEXT NOT NULL, chosen_date_prefix TEXT, final_sender_canonical TEXT, error TEXT, processed_at TEXT NOT NULL)`,
		`INSERT INTO runs(run_id, started_at, ended_at) VALUES ('20240101-100000', '2024-01-01T10:00:00', '2024-01-01T10:05:00')`,
		`INSERT INTO documents(run_id, input_path, original_filename, chosen_date_prefix, final_sender_canonical, processed_at)
			VALUES ('20240101-100000', '/in/a.pdf', 'a.pdf', '2024-01-01', 'AOK', '2024-01-01T10:01:00')`,
	}
	for _, s := range legacy {
		if _, err := raw.Exec(s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_ = raw.Close()

	db, err := Open(context.Background(), Config{Path: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate legacy: %v", err)
	}

	docs, err := NewDocumentRepository(db, nil).ListByRun(context.Background(), "20240101-100000")
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(docs) != 1 || docs[0].FinalSender != "AOK" || docs[0].DatePrefix != "2024-01-01" {
		t.Fatalf("legacy row lost: %+v", docs)
	}
	if docs[0].Fingerprint != "" || docs[0].CacheHit {
		t.Errorf("new columns should be empty: %+v", docs[0])
	}

	run, err := NewRunRepository(db, nil).Get(context.Background(), "20240101-100000")
	if err != nil {
		t.Fatal(err)
	}
	if run.EndedAt == nil || run.StartedAt.Year() != 2024 {
		t.Errorf("legacy run = %+v", run)
	}
}

func TestRunEndsOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	runs := NewRunRepository(db, nil)

	if _, err := runs.Start(ctx, "20250314-093000-abcdef12", true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c := entity.Counters{Total: 3, Success: 1, Fallback: 1, Failed: 1}
	if err := runs.End(ctx, "20250314-093000-abcdef12", c); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := runs.End(ctx, "20250314-093000-abcdef12", entity.Counters{}); !errors.Is(err, common.ErrRunAlreadyEnded) {
		t.Fatalf("second End: want ErrRunAlreadyEnded, got %v", err)
	}
	if err := runs.End(ctx, "missing", c); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown run: want ErrNotFound, got %v", err)
	}

	run, err := runs.Get(ctx, "20250314-093000-abcdef12")
	if err != nil {
		t.Fatal(err)
	}
	if run.Counters != c || !run.DryRun || run.EndedAt == nil {
		t.Errorf("run = %+v", run)
	}
}

func TestRunListNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewRunRepository(db, nil).(*runRepo)

	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.Local)
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Hour)
		repo.now = func() time.Time { return at }
		if _, err := repo.Start(ctx, id, false); err != nil {
			t.Fatal(err)
		}
	}
	got, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("List = %v", got)
	}
}

func TestLatestByFingerprint(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := NewRunRepository(db, nil).Start(ctx, "r1", false); err != nil {
		t.Fatal(err)
	}
	docs := NewDocumentRepository(db, nil)

	conf := 0.9
	now := time.Now()
	first := &entity.Document{RunID: "r1", InputPath: "/in/a.pdf", OriginalFilename: "a.pdf", Fingerprint: "fp1",
		FinalSender: "Alt", StageUsed: 1, ProcessedAt: now}
	second := &entity.Document{RunID: "r1", InputPath: "/in/b.pdf", OriginalFilename: "b.pdf", Fingerprint: "fp1",
		FinalSender: "Neu", StageUsed: 2, Stage2Confidence: &conf, Evidence: []string{"x", "y"},
		PDFMetaDate: &now, ProcessedAt: now}
	for _, d := range []*entity.Document{first, second} {
		if _, err := docs.Insert(ctx, d); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if second.ID <= first.ID {
		t.Fatalf("ids not increasing: %d %d", first.ID, second.ID)
	}

	got, err := docs.LatestByFingerprint(ctx, "fp1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != second.ID || got.FinalSender != "Neu" {
		t.Fatalf("latest = %+v", got)
	}
	if got.Stage2Confidence == nil || *got.Stage2Confidence != 0.9 || got.Stage1Confidence != nil {
		t.Errorf("stage confidences = %v %v", got.Stage1Confidence, got.Stage2Confidence)
	}
	if len(got.Evidence) != 2 || got.PDFMetaDate == nil {
		t.Errorf("round trip lost fields: %+v", got)
	}

	for _, fp := range []string{"", "  ", "unknown"} {
		d, err := docs.LatestByFingerprint(ctx, fp)
		if err != nil || d != nil {
			t.Errorf("fp %q: %v, %v", fp, d, err)
		}
	}
}

func TestInsertRecordsError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if _, err := NewRunRepository(db, nil).Start(ctx, "r1", false); err != nil {
		t.Fatal(err)
	}
	docs := NewDocumentRepository(db, nil)
	d := &entity.Document{RunID: "r1", InputPath: "/in/x.pdf", OriginalFilename: "x.pdf", ProcessedAt: time.Now()}
	d.SetError(errors.New("ocr failed"))
	if _, err := docs.Insert(ctx, d); err != nil {
		t.Fatal(err)
	}
	list, err := docs.ListByRun(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || !list[0].Failed() || *list[0].Error != "ocr failed" {
		t.Errorf("list = %+v", list)
	}
}

func TestRebind(t *testing.T) {
	if got := Postgres.Rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("postgres = %s", got)
	}
	if got := SQLite.Rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite = %s", got)
	}
}
