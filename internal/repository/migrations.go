package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/pdf-filer/internal/common"
)

// migration steps must be idempotent: a legacy database may already carry
// some of the tables or columns they create.
type migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx, d Dialect) error
}

type column struct {
	table, name, typ string
}

var migrations = []migration{
	{1, "base tables", migrateBase},
	{2, "audit columns", addColumns([]column{
		{"documents", "file_fingerprint", "TEXT"},
		{"documents", "naming_template", "TEXT"},
		{"documents", "final_filename_label", "TEXT"},
		{"documents", "final_evidence", "TEXT"},
		{"documents", "final_notes", "TEXT"},
		{"documents", "final_filename", "TEXT"},
		{"documents", "llm_target_folder", "TEXT"},
		{"documents", "llm_is_private", "INTEGER"},
		{"documents", "llm_folder_reason", "TEXT"},
	},
		"CREATE INDEX IF NOT EXISTS idx_documents_sender ON documents(final_sender_canonical)",
		"CREATE INDEX IF NOT EXISTS idx_documents_fingerprint ON documents(file_fingerprint)",
	)},
	{3, "dry run and cache columns", addColumns([]column{
		{"documents", "dry_run", "INTEGER DEFAULT 0"},
		{"documents", "cache_hit", "INTEGER DEFAULT 0"},
		{"documents", "stage1_confidence", "REAL"},
		{"documents", "stage2_confidence", "REAL"},
		{"runs", "dry_run", "INTEGER DEFAULT 0"},
	},
		"CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)",
	)},
}

// base columns of documents besides id, run_id, input_path, original_filename and processed_at
var baseDocumentColumns = []column{
	{"documents", "file_size_bytes", "INTEGER"},
	{"documents", "file_created_at", "TEXT"},
	{"documents", "pdf_meta_created_at", "TEXT"},
	{"documents", "chosen_date_prefix", "TEXT"},
	{"documents", "date_source", "TEXT"},
	{"documents", "extraction_method", "TEXT"},
	{"documents", "pages_processed", "INTEGER"},
	{"documents", "extracted_char_count", "INTEGER"},
	{"documents", "final_sender_canonical", "TEXT"},
	{"documents", "final_confidence", "REAL"},
	{"documents", "final_document_type", "TEXT"},
	{"documents", "final_target_folder", "TEXT"},
	{"documents", "final_target_path", "TEXT"},
	{"documents", "routed_to_fallback", "INTEGER"},
	{"documents", "stage_used", "INTEGER"},
	{"documents", "llm_model_stage1", "TEXT"},
	{"documents", "llm_model_stage2", "TEXT"},
	{"documents", "llm_raw_json_stage1", "TEXT"},
	{"documents", "llm_raw_json_stage2", "TEXT"},
	{"documents", "llm_raw_json_final", "TEXT"},
	{"documents", "error", "TEXT"},
}

func migrateBase(ctx context.Context, tx *sql.Tx, d Dialect) error {
	var cols strings.Builder
	for _, c := range baseDocumentColumns {
		cols.WriteString(",\n  " + c.name + " " + c.typ)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  ended_at TEXT,
  count_total INTEGER DEFAULT 0,
  count_success INTEGER DEFAULT 0,
  count_fallback INTEGER DEFAULT 0,
  count_failed INTEGER DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS documents (
  id ` + d.autoIncrementPK() + `,
  run_id TEXT NOT NULL REFERENCES runs(run_id),
  input_path TEXT NOT NULL,
  original_filename TEXT NOT NULL,
  processed_at TEXT NOT NULL` + cols.String() + `
)`,
	}
	if err := execAll(ctx, tx, stmts); err != nil {
		return err
	}
	// tables created by older releases may lack some base columns
	return addColumns(baseDocumentColumns,
		"CREATE INDEX IF NOT EXISTS idx_documents_run_id ON documents(run_id)",
	)(ctx, tx, d)
}

func addColumns(cols []column, after ...string) func(context.Context, *sql.Tx, Dialect) error {
	return func(ctx context.Context, tx *sql.Tx, d Dialect) error {
		existing := map[string]map[string]bool{}
		for _, c := range cols {
			have, ok := existing[c.table]
			if !ok {
				var err error
				if have, err = d.columns(ctx, tx, c.table); err != nil {
					return fmt.Errorf("inspect %s: %w", c.table, err)
				}
				existing[c.table] = have
			}
			if have[c.name] {
				continue
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.typ)); err != nil {
				return fmt.Errorf("add %s.%s: %w", c.table, c.name, err)
			}
			have[c.name] = true
		}
		return execAll(ctx, tx, after)
	}
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Migrate applies every migration not yet recorded in schema_migrations, in order,
// each inside its own transaction. Running it again is a no-op.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL
)`); err != nil {
		return common.KindWrap(common.ErrDatabase, fmt.Errorf("create schema_migrations: %w", err))
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return common.KindWrap(common.ErrDatabase, err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			db.logger.Error("repository.migrate.failed", "version", m.Version, "name", m.Name, "error", err)
			return common.KindWrap(common.ErrDatabase, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err))
		}
		db.logger.Info("repository.migrate.applied", "version", m.Version, "name", m.Name)
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.Up(ctx, tx, db.Dialect); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		db.Dialect.Rebind("INSERT INTO schema_migrations(version, name, applied_at) VALUES (?, ?, ?)"),
		m.Version, m.Name, formatTime(time.Now())); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

// SchemaVersion returns the highest applied migration version, 0 for a fresh store.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, common.KindWrap(common.ErrDatabase, err)
	}
	return int(v.Int64), nil
}
