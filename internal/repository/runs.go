package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/entity"
)

type RunRepository interface {
	Start(ctx context.Context, runID string, dryRun bool) (*entity.Run, error)
	End(ctx context.Context, runID string, counters entity.Counters) error
	Get(ctx context.Context, runID string) (*entity.Run, error)
	List(ctx context.Context, limit int) ([]*entity.Run, error)
}

type runRepo struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepo{db: db, logger: logger, now: time.Now}
}

const runColumns = "run_id, started_at, ended_at, count_total, count_success, count_fallback, count_failed, dry_run"

func (r *runRepo) Start(ctx context.Context, runID string, dryRun bool) (*entity.Run, error) {
	run := &entity.Run{ID: runID, StartedAt: r.now().Truncate(time.Second), DryRun: dryRun}
	_, err := r.db.ExecContext(ctx,
		r.db.Dialect.Rebind("INSERT INTO runs(run_id, started_at, dry_run) VALUES (?, ?, ?)"),
		run.ID, formatTime(run.StartedAt), boolInt(dryRun))
	if err != nil {
		r.logger.Error("repository.run.start_failed", "run_id", runID, "error", err)
		return nil, common.KindWrap(common.ErrDatabase, fmt.Errorf("start run: %w", err))
	}
	return run, nil
}

// End records the end timestamp and counters. It succeeds only once per run.
func (r *runRepo) End(ctx context.Context, runID string, c entity.Counters) error {
	res, err := r.db.ExecContext(ctx, r.db.Dialect.Rebind(`UPDATE runs
SET ended_at = ?, count_total = ?, count_success = ?, count_fallback = ?, count_failed = ?
WHERE run_id = ? AND ended_at IS NULL`),
		formatTime(r.now()), c.Total, c.Success, c.Fallback, c.Failed, runID)
	if err != nil {
		r.logger.Error("repository.run.end_failed", "run_id", runID, "error", err)
		return common.KindWrap(common.ErrDatabase, fmt.Errorf("end run: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.KindWrap(common.ErrDatabase, err)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, runID); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", common.ErrRunAlreadyEnded, runID)
}

func (r *runRepo) Get(ctx context.Context, runID string) (*entity.Run, error) {
	row := r.db.QueryRowContext(ctx, r.db.Dialect.Rebind("SELECT "+runColumns+" FROM runs WHERE run_id = ?"), runID)
	run, err := scanRun(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("%w: run %s", common.ErrNotFound, runID)
	}
	if err != nil {
		return nil, common.KindWrap(common.ErrDatabase, err)
	}
	return run, nil
}

// List returns the most recent runs first.
func (r *runRepo) List(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		r.db.Dialect.Rebind("SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?"), limit)
	if err != nil {
		return nil, common.KindWrap(common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, common.KindWrap(common.ErrDatabase, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*entity.Run, error) {
	var run entity.Run
	var started, ended sql.NullString
	var total, success, fallback, failed, dryRun sql.NullInt64
	if err := s.Scan(&run.ID, &started, &ended, &total, &success, &fallback, &failed, &dryRun); err != nil {
		return nil, err
	}
	if t := parseTime(started); t != nil {
		run.StartedAt = *t
	}
	run.EndedAt = parseTime(ended)
	run.Total, run.Success = int(total.Int64), int(success.Int64)
	run.Fallback, run.Failed = int(fallback.Int64), int(failed.Int64)
	run.DryRun = dryRun.Int64 != 0
	return &run, nil
}
