package mover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/entity"
)

var ErrDestinationExists = errors.New("destination exists")

// Mover relocates files without ever overwriting an existing one.
type Mover struct {
	logger *slog.Logger
	rename func(oldpath, newpath string) error
}

func New(logger *slog.Logger) *Mover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mover{logger: logger, rename: os.Rename}
}

// Move renames src to dst, creating parent directories. Across filesystems the
// file is copied next to dst, synced, renamed into place and only then is src removed.
// Errors wrap common.ErrMove; on failure src is left untouched.
func (m *Mover) Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return common.KindWrap(common.ErrMove, fmt.Errorf("create target dir: %w", err))
	}
	if _, err := os.Lstat(dst); err == nil {
		return common.KindWrap(common.ErrMove, fmt.Errorf("%w: %s", ErrDestinationExists, dst))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return common.KindWrap(common.ErrMove, err)
	}

	err := m.rename(src, dst)
	if err == nil {
		m.logger.Debug("mover.rename.ok", "src", src, "dst", dst)
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return common.KindWrap(common.ErrMove, fmt.Errorf("rename: %w", err))
	}

	m.logger.Info("mover.cross_device.copy", "src", src, "dst", dst)
	if err := copyInto(src, dst); err != nil {
		return common.KindWrap(common.ErrMove, err)
	}
	if err := os.Remove(src); err != nil {
		// the copy is complete; a leftover source is reported but the move counts
		m.logger.Warn("mover.cross_device.remove_source_failed", "src", src, "error", err)
	}
	return nil
}

func copyInto(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".pdf-filer-*.part")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if st, statErr := in.Stat(); statErr == nil {
		_ = os.Chtimes(tmp.Name(), st.ModTime(), st.ModTime())
	}
	if _, statErr := os.Lstat(dst); statErr == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}

type UndoStatus string

const (
	UndoRestored UndoStatus = "restored"
	UndoMissing  UndoStatus = "missing"  // file no longer at its target
	UndoOccupied UndoStatus = "occupied" // something new sits at the input path
	UndoFailed   UndoStatus = "failed"
)

type UndoResult struct {
	DocumentID int64
	From       string
	To         string
	Status     UndoStatus
	Err        error
}

// UndoRun moves the documents of a run back to their input paths, newest first.
// Dry-run rows and rows that were never moved are ignored.
func (m *Mover) UndoRun(ctx context.Context, docs []*entity.Document) ([]UndoResult, error) {
	moved := make([]*entity.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil && d.Moved() {
			moved = append(moved, d)
		}
	}
	sort.SliceStable(moved, func(i, j int) bool { return moved[i].ID > moved[j].ID })

	results := make([]UndoResult, 0, len(moved))
	for _, d := range moved {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := UndoResult{DocumentID: d.ID, From: d.FinalTargetPath, To: d.InputPath}
		switch _, err := os.Lstat(d.FinalTargetPath); {
		case errors.Is(err, fs.ErrNotExist):
			res.Status = UndoMissing
		case err != nil:
			res.Status, res.Err = UndoFailed, err
		default:
			if err := m.Move(d.FinalTargetPath, d.InputPath); err != nil {
				if errors.Is(err, ErrDestinationExists) {
					res.Status = UndoOccupied
				} else {
					res.Status, res.Err = UndoFailed, err
				}
			} else {
				res.Status = UndoRestored
			}
		}
		m.logger.Info("mover.undo", "document_id", d.ID, "from", res.From, "to", res.To, "status", res.Status)
		results = append(results, res)
	}
	return results, nil
}
