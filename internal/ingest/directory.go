package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListPDFs returns the processable PDFs in dir, sorted. A missing dir yields an empty list.
func ListPDFs(dir string, recursive bool) ([]string, error) {
	paths, _, err := ScanDirectory(dir, recursive)
	return paths, err
}

// ScanDirectory walks dir (only its top level unless recursive), skips hidden
// entries and non-candidates, and returns matching regular files plus stats.
func ScanDirectory(dir string, recursive bool) ([]string, DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(dir) == "" {
		return nil, stats, errors.New("input dir is required")
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return []string{}, stats, nil
	}

	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if path == dir {
			return walkErr
		}
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			return nil // continue walking
		}
		if d.IsDir() {
			if !recursive || IsHidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		// regular files only; symlinks and sockets are skipped
		if !d.Type().IsRegular() || !IsCandidate(path) {
			stats.Skipped++
			return nil
		}
		stats.Matched++
		out = append(out, path)
		return nil
	})
	if err != nil {
		return out, stats, fmt.Errorf("walk: %w", err)
	}

	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out, stats, nil
}
