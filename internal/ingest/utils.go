package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// IsCandidate reports whether a file name looks like an inbox PDF worth processing.
// Editor lock files, macOS resource forks and hidden files are ignored.
func IsCandidate(path string) bool {
	if !constants.IsPDFExt(filepath.Ext(path)) {
		return false
	}
	name := strings.ToLower(filepath.Base(path))
	if _, skip := constants.SkipNames[name]; skip {
		return false
	}
	for _, p := range constants.SkipPrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return !IsHidden(name)
}
