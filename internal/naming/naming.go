// Package naming builds dated, filesystem-safe filenames and resolves collisions
// in the destination folder without ever overwriting an existing file.
package naming

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

// ErrCollisionsExhausted means every suffix up to the configured maximum is taken.
var ErrCollisionsExhausted = errors.New("too many filename collisions")

var (
	reInvalid    = regexp.MustCompile(`[\\/:*?"<>|]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns arbitrary text into a filename stem.
// Illegal characters become "-", whitespace is collapsed, leading and trailing
// spaces/dots are removed and the result is capped at maxLen runes.
func SanitizeFilename(name string, keepUmlauts bool, maxLen int) string {
	name = strings.TrimSpace(name)
	name = reInvalid.ReplaceAllString(name, "-")
	name = strings.Trim(reWhitespace.ReplaceAllString(name, " "), " .")
	if !keepUmlauts {
		name = stripDiacritics(name)
	}
	if name == "" {
		name = constants.DefaultLabel
	}
	if maxLen > 0 {
		if r := []rune(name); len(r) > maxLen {
			name = strings.TrimRight(string(r[:maxLen]), " .")
		}
	}
	return name
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// BuildBaseName prefixes the sanitized stem with the date and separator.
func BuildBaseName(datePrefix, stem, separator string, keepUmlauts bool, maxLen int) string {
	clean := SanitizeFilename(stem, keepUmlauts, maxLen)
	if datePrefix == "" {
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(datePrefix + separator + clean)
}

// StemSource is the default human readable stem: the label followed by the routing hint.
func StemSource(label, hint string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = constants.DefaultLabel
	}
	return strings.TrimSpace(label + " " + strings.TrimSpace(hint))
}

// ResolveCollision returns the first free path in dir: base+ext, then
// base+suffix(n)+ext for n = 1..maxSuffix. suffixFormat carries a "{n}" placeholder.
func ResolveCollision(dir, base, ext, suffixFormat string, maxSuffix int) (string, error) {
	candidate := filepath.Join(dir, base+ext)
	taken, err := exists(candidate)
	if err != nil {
		return "", err
	}
	if !taken {
		return candidate, nil
	}
	for n := 1; n <= maxSuffix; n++ {
		suffix := strings.ReplaceAll(suffixFormat, "{n}", strconv.Itoa(n))
		candidate = filepath.Join(dir, base+suffix+ext)
		taken, err = exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s%s in %s", ErrCollisionsExhausted, base, ext, dir)
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
