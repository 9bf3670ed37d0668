package llm

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

const (
	maxEvidenceItems = 3
	maxEvidenceRunes = 120
	maxLabelWords    = 3
	maxLabelRunes    = 32
)

var (
	reSpaces      = regexp.MustCompile(`\s+`)
	reLabelReject = regexp.MustCompile(`[^A-Za-zÄÖÜäöüß ]+`)
)

// NormalizeFilenameLabel reduces a model label to at most three digit-free German words.
func NormalizeFilenameLabel(label string) string {
	label = reSpaces.ReplaceAllString(strings.TrimSpace(label), " ")
	label = strings.Trim(label, " .-_\"'“”„")
	if label == "" || strings.IndexFunc(label, unicode.IsDigit) >= 0 {
		return constants.DefaultLabel
	}

	label = reLabelReject.ReplaceAllString(label, " ")
	words := strings.Fields(label)
	if len(words) == 0 {
		return constants.DefaultLabel
	}
	if len(words) > maxLabelWords {
		words = words[:maxLabelWords]
	}
	label = strings.Join(words, " ")

	if r := []rune(label); len(r) > maxLabelRunes {
		label = strings.TrimRight(string(r[:maxLabelRunes]), " ")
	}
	if label == "" {
		return constants.DefaultLabel
	}
	return label
}

func normalizeEvidence(items []string) []string {
	out := make([]string, 0, maxEvidenceItems)
	for _, e := range items {
		if len(out) == maxEvidenceItems {
			break
		}
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if r := []rune(e); len(r) > maxEvidenceRunes {
			e = string(r[:maxEvidenceRunes])
		}
		out = append(out, e)
	}
	return out
}

func clamp01(f float64) float64 {
	switch {
	case f != f: // NaN
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
