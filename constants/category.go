package constants

import (
	"strings"
)

// DocumentType is the coarse tag the classifier attaches to a document.
type DocumentType string

const (
	Invoice   DocumentType = "invoice"
	Letter    DocumentType = "letter"
	Contract  DocumentType = "contract"
	Insurance DocumentType = "insurance"
	Other     DocumentType = "other"
)

var allDocumentTypes = []DocumentType{
	Invoice,
	Letter,
	Contract,
	Insurance,
	Other,
}

func DocumentTypesAsStrings() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

// CanonicalDocumentType maps a free-form tag (often German) onto a known type.
// The boolean is false when the tag had to fall back to Other.
func CanonicalDocumentType(input string) (DocumentType, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]DocumentType{
		"rechnung":            Invoice,
		"mahnung":             Invoice,
		"gutschrift":          Invoice,
		"bill":                Invoice,
		"brief":               Letter,
		"schreiben":           Letter,
		"mitteilung":          Letter,
		"vertrag":             Contract,
		"agreement":           Contract,
		"versicherung":        Insurance,
		"police":              Insurance,
		"versicherungsschein": Insurance,
	}

	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocumentTypes {
		if normalized == string(dt) {
			return dt, true
		}
	}

	return Other, false
}
