package constants

import "strings"

const PDFExt = "pdf"

// Entries in the inbox that are never picked up (lowercased basename prefixes / names).
var (
	SkipPrefixes = []string{"._", "~"}
	SkipNames    = map[string]struct{}{".ds_store": {}}
)

// FingerprintMaxBytes caps how much of a file goes into its content fingerprint.
const FingerprintMaxBytes = 5_000_000

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func IsPDFExt(ext string) bool {
	return NormalizeExt(ext) == PDFExt
}
