package llm

import (
	"regexp"
	"slices"
)

var (
	reIBAN  = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)
	reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)
)

// Redact masks IBANs and email addresses before text is persisted.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = reIBAN.ReplaceAllString(s, "[REDACTED_IBAN]")
	return reEmail.ReplaceAllString(s, "[REDACTED_EMAIL]")
}

// Redacted returns a copy of r with its free-text fields masked.
func (r Result) Redacted() Result {
	out := r
	out.Evidence = slices.Clone(r.Evidence)
	for i := range out.Evidence {
		out.Evidence[i] = Redact(out.Evidence[i])
	}
	out.Notes = Redact(r.Notes)
	out.FolderReason = Redact(r.FolderReason)
	out.RawJSON = Redact(r.RawJSON)
	return out
}
