package constants

// ExtractionMethod records how the text of a document was obtained.
type ExtractionMethod string

// Stable values (store these exact strings in DB).
const (
	MethodTextLayer ExtractionMethod = "textlayer"
	MethodVisionOCR ExtractionMethod = "vision_ocr"
)

// DateSource names one entry of the date priority list.
type DateSource string

const (
	DateSourcePDFMeta       DateSource = "pdf_meta"
	DateSourceFileBirthtime DateSource = "file_birthtime"
	DateSourceMtime         DateSource = "mtime"
	DateSourceToday         DateSource = "today"
)

// DocumentOutcome is how a processed document is tallied in its run.
type DocumentOutcome string

const (
	OutcomeSuccess  DocumentOutcome = "success"
	OutcomeFallback DocumentOutcome = "fallback"
	OutcomeFailed   DocumentOutcome = "failed"
)

const (
	DefaultLabel = "Dokument"
	FallbackHint = "Unklar"
	DateLayout   = "2006-01-02"
	RunIDLayout  = "20060102-150405"
)

// FallbackFolderSynonyms are model folder suggestions that mean "put it in the fallback bucket".
var FallbackFolderSynonyms = map[string]struct{}{
	"_unklar":  {},
	"unklar":   {},
	"fallback": {},
	"unclear":  {},
}
