package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/pdf-filer/constants"
)

// ParseResult turns a raw model answer into a normalized Result.
func ParseResult(raw, model string, logger *slog.Logger) (Result, error) {
	doc, err := RecoverJSON(raw)
	if err != nil {
		return Result{}, err
	}
	clean, _, err := NormalizeAndSanitizeJSON(doc, logger)
	if err != nil {
		return Result{}, err
	}
	if err := ValidateJSONAgainstSchema(BuildResultJSONSchema(), clean); err != nil {
		return Result{}, err
	}

	var r Result
	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}

	r.SenderCanonical = strings.TrimSpace(r.SenderCanonical)
	r.Confidence = clamp01(r.Confidence)
	r.Evidence = normalizeEvidence(r.Evidence)
	dt, _ := constants.CanonicalDocumentType(r.DocumentType)
	r.DocumentType = string(dt)
	r.FilenameLabel = NormalizeFilenameLabel(r.FilenameLabel)
	r.Notes = strings.TrimSpace(r.Notes)
	r.TargetFolder = strings.TrimSpace(r.TargetFolder)
	r.FolderReason = strings.TrimSpace(r.FolderReason)
	r.RawJSON = raw
	r.Model = model
	return r, nil
}
