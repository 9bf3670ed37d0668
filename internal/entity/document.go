package entity

import (
	"time"
)

// Document is one processed file of one run. Rows are inserted once and never updated.
type Document struct {
	ID               int64     `json:"id"`
	RunID            string    `json:"run_id"`
	InputPath        string    `json:"input_path"`
	OriginalFilename string    `json:"original_filename"`
	Fingerprint      string    `json:"fingerprint"`
	SizeBytes        int64     `json:"size_bytes"`
	ProcessedAt      time.Time `json:"processed_at"`

	ExtractionMethod string `json:"extraction_method"` // textlayer | vision_ocr
	PagesProcessed   int    `json:"pages_processed"`
	ExtractedChars   int    `json:"extracted_chars"`

	DatePrefix    string     `json:"date_prefix"` // YYYY-MM-DD
	DateSource    string     `json:"date_source"`
	PDFMetaDate   *time.Time `json:"pdf_meta_date,omitempty"`
	FileBirthTime *time.Time `json:"file_birthtime,omitempty"`

	FinalSender       string   `json:"final_sender"`
	FinalConfidence   float64  `json:"final_confidence"`
	DocumentType      string   `json:"document_type"`
	FilenameLabel     string   `json:"filename_label"`
	Evidence          []string `json:"evidence"`
	Notes             string   `json:"notes"`
	IsPrivate         bool     `json:"is_private"`
	LLMTargetFolder   string   `json:"llm_target_folder"`
	LLMFolderReason   string   `json:"llm_folder_reason"`
	StageUsed         int      `json:"stage_used"` // 0 = not classified
	Stage1Model       string   `json:"stage1_model"`
	Stage2Model       string   `json:"stage2_model"`
	Stage1Confidence  *float64 `json:"stage1_confidence,omitempty"`
	Stage2Confidence  *float64 `json:"stage2_confidence,omitempty"`
	RawJSONStage1     string   `json:"raw_json_stage1"`
	RawJSONStage2     string   `json:"raw_json_stage2"`
	RawJSONFinal      string   `json:"raw_json_final"`
	CacheHit          bool     `json:"cache_hit"`
	NamingTemplate    string   `json:"naming_template"`

	FinalFolder      string `json:"final_folder"`
	FinalTargetPath  string `json:"final_target_path"`
	FinalFilename    string `json:"final_filename"`
	RoutedToFallback bool   `json:"routed_to_fallback"`

	Error  *string `json:"error,omitempty"`
	DryRun bool    `json:"dry_run"`
}

// Failed reports whether processing recorded an error.
func (d *Document) Failed() bool {
	return d.Error != nil && *d.Error != ""
}

// Moved reports whether the file was actually moved to FinalTargetPath.
// FinalTargetPath is only recorded once the move succeeded or, in a dry run, was planned.
func (d *Document) Moved() bool {
	return !d.DryRun && d.FinalTargetPath != ""
}

// SetError records err as the document error. A later error is appended to an earlier one.
func (d *Document) SetError(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if d.Failed() {
		msg = *d.Error + "; " + msg
	}
	d.Error = &msg
}
