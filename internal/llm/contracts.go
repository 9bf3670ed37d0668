package llm

import "context"

// Result is the normalized classification the pipeline works with.
// Values are produced by ParseResult and never mutated afterwards.
type Result struct {
	SenderCanonical string   `json:"sender_canonical"`
	Confidence      float64  `json:"confidence"`
	Evidence        []string `json:"evidence"`
	DocumentType    string   `json:"document_type"`
	FilenameLabel   string   `json:"filename_label"`
	Notes           string   `json:"notes"`
	IsPrivate       bool     `json:"is_private"`
	TargetFolder    string   `json:"target_folder"`
	FolderReason    string   `json:"folder_reason"`

	RawJSON string `json:"-"` // model output as received
	Model   string `json:"-"`
}

// Generator sends a prompt to a model and returns its raw text answer.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, temperature float64) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, model, prompt string, temperature float64) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	return f(ctx, model, prompt, temperature)
}
