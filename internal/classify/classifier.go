package classify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/llm"
)

type Config struct {
	Stage1Model     string
	Stage2Model     string
	ThresholdAccept float64
	RequireEvidence bool
	Temperature     float64
	MaxInputChars   int
	Timeout         time.Duration // per stage
}

// Decision is the outcome of a classification. Stage2 is nil when stage 1 was accepted.
type Decision struct {
	Final     llm.Result
	StageUsed int
	Stage1    *llm.Result
	Stage2    *llm.Result
}

// Classifier runs the small model first and escalates to the larger one
// only when the first answer is not confident enough.
type Classifier struct {
	cfg    Config
	gen    llm.Generator
	logger *slog.Logger
}

func NewClassifier(cfg Config, gen llm.Generator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &Classifier{cfg: cfg, gen: gen, logger: logger}
}

func FromConfig(c common.ClassificationConfig) Config {
	return Config{
		Stage1Model:     c.Stage1Model,
		Stage2Model:     c.Stage2Model,
		ThresholdAccept: c.ThresholdAccept,
		RequireEvidence: c.RequireEvidence,
		Temperature:     c.Temperature,
		MaxInputChars:   c.MaxInputChars,
		Timeout:         c.Timeout(),
	}
}

// Classify asks stage 1 and, unless its answer is accepted, stage 2 with the same prompt.
// Any stage failure aborts the classification with common.ErrClassification;
// a failed stage 2 still reports the stage 1 answer.
func (c *Classifier) Classify(ctx context.Context, text string, knownSenders, folders []string) (Decision, error) {
	prompt := llm.BuildPrompt(truncateRunes(text, c.cfg.MaxInputChars), knownSenders, folders)

	r1, err := c.stage(ctx, 1, c.cfg.Stage1Model, prompt)
	if err != nil {
		return Decision{}, err
	}
	if c.accepted(r1) {
		c.logger.Info("classify.stage1.accepted", "sender", r1.SenderCanonical, "confidence", r1.Confidence)
		return Decision{Final: r1, StageUsed: 1, Stage1: &r1}, nil
	}

	c.logger.Info("classify.stage1.escalate",
		"confidence", r1.Confidence,
		"evidence", len(r1.Evidence),
		"threshold", c.cfg.ThresholdAccept,
	)
	r2, err := c.stage(ctx, 2, c.cfg.Stage2Model, prompt)
	if err != nil {
		return Decision{Stage1: &r1}, err
	}

	d := Decision{Stage1: &r1, Stage2: &r2}
	// ties go to the larger model
	if r2.Confidence >= r1.Confidence {
		d.Final, d.StageUsed = r2, 2
	} else {
		d.Final, d.StageUsed = r1, 1
	}
	c.logger.Info("classify.done",
		"stage_used", d.StageUsed,
		"sender", d.Final.SenderCanonical,
		"confidence", d.Final.Confidence,
	)
	return d, nil
}

func (c *Classifier) accepted(r llm.Result) bool {
	if r.Confidence < c.cfg.ThresholdAccept {
		return false
	}
	return !c.cfg.RequireEvidence || len(r.Evidence) > 0
}

func (c *Classifier) stage(ctx context.Context, n int, model, prompt string) (llm.Result, error) {
	sctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.gen.Generate(sctx, model, prompt, c.cfg.Temperature)
	if err != nil {
		c.logger.Error("classify.stage.failed", "stage", n, "model", model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Result{}, common.KindWrap(common.ErrClassification, fmt.Errorf("stage %d (%s): %w", n, model, err))
	}
	r, err := llm.ParseResult(raw, model, c.logger)
	if err != nil {
		c.logger.Error("classify.stage.unparseable", "stage", n, "model", model, "error", err, "raw_len", len(raw))
		return llm.Result{}, common.KindWrap(common.ErrClassification, fmt.Errorf("stage %d (%s): parse: %w", n, model, err))
	}
	c.logger.Debug("classify.stage.ok", "stage", n, "model", model, "confidence", r.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds())
	return r, nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
