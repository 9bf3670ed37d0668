package routing

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pdf-filer/constants"
	"github.com/joseph-ayodele/pdf-filer/internal/llm"
	"github.com/joseph-ayodele/pdf-filer/internal/mapping"
	"github.com/joseph-ayodele/pdf-filer/internal/naming"
)

const maxFolderLen = 80

// Rule names the routing step that produced a Decision.
type Rule string

const (
	RuleError         Rule = "error"
	RulePrivate       Rule = "private"
	RuleLowConfidence Rule = "low_confidence"
	RuleLLMFolder     Rule = "llm_folder"
	RuleMapped        Rule = "mapped"
	RuleUnknownSender Rule = "unknown_sender"
	RuleSenderFolder  Rule = "sender_folder"
)

type Policy struct {
	DocumentsDir                 string
	FallbackDir                  string
	ThresholdSafeToFile          float64
	AllowLLMFolderOverride       bool
	LLMFolderOverrideMinConf     float64
	RouteUnknownSenderToFallback bool
}

type Input struct {
	Result   *llm.Result // nil when extraction or classification failed
	HasError bool
}

type Decision struct {
	TargetDir string
	Folder    string
	Hint      string
	Fallback  bool
	Rule      Rule
}

type Router struct {
	policy Policy
	mapper *mapping.Mapper
	logger *slog.Logger
}

func NewRouter(policy Policy, mapper *mapping.Mapper, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if mapper == nil {
		mapper = mapping.NewMapper(mapping.SenderMapping{})
	}
	return &Router{policy: policy, mapper: mapper, logger: logger}
}

// Decide picks the target folder. The first matching rule wins:
// error, privacy, low confidence, LLM folder suggestion, sender mapping.
func (r *Router) Decide(in Input) Decision {
	res := in.Result
	switch {
	case in.HasError || res == nil:
		return r.fallback(RuleError)
	case res.IsPrivate:
		return r.fallback(RulePrivate)
	case res.Confidence < r.policy.ThresholdSafeToFile:
		return r.fallback(RuleLowConfidence)
	}

	if d, ok := r.llmFolder(res); ok {
		return d
	}

	canon := r.mapper.Canonicalize(res.SenderCanonical)
	if folder, ok := r.mapper.FolderFor(canon); ok {
		return r.folder(folder, RuleMapped)
	}
	if canon == "" || r.policy.RouteUnknownSenderToFallback {
		return r.fallback(RuleUnknownSender)
	}
	return r.folder(canon, RuleSenderFolder)
}

func (r *Router) llmFolder(res *llm.Result) (Decision, bool) {
	suggestion := strings.TrimSpace(res.TargetFolder)
	if !r.policy.AllowLLMFolderOverride || suggestion == "" || res.Confidence < r.policy.LLMFolderOverrideMinConf {
		return Decision{}, false
	}
	if r.isFallbackName(suggestion) {
		return r.fallback(RuleLLMFolder), true
	}
	r.logger.Debug("routing.llm_folder.applied", "folder", suggestion, "reason", res.FolderReason)
	return r.folder(suggestion, RuleLLMFolder), true
}

func (r *Router) isFallbackName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if _, ok := constants.FallbackFolderSynonyms[n]; ok {
		return true
	}
	return n == strings.ToLower(filepath.Base(r.policy.FallbackDir))
}

func (r *Router) folder(name string, rule Rule) Decision {
	safe := naming.SanitizeFilename(name, true, maxFolderLen) // folder names keep umlauts
	return Decision{
		TargetDir: filepath.Join(r.policy.DocumentsDir, safe),
		Folder:    safe,
		Hint:      safe,
		Rule:      rule,
	}
}

func (r *Router) fallback(rule Rule) Decision {
	return Decision{
		TargetDir: r.policy.FallbackDir,
		Folder:    filepath.Base(r.policy.FallbackDir),
		Hint:      constants.FallbackHint,
		Fallback:  true,
		Rule:      rule,
	}
}
