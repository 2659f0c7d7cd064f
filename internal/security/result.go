package security

import (
	"time"
)

// Reason categories reported on blocked results.
const (
	ReasonPromptInjection = "prompt_injection"
	ReasonExplicitContent = "explicit_content"
	ReasonValidationError = "validation_error"
)

// Warning kinds reported on results that are not blocked.
const (
	WarningWhitelisted     = "whitelisted"
	WarningSuspicious      = "suspicious"
	WarningPromptInjection = "prompt_injection"
)

// Stage names used in timings.
const (
	StageSanitize   = "sanitize"
	StageWhitelist  = "whitelist"
	StageInjection  = "injection"
	StageContent    = "content"
	StageSuspicious = "suspicious"
)

// Reason explains why a prompt was blocked. PatternIDs reference registry
// patterns by identifier only.
type Reason struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	PatternIDs  []string `json:"pattern_ids,omitempty"`
}

// Warning is a non-blocking observation.
type Warning struct {
	Kind       string   `json:"kind"`
	Message    string   `json:"message"`
	PatternIDs []string `json:"pattern_ids,omitempty"`
}

type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

type Timing struct {
	Stages []StageTiming `json:"stages,omitempty"`
	Total  time.Duration `json:"total_ns"`
}

// Result is the request-scoped verdict of one validation.
type Result struct {
	Original  string    `json:"-"`
	Sanitized string    `json:"-"`
	Valid     bool      `json:"valid"`
	Blocked   bool      `json:"blocked"`
	Warnings  []Warning `json:"warnings,omitempty"`
	Reasons   []Reason  `json:"reasons,omitempty"`
	Timing    Timing    `json:"timing"`
}

// Descriptions returns the reason descriptions in order.
func (r Result) Descriptions() []string {
	out := make([]string, 0, len(r.Reasons))
	for _, reason := range r.Reasons {
		out = append(out, reason.Description)
	}
	return out
}

// PatternIDs returns every pattern identifier referenced by the reasons.
func (r Result) PatternIDs() []string {
	var ids []string
	for _, reason := range r.Reasons {
		ids = append(ids, reason.PatternIDs...)
	}
	return ids
}
