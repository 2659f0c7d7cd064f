package security

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// Per-category match caps bound the work done on prompts engineered to
	// trigger many rules.
	normalMatchCap = 3
	longMatchCap   = 1
)

const (
	descPromptInjection = "Potential prompt injection detected"
	descValidationError = "Unable to validate the prompt"
	descContentPrefix   = "Content policy violation"
)

// Engine runs the validation pipeline for a policy:
// sanitize, whitelist, injection, explicit content, suspicious.
type Engine struct {
	compiler *Compiler
	logger   *zerolog.Logger
}

func NewEngine(compiler *Compiler, logger *zerolog.Logger) *Engine {
	return &Engine{
		compiler: compiler,
		logger:   logger,
	}
}

// Compiler returns the pattern compiler backing the engine.
func (e *Engine) Compiler() *Compiler {
	return e.compiler
}

// Validate returns the verdict for text under policy. Blocking conditions are
// returned as data; a fault inside the pipeline yields a blocked result.
func (e *Engine) Validate(text string, policy Policy) Result {
	return e.validate(text, policy, "")
}

// validate runs the pipeline. An empty fingerprint is computed from policy
// only when a pattern set is needed.
func (e *Engine) validate(text string, policy Policy, fingerprint string) (result Result) {
	result = Result{
		Original:  text,
		Sanitized: text,
		Valid:     true,
	}
	if policy.Disabled() {
		return result
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("validation pipeline fault")
			result.Valid = false
			result.Blocked = true
			result.Warnings = nil
			result.Reasons = []Reason{{
				Category:    ReasonValidationError,
				Description: descValidationError,
			}}
		}
		result.Timing.Total = time.Since(start)
	}()

	if fingerprint == "" {
		fingerprint = policy.Fingerprint()
	}
	set := e.compiler.compile(fingerprint, policy)

	stageStart := time.Now()
	sanitized := Sanitize(text, policy)
	result.Sanitized = sanitized
	result.record(StageSanitize, stageStart)

	long := policy.IsLong(utf8.RuneCountInString(sanitized))
	matchCap := normalMatchCap
	if long {
		matchCap = longMatchCap
	}

	// Whitelist matches take precedence over every blocking check.
	if len(set.Whitelist) > 0 {
		stageStart = time.Now()
		hits := matchPatterns(set.Whitelist, sanitized, 1)
		result.record(StageWhitelist, stageStart)
		if len(hits) > 0 {
			result.Warnings = append(result.Warnings, Warning{
				Kind:       WarningWhitelisted,
				Message:    "Prompt matched a whitelist pattern; detection checks skipped",
				PatternIDs: patternIDs(hits),
			})
			return result
		}
	}

	var warnings []Warning

	if policy.DetectPromptInjection && len(set.Injection) > 0 {
		stageStart = time.Now()
		hits := matchPatterns(set.Injection, sanitized, matchCap)
		result.record(StageInjection, stageStart)

		blocking, advisory := splitBySeverity(hits, func(p Pattern) bool {
			return p.Severity == SeverityHigh || policy.Level == LevelStrict
		})
		if len(blocking) > 0 {
			result.block(Reason{
				Category:    ReasonPromptInjection,
				Description: descPromptInjection,
				PatternIDs:  patternIDs(blocking),
			})
			return result
		}
		if len(advisory) > 0 {
			warnings = append(warnings, Warning{
				Kind:       WarningPromptInjection,
				Message:    "Possible instruction manipulation",
				PatternIDs: patternIDs(advisory),
			})
		}
	}

	skipContent := long && policy.Level == LevelBasic
	if policy.BlockExplicitContent && !skipContent && len(set.Explicit) > 0 {
		stageStart = time.Now()
		hits := matchPatterns(set.Explicit, sanitized, matchCap)
		result.record(StageContent, stageStart)

		blocking, _ := splitBySeverity(hits, func(p Pattern) bool {
			return p.Severity == SeverityHigh
		})
		if len(blocking) > 0 {
			result.block(Reason{
				Category:    ReasonExplicitContent,
				Description: contentDescription(blocking),
				PatternIDs:  patternIDs(blocking),
			})
			return result
		}
	}

	if !long && len(set.Suspicious) > 0 {
		stageStart = time.Now()
		hits := matchPatterns(set.Suspicious, sanitized, matchCap)
		result.record(StageSuspicious, stageStart)
		if len(hits) > 0 {
			warnings = append(warnings, Warning{
				Kind:       WarningSuspicious,
				Message:    "Suspicious prompt pattern detected",
				PatternIDs: patternIDs(hits),
			})
		}
	}

	result.Warnings = append(result.Warnings, warnings...)
	return result
}

func (r *Result) record(stage string, since time.Time) {
	r.Timing.Stages = append(r.Timing.Stages, StageTiming{
		Stage:    stage,
		Duration: time.Since(since),
	})
}

func (r *Result) block(reason Reason) {
	r.Valid = false
	r.Blocked = true
	r.Reasons = append(r.Reasons, reason)
}

// matchPatterns evaluates patterns in order and stops once limit matched.
func matchPatterns(patterns []Pattern, text string, limit int) []Pattern {
	var hits []Pattern
	for _, p := range patterns {
		if p.Matcher.MatchString(text) {
			hits = append(hits, p)
			if len(hits) >= limit {
				break
			}
		}
	}
	return hits
}

func splitBySeverity(hits []Pattern, blocks func(Pattern) bool) (blocking, advisory []Pattern) {
	for _, p := range hits {
		if blocks(p) {
			blocking = append(blocking, p)
		} else {
			advisory = append(advisory, p)
		}
	}
	return blocking, advisory
}

func patternIDs(patterns []Pattern) []string {
	ids := make([]string, 0, len(patterns))
	for _, p := range patterns {
		ids = append(ids, p.ID)
	}
	return ids
}

func contentDescription(hits []Pattern) string {
	var labels []string
	seen := make(map[ContentCategory]bool)
	for _, p := range hits {
		if p.Content == "" || seen[p.Content] {
			continue
		}
		seen[p.Content] = true
		labels = append(labels, strings.ReplaceAll(string(p.Content), "_", " "))
	}
	if len(labels) == 0 {
		return descContentPrefix
	}
	return fmt.Sprintf("%s: %s", descContentPrefix, strings.Join(labels, ", "))
}
