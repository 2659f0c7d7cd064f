package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidInput is returned when the candidate prompt is absent or not text.
	ErrInvalidInput = errors.New("prompt must be a non-null string")
	// ErrRejected matches every *RejectionError.
	ErrRejected = errors.New("prompt rejected by security validation")
)

// RejectionError carries the reasons a prompt was blocked. Its message is
// built from reason descriptions only.
type RejectionError struct {
	Reasons []Reason
}

func (e *RejectionError) Error() string {
	descriptions := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		descriptions = append(descriptions, r.Description)
	}
	return "Security validation failed: " + strings.Join(descriptions, "; ")
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// Status is the read-only diagnostic view of a guard.
type Status struct {
	Policy              Policy     `json:"policy"`
	Fingerprint         string     `json:"fingerprint"`
	HasCompiledPatterns bool       `json:"has_compiled_patterns"`
	ActivePatterns      int        `json:"active_patterns"`
	Cache               CacheStats `json:"cache"`
}

// Guard is the entry point used by prompt submission. It validates a
// candidate prompt under a fixed policy and returns the sanitized text that
// must be used downstream.
type Guard struct {
	engine      *Engine
	policy      Policy
	fingerprint string
	logger      *zerolog.Logger
}

func NewGuard(engine *Engine, policy Policy, logger *zerolog.Logger) *Guard {
	return &Guard{
		engine:      engine,
		policy:      policy,
		fingerprint: policy.Fingerprint(),
		logger:      logger,
	}
}

// Check validates raw and returns the sanitized prompt. raw must be a string
// or a non-nil *string; anything else fails with ErrInvalidInput before any
// pattern work. Blocked prompts fail with a *RejectionError.
func (g *Guard) Check(raw any) (string, error) {
	text, err := asText(raw)
	if err != nil {
		return "", err
	}

	result := g.Inspect(text)
	if result.Blocked {
		return "", &RejectionError{Reasons: result.Reasons}
	}
	return result.Sanitized, nil
}

// Inspect runs the engine and returns the full result. Warnings are logged.
func (g *Guard) Inspect(text string) Result {
	result := g.engine.validate(text, g.policy, g.fingerprint)
	for _, w := range result.Warnings {
		g.logger.Warn().
			Str("kind", w.Kind).
			Strs("patterns", w.PatternIDs).
			Msg(w.Message)
	}
	if result.Blocked {
		g.logger.Info().
			Strs("patterns", result.PatternIDs()).
			Dur("elapsed", result.Timing.Total).
			Msg("prompt blocked")
	}
	return result
}

// Policy returns the policy the guard enforces.
func (g *Guard) Policy() Policy {
	return g.policy
}

func (g *Guard) Status() Status {
	compiler := g.engine.Compiler()
	status := Status{
		Policy:      g.policy,
		Fingerprint: g.fingerprint,
		Cache:       compiler.Stats(),
	}
	if set, ok := compiler.peek(g.fingerprint); ok {
		status.HasCompiledPatterns = true
		status.ActivePatterns = set.Len()
	}
	return status
}

// ResetCache clears memoized pattern sets. Safe to call at any time.
func (g *Guard) ResetCache() {
	g.engine.Compiler().Reset()
}

func asText(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case *string:
		if v == nil {
			return "", ErrInvalidInput
		}
		return *v, nil
	case nil:
		return "", ErrInvalidInput
	default:
		return "", fmt.Errorf("%w: got %T", ErrInvalidInput, raw)
	}
}
