package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"

	"github.com/povarna/generative-ai-agents/llm-bridge/internal/security"
)

const (
	DefaultStream = "security-events"
	DefaultGroup  = "security-auditors"

	payloadField = "payload"
)

// Event is a security rejection as recorded on the audit stream.
// The prompt itself is never stored.
type Event struct {
	RequestID    string    `json:"request_id"`
	Provider     string    `json:"provider,omitempty"`
	Source       string    `json:"source"`
	PromptSHA256 string    `json:"prompt_sha256"`
	PromptLength int       `json:"prompt_length"`
	Categories   []string  `json:"categories"`
	PatternIDs   []string  `json:"pattern_ids"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher records rejection events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewRejectionEvent builds an event from the rejected prompt and the reasons it was blocked.
func NewRejectionEvent(requestID, provider, source, prompt string, reasons []security.Reason) Event {
	sum := sha256.Sum256([]byte(prompt))

	categories := make([]string, 0, len(reasons))
	patternIDs := []string{}
	for _, r := range reasons {
		categories = append(categories, r.Category)
		patternIDs = append(patternIDs, r.PatternIDs...)
	}

	return Event{
		RequestID:    requestID,
		Provider:     provider,
		Source:       source,
		PromptSHA256: hex.EncodeToString(sum[:]),
		PromptLength: utf8.RuneCountInString(prompt),
		Categories:   categories,
		PatternIDs:   patternIDs,
		OccurredAt:   time.Now().UTC(),
	}
}

// NopPublisher drops every event. Used when no Redis is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
