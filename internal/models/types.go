package models

import (
	"time"
)

// AskRequest is the input of a single-provider prompt. Prompt is a pointer so
// that an explicit null can be told apart from an empty string.
type AskRequest struct {
	Prompt      *string  `json:"prompt" jsonschema:"the prompt to send to the model"`
	MaxTokens   int      `json:"max_tokens,omitempty" jsonschema:"maximum tokens to generate"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature"`
}

// AskResponse is the relayed answer of one provider.
type AskResponse struct {
	RequestID  string        `json:"request_id"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model,omitempty"`
	Content    string        `json:"content"`
	StopReason string        `json:"stop_reason,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// ProviderAnswer is one provider's slot in a comparison. Error is set
// instead of Content when the upstream call failed.
type ProviderAnswer struct {
	Provider   string        `json:"provider"`
	Model      string        `json:"model,omitempty"`
	Content    string        `json:"content,omitempty"`
	StopReason string        `json:"stop_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

type CompareResponse struct {
	RequestID string           `json:"request_id"`
	Answers   []ProviderAnswer `json:"answers"`
}
