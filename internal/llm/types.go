package llm

// Provider names the upstream model vendor behind a client.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderGPT    Provider = "gpt"
)

type LLMRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type LLMResponse struct {
	Content    string
	StopReason string
	Model      string
}
