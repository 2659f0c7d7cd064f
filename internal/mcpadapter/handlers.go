package mcpadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/llm"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/models"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/security"
)

// Bridge is the prompt-forwarding surface the tools expose.
type Bridge interface {
	Ask(ctx context.Context, provider llm.Provider, req models.AskRequest) (*models.AskResponse, error)
	Compare(ctx context.Context, req models.AskRequest) (*models.CompareResponse, error)
}

// StatusReporter exposes the guard diagnostics.
type StatusReporter interface {
	Status() security.Status
}

// StatusInput is the empty input of the security_status tool.
type StatusInput struct{}

// NewServer builds the MCP server with every bridge tool registered.
func NewServer(name, version string, bridge Bridge, status StatusReporter) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_claude",
		Description: "Send a prompt to Claude on AWS Bedrock. The prompt is validated and sanitized before it is forwarded.",
	}, NewAskHandler(bridge, llm.ProviderClaude))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_gpt",
		Description: "Send a prompt to an OpenAI GPT model. The prompt is validated and sanitized before it is forwarded.",
	}, NewAskHandler(bridge, llm.ProviderGPT))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compare_models",
		Description: "Send the same prompt to every configured model and return the answers side by side.",
	}, NewCompareHandler(bridge))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "security_status",
		Description: "Show the effective security policy and the compiled pattern cache state.",
	}, NewStatusHandler(status))

	return server
}

// NewAskHandler returns a tool handler that forwards to one provider.
// Rejections surface as tool errors carrying the rejection message.
func NewAskHandler(bridge Bridge, provider llm.Provider) func(context.Context, *mcp.CallToolRequest, models.AskRequest) (*mcp.CallToolResult, models.AskResponse, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input models.AskRequest) (*mcp.CallToolResult, models.AskResponse, error) {
		resp, err := bridge.Ask(ctx, provider, input)
		if err != nil {
			return nil, models.AskResponse{}, err
		}
		return textResult(resp.Content), *resp, nil
	}
}

func NewCompareHandler(bridge Bridge) func(context.Context, *mcp.CallToolRequest, models.AskRequest) (*mcp.CallToolResult, models.CompareResponse, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input models.AskRequest) (*mcp.CallToolResult, models.CompareResponse, error) {
		resp, err := bridge.Compare(ctx, input)
		if err != nil {
			return nil, models.CompareResponse{}, err
		}
		return textResult(formatComparison(resp)), *resp, nil
	}
}

func NewStatusHandler(status StatusReporter) func(context.Context, *mcp.CallToolRequest, StatusInput) (*mcp.CallToolResult, security.Status, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, security.Status, error) {
		s := status.Status()
		if s.Policy.CustomWhitelist == nil {
			s.Policy.CustomWhitelist = []string{}
		}
		return nil, s, nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func formatComparison(resp *models.CompareResponse) string {
	var b strings.Builder
	for i, a := range resp.Answers {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s", a.Provider)
		if a.Model != "" {
			fmt.Fprintf(&b, " (%s)", a.Model)
		}
		b.WriteString("\n")
		if a.Error != "" {
			fmt.Fprintf(&b, "error: %s", a.Error)
			continue
		}
		b.WriteString(a.Content)
	}
	return b.String()
}
