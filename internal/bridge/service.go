package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/audit"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/llm"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/models"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/security"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownProvider = errors.New("unknown or unconfigured provider")
	ErrUpstream        = errors.New("upstream model call failed")
)

// Guard validates a candidate prompt and returns the text to forward.
type Guard interface {
	Check(raw any) (string, error)
}

// Defaults fills request fields the caller left empty.
type Defaults struct {
	MaxTokens   int
	Temperature float64
	// Source tags audit events with the surface that received the prompt.
	Source string
}

type Service struct {
	guard     Guard
	clients   map[llm.Provider]llm.LLMClient
	publisher audit.Publisher
	defaults  Defaults
	logger    *zerolog.Logger
}

func NewService(
	guard Guard,
	clients map[llm.Provider]llm.LLMClient,
	publisher audit.Publisher,
	defaults Defaults,
	logger *zerolog.Logger,
) *Service {
	if publisher == nil {
		publisher = audit.NopPublisher{}
	}
	if defaults.MaxTokens <= 0 {
		defaults.MaxTokens = 1024
	}
	return &Service{
		guard:     guard,
		clients:   clients,
		publisher: publisher,
		defaults:  defaults,
		logger:    logger,
	}
}

// Providers lists the configured providers in a stable order.
func (s *Service) Providers() []llm.Provider {
	providers := make([]llm.Provider, 0, len(s.clients))
	for p := range s.clients {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

// Ask validates the prompt and forwards the sanitized text to one provider.
func (s *Service) Ask(ctx context.Context, provider llm.Provider, req models.AskRequest) (*models.AskResponse, error) {
	client, ok := s.clients[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	requestID := uuid.NewString()
	prompt, err := s.validate(ctx, requestID, string(provider), req.Prompt)
	if err != nil {
		return nil, err
	}

	answer := s.invoke(ctx, provider, client, s.buildRequest(prompt, req))
	if answer.err != nil {
		return nil, answer.err
	}

	s.logger.Info().
		Str("requestID", requestID).
		Str("provider", string(provider)).
		Dur("duration", answer.Duration).
		Msg("prompt answered")

	return &models.AskResponse{
		RequestID:  requestID,
		Provider:   answer.Provider,
		Model:      answer.Model,
		Content:    answer.Content,
		StopReason: answer.StopReason,
		Duration:   answer.Duration,
	}, nil
}

// Compare validates the prompt once and asks every configured provider
// concurrently. A provider failure is reported in its own answer.
func (s *Service) Compare(ctx context.Context, req models.AskRequest) (*models.CompareResponse, error) {
	providers := s.Providers()
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: none configured", ErrUnknownProvider)
	}

	requestID := uuid.NewString()
	prompt, err := s.validate(ctx, requestID, "", req.Prompt)
	if err != nil {
		return nil, err
	}

	llmReq := s.buildRequest(prompt, req)
	answers := make([]models.ProviderAnswer, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			a := s.invoke(ctx, p, s.clients[p], llmReq)
			if a.err != nil {
				a.Error = a.err.Error()
				s.logger.Warn().Err(a.err).Str("requestID", requestID).Str("provider", string(p)).Msg("provider failed during compare")
			}
			answers[i] = a.ProviderAnswer
			return nil
		})
	}
	_ = g.Wait()

	return &models.CompareResponse{RequestID: requestID, Answers: answers}, nil
}

func (s *Service) validate(ctx context.Context, requestID, provider string, raw *string) (string, error) {
	prompt, err := s.guard.Check(raw)
	if err == nil {
		return prompt, nil
	}

	var rejection *security.RejectionError
	if errors.As(err, &rejection) {
		s.logger.Warn().
			Str("requestID", requestID).
			Str("provider", provider).
			Str("reason", rejection.Error()).
			Msg("prompt rejected")

		event := audit.NewRejectionEvent(requestID, provider, s.defaults.Source, *raw, rejection.Reasons)
		if pubErr := s.publisher.Publish(ctx, event); pubErr != nil {
			s.logger.Error().Err(pubErr).Str("requestID", requestID).Msg("failed to publish audit event")
		}
	}
	return "", err
}

func (s *Service) buildRequest(prompt string, req models.AskRequest) llm.LLMRequest {
	out := llm.LLMRequest{
		Prompt:      prompt,
		MaxTokens:   s.defaults.MaxTokens,
		Temperature: s.defaults.Temperature,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	return out
}

type invocation struct {
	models.ProviderAnswer
	err error
}

func (s *Service) invoke(ctx context.Context, provider llm.Provider, client llm.LLMClient, req llm.LLMRequest) invocation {
	start := time.Now()
	resp, err := client.InvokeModelWithRetry(ctx, req)
	out := invocation{ProviderAnswer: models.ProviderAnswer{
		Provider: string(provider),
		Duration: time.Since(start),
	}}
	if err != nil {
		out.err = fmt.Errorf("%w: %s: %w", ErrUpstream, provider, err)
		return out
	}
	out.Model = resp.Model
	out.Content = resp.Content
	out.StopReason = resp.StopReason
	return out
}
