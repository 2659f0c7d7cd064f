package batch

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/povarna/generative-ai-agents/llm-bridge/internal/security"
	"github.com/rs/zerolog"
)

// Inspector runs the validation pipeline on one prompt.
type Inspector interface {
	Inspect(text string) security.Result
}

// ScanResult is the verdict for one input record. The prompt text is not
// repeated in the output.
type ScanResult struct {
	ID           string             `json:"id"`
	Line         int                `json:"line"`
	Valid        bool               `json:"valid"`
	Blocked      bool               `json:"blocked"`
	PromptLength int                `json:"prompt_length"`
	Reasons      []security.Reason  `json:"reasons,omitempty"`
	Warnings     []security.Warning `json:"warnings,omitempty"`
	Error        string             `json:"error,omitempty"`
	Duration     time.Duration      `json:"duration_ns"`
}

type Processor struct {
	inspector Inspector
	workers   int
	logger    *zerolog.Logger
}

func NewProcessor(inspector Inspector, workers int, logger *zerolog.Logger) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		inspector: inspector,
		workers:   workers,
		logger:    logger,
	}
}

// Process scans records with a fixed worker pool. Results arrive in
// completion order.
func (p *Processor) Process(ctx context.Context, records <-chan InputRecord) <-chan ScanResult {
	results := make(chan ScanResult)

	var wg sync.WaitGroup
	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range records {
				result := p.scan(record)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Processor) scan(record InputRecord) ScanResult {
	out := ScanResult{ID: record.Record.ID, Line: record.LineNumber}

	if record.Error != nil {
		out.Error = record.Error.Error()
		return out
	}
	if record.Record.Prompt == nil {
		out.Error = security.ErrInvalidInput.Error()
		return out
	}

	text := *record.Record.Prompt
	result := p.inspector.Inspect(text)

	out.Valid = result.Valid
	out.Blocked = result.Blocked
	out.PromptLength = utf8.RuneCountInString(text)
	out.Reasons = result.Reasons
	out.Warnings = result.Warnings
	out.Duration = result.Timing.Total

	if result.Blocked {
		p.logger.Debug().Str("id", out.ID).Strs("reasons", result.Descriptions()).Msg("prompt blocked")
	}
	return out
}
