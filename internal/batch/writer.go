package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog"
)

const (
	FormatJSONL   = "jsonl"
	FormatSummary = "summary"
)

type Writer interface {
	Write(result ScanResult) error
	Close() error
}

func NewWriter(w io.Writer, format string, logger *zerolog.Logger) (Writer, error) {
	switch format {
	case FormatJSONL, "":
		return &jsonlWriter{enc: json.NewEncoder(w)}, nil
	case FormatSummary:
		return &summaryWriter{
			w:      w,
			logger: logger,
			Summary: Summary{
				Categories: map[string]int{},
				Patterns:   map[string]int{},
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

type jsonlWriter struct {
	enc *json.Encoder
}

func (j *jsonlWriter) Write(result ScanResult) error {
	return j.enc.Encode(result)
}

func (j *jsonlWriter) Close() error { return nil }

// Summary aggregates scan verdicts.
type Summary struct {
	Total         int            `json:"total"`
	Valid         int            `json:"valid"`
	Blocked       int            `json:"blocked"`
	Warned        int            `json:"warned"`
	Errors        int            `json:"errors"`
	Categories    map[string]int `json:"categories"`
	Patterns      map[string]int `json:"patterns"`
	BlockedSample []string       `json:"blocked_sample,omitempty"`
}

type summaryWriter struct {
	w      io.Writer
	logger *zerolog.Logger
	Summary
	blockedIDs []string
}

func (s *summaryWriter) Write(result ScanResult) error {
	s.Total++
	switch {
	case result.Error != "":
		s.Errors++
	case result.Blocked:
		s.Blocked++
		s.blockedIDs = append(s.blockedIDs, result.ID)
	default:
		s.Valid++
	}
	if len(result.Warnings) > 0 {
		s.Warned++
	}

	for _, r := range result.Reasons {
		s.Categories[r.Category]++
		for _, id := range r.PatternIDs {
			s.Patterns[id]++
		}
	}
	return nil
}

func (s *summaryWriter) Close() error {
	sort.Strings(s.blockedIDs)
	if len(s.blockedIDs) > 10 {
		s.blockedIDs = s.blockedIDs[:10]
	}
	s.BlockedSample = s.blockedIDs

	enc := json.NewEncoder(s.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	s.logger.Info().
		Int("total", s.Total).
		Int("blocked", s.Blocked).
		Int("errors", s.Errors).
		Msg("Summary written")
	return nil
}
