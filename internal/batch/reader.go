package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const maxLineSize = 4 * 1024 * 1024

// PromptRecord is one input line. Prompt is a pointer so a null prompt
// is reported instead of being scanned as empty text.
type PromptRecord struct {
	ID     string  `json:"id"`
	Prompt *string `json:"prompt"`
}

type InputRecord struct {
	LineNumber int
	Record     PromptRecord
	Error      error
}

type Reader struct {
	r      io.Reader
	logger *zerolog.Logger
}

func NewReader(r io.Reader, logger *zerolog.Logger) *Reader {
	return &Reader{r: r, logger: logger}
}

// ReadAll streams every non-blank line. Lines that fail to decode are
// delivered with Error set so the caller can report them.
func (r *Reader) ReadAll(ctx context.Context) <-chan InputRecord {
	out := make(chan InputRecord)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(r.r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			record := InputRecord{LineNumber: line}
			if err := json.Unmarshal([]byte(text), &record.Record); err != nil {
				record.Error = fmt.Errorf("line %d: %w", line, err)
			} else if record.Record.ID == "" {
				record.Record.ID = fmt.Sprintf("line-%d", line)
			}

			select {
			case out <- record:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			r.logger.Error().Err(err).Int("line", line).Msg("Failed to read input")
			select {
			case out <- InputRecord{LineNumber: line + 1, Error: err}:
			case <-ctx.Done():
			}
		}
	}()

	return out
}
