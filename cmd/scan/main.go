package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/batch"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/setup"
	setuplogger "github.com/povarna/generative-ai-agents/llm-bridge/internal/setup/logger"
)

func main() {
	startTime := time.Now()

	input := flag.String("input", "", "Input JSONL file path, '-' for stdin")
	output := flag.String("output", "", "Output file path, stdout when empty")
	format := flag.String("format", batch.FormatJSONL, "Output format. Supported formats: 'jsonl', 'summary'")
	workers := flag.Int("workers", 5, "Concurrent scan workers")
	flag.Parse()

	_ = godotenv.Load()

	cfg := setup.LoadConfig()
	logger := setuplogger.New(cfg.LogLevel)

	if *input == "" {
		logger.Fatal().Msg("required flag -input not provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	guard, err := setup.WireGuard(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to wire security guard")
	}

	var inputFile io.Reader
	if *input == "-" {
		inputFile = os.Stdin
		logger.Info().Msg("Reading from stdin")
	} else {
		f, err := os.Open(*input)
		if err != nil {
			logger.Fatal().Err(err).Str("file", *input).Msg("Failed to open input file")
		}
		defer f.Close()
		inputFile = f
		logger.Info().Str("file", *input).Msg("Reading input file")
	}

	var outputFile io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			logger.Fatal().Err(err).Str("file", *output).Msg("Failed to create output file")
		}
		defer f.Close()
		outputFile = f
		logger.Info().Str("file", *output).Msg("Writing to output file")
	}

	writer, err := batch.NewWriter(outputFile, *format, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create writer")
	}

	records := batch.NewReader(inputFile, &logger).ReadAll(ctx)
	results := batch.NewProcessor(guard, *workers, &logger).Process(ctx, records)

	blocked := 0
	total := 0
	for result := range results {
		total++
		if result.Blocked {
			blocked++
		}
		if err := writer.Write(result); err != nil {
			logger.Error().Err(err).Str("id", result.ID).Msg("Failed to write result")
		}
	}

	if err := writer.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to finalize output")
	}

	logger.Info().
		Int("total", total).
		Int("blocked", blocked).
		Dur("duration", time.Since(startTime)).
		Msg("Scan complete")
}
