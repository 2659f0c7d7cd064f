package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a leveled console logger on stderr. Stdout stays free for the
// MCP stdio transport and scanner output.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Quiet reports whether the process runs under tests or CI, where security
// warnings are not logged.
func Quiet() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "test") || strings.EqualFold(os.Getenv("CI"), "true")
}

// ForSecurity returns the logger the validation pipeline should use.
func ForSecurity(base *zerolog.Logger) *zerolog.Logger {
	if Quiet() {
		nop := zerolog.Nop()
		return &nop
	}
	return base
}
