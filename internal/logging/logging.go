// Package logging configures the zerolog logger shared by all Granite
// services. Output is JSON to stdout; set PRETTY=1 for console output and
// DEBUG=1 to enable debug level.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var root = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Setup initializes the global zerolog configuration and returns the root
// logger. It is safe to call more than once.
func Setup() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if os.Getenv("PRETTY") == "1" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	root = logger
	zerolog.DefaultContextLogger = &root
	return root
}

// Component returns a child of the root logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}
