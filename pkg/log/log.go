package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured once via Init.
var Logger zerolog.Logger

func init() {
	// A usable default so packages that log before anyone calls Init
	// (notably in tests) don't panic on a zero-value logger.
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Level represents a log level, decoupled from zerolog's own type so
// callers of this package never need to import zerolog directly.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger with a component field, e.g.
// "store", "cleanup", "repository".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithKeyBase creates a child logger with a key_base field identifying
// the repository (an rpkiNotify URI, or "rsync") a log entry concerns.
func WithKeyBase(keyBase string) zerolog.Logger {
	return Logger.With().Str("key_base", keyBase).Logger()
}

// WithManifest creates a child logger with a manifest field identifying
// the publication point a log entry concerns.
func WithManifest(manifestURI string) zerolog.Logger {
	return Logger.With().Str("manifest", manifestURI).Logger()
}

// Helper functions for common logging patterns, matching the package
// level Info/Debug/Warn/Error/Fatal this module's dependents use
// elsewhere.
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
