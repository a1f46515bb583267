/*
Package logx provides a structured logging wrapper based on zerolog.

It initializes the global logger, selecting console output for development
and JSON for production, and offers small helpers for the common levels.
*/
package logx

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitGlobalLogger initializes the global zerolog instance.
// Development logs at Debug level to a human-readable console writer;
// production logs at Info level as JSON.
func InitGlobalLogger(isDevelopment bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if isDevelopment {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger.With().Caller().Logger()
}

// Logger returns a pointer to the global zerolog.Logger instance.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Info records a message at the Info level with optional key-value fields.
func Info(msg string, fields ...any) {
	Logger().Info().Fields(normalize("Info", fields)).CallerSkipFrame(1).Msg(msg)
}

// Warn records a message at the Warn level with optional key-value fields.
func Warn(msg string, fields ...any) {
	Logger().Warn().Fields(normalize("Warn", fields)).CallerSkipFrame(1).Msg(msg)
}

// Error records an error and message at the Error level.
func Error(err error, msg string, fields ...any) {
	Logger().Error().Err(err).Fields(normalize("Error", fields)).CallerSkipFrame(1).Msg(msg)
}

// Fatal records an error at the Fatal level and terminates the program.
func Fatal(err error, msg string, fields ...any) {
	Logger().Fatal().Err(err).Fields(normalize("Fatal", fields)).CallerSkipFrame(1).Msg(msg)
}

// normalize drops odd-length field lists so zerolog never panics on
// unpaired keys.
func normalize(level string, fields []any) []any {
	if len(fields)%2 != 0 {
		Logger().Warn().
			Int("fields_count", len(fields)).
			Str("log_level", level).
			Msg("Log call received odd number of fields. Fields ignored.")
		return nil
	}
	return fields
}
