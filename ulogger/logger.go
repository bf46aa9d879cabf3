// Package ulogger provides the structured logger used across the indexer.
// It follows the teacher's util/logger.go shape: a zerolog-backed
// implementation, service-tagged, with level and pretty-print controlled
// through gocore.Config().
package ulogger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ordishs/gocore"
	"github.com/rs/zerolog"
)

// Logger is the minimal logging surface every component depends on.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

type zerologLogger struct {
	zerolog.Logger
	service string
}

// New constructs a Logger tagged with service. An optional logLevel
// ("DEBUG"|"INFO"|"WARN"|"ERROR"|"FATAL") overrides the default INFO level.
func New(service string, logLevel ...string) Logger {
	if service == "" {
		service = "brc20index"
	}

	var l *zerologLogger
	if gocore.Config().GetBool("PRETTY_LOGS", true) {
		l = prettyLogger(service)
	} else {
		l = &zerologLogger{
			zerolog.New(os.Stdout).With().
				CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 2).
				Timestamp().
				Logger(),
			service,
		}
	}

	if len(logLevel) > 0 {
		setLevel(logLevel[0], l)
	} else if lvl, ok := gocore.Config().Get("logLevel"); ok {
		setLevel(lvl, l)
	}

	return l
}

func setLevel(logLevel string, l *zerologLogger) {
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		l.Logger = l.Logger.Level(zerolog.DebugLevel)
	case "WARN":
		l.Logger = l.Logger.Level(zerolog.WarnLevel)
	case "ERROR":
		l.Logger = l.Logger.Level(zerolog.ErrorLevel)
	case "FATAL":
		l.Logger = l.Logger.Level(zerolog.FatalLevel)
	default:
		l.Logger = l.Logger.Level(zerolog.InfoLevel)
	}
}

func prettyLogger(service string) *zerologLogger {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	output.FormatTimestamp = func(i interface{}) string {
		parsed, _ := time.Parse(time.RFC3339, i.(string))
		return parsed.Format("15:04:05")
	}

	output.FormatLevel = func(i interface{}) string {
		return fmt.Sprintf("| %-6s|", strings.ToUpper(fmt.Sprintf("%-6s", i)))
	}

	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("| %-10s| %s", service, i)
	}

	return &zerologLogger{
		zerolog.New(output).With().Timestamp().Logger(),
		service,
	}
}

func (l *zerologLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Debug().Msgf(format, args...)
}

func (l *zerologLogger) Infof(format string, args ...interface{}) {
	l.Logger.Info().Msgf(format, args...)
}

func (l *zerologLogger) Warnf(format string, args ...interface{}) {
	l.Logger.Warn().Msgf(format, args...)
}

func (l *zerologLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Error().Msgf(format, args...)
}

func (l *zerologLogger) Fatalf(format string, args ...interface{}) {
	l.Logger.Fatal().Msgf(format, args...)
}
