// Package logger builds the application slog.Logger from the logging configuration
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/amirphl/Omikuji/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	formatJSON = "json"
	formatText = "text"
)

// Config holds logger configuration
type Config struct {
	Writer      io.Writer
	Format      string
	Environment string
	Level       slog.Level
	AddSource   bool
}

// New creates a logger with the given configuration
func New(cfg Config) *slog.Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	// Auto-detect format based on environment if not specified
	if cfg.Format == "" {
		if cfg.Environment == "production" {
			cfg.Format = formatJSON
		} else {
			cfg.Format = formatText
		}
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == formatJSON {
		handler = slog.NewJSONHandler(cfg.Writer, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Writer, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewWriter returns the destination selected by LOG_OUTPUT.
// File output rotates through lumberjack; the returned closer flushes it on shutdown.
func NewWriter(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return os.Stdout, nopCloser{}
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if cfg.Output == "both" {
		return io.MultiWriter(os.Stdout, rotating), rotating
	}
	return rotating, rotating
}

// FromConfig builds the application logger and its writer closer
func FromConfig(logCfg config.LoggingConfig, environment string) (*slog.Logger, io.Closer) {
	w, closer := NewWriter(logCfg)
	return New(Config{
		Writer:      w,
		Format:      logCfg.Format,
		Environment: environment,
		Level:       ParseLevel(logCfg.Level),
		AddSource:   logCfg.AddSource,
	}), closer
}
