package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/heartmarshall/shop-catalog-backend/internal/config"
)

// NewLogger creates a *slog.Logger based on the provided LogConfig
// and sets it as the default logger via slog.SetDefault.
//
// Format "json" produces structured JSON output (production).
// Format "text" produces colored human-readable output via tint (development).
// Output is os.Stderr, or a size-rotated file when cfg.File is set. The
// returned Closer releases the file and must be closed on shutdown.
func NewLogger(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
		color            = true
	)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out, closer, color = rotator, rotator, false
	}

	logger := slog.New(newHandler(out, cfg, color))
	slog.SetDefault(logger)

	return logger, closer
}

func newHandler(w io.Writer, cfg config.LogConfig, color bool) slog.Handler {
	level := parseLevel(cfg.Level)

	if strings.EqualFold(cfg.Format, "text") {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			AddSource:  true,
			NoColor:    !color,
		})
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
