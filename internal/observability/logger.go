package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"alcyxob/gym-app/internal/config"
)

// InitLogger builds the process logger and installs it as the global zerolog logger.
func InitLogger(app string, cfg config.LogConfig) zerolog.Logger {
	return newLogger(os.Stdout, app, cfg)
}

func newLogger(out io.Writer, app string, cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	w := out
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}
