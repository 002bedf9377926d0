package logging

import (
	"context"
	"log/slog"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

// ProgressLogger implements ports.ProgressSink by logging each event.
// Terminal events log at info, intermediate ones at debug.
type ProgressLogger struct {
	logger *slog.Logger
}

func NewProgressLogger(logger *slog.Logger) *ProgressLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressLogger{logger: logger}
}

func (p *ProgressLogger) Notify(event domain.ProgressEvent) {
	level := slog.LevelDebug
	switch {
	case event.State == domain.StateFailed:
		level = slog.LevelWarn
	case event.State.Terminal(), event.State == domain.StateMemoryGated:
		level = slog.LevelInfo
	}
	p.logger.Log(context.Background(), level, "progress",
		"event", event.Event,
		"path", event.Path,
		"state", string(event.State),
		"attempt", event.Attempt,
		"at", event.Timestamp,
	)
}
