package core

// scheduler.go runs the periodic autosave.
//
// Every tick flushes debounced remote checkpoints and retries reports that
// could not be published. Failures are logged and the next tick tries again;
// the scheduler never stops the application.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultAutosaveInterval is used when StartAutosave gets a zero interval.
const DefaultAutosaveInterval = 30 * time.Second

// StartAutosave runs Autosave every interval until ctx is cancelled. It
// blocks, so callers run it in a goroutine.
func (s *Service) StartAutosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	slog.Info("autosave scheduler started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("autosave scheduler stopped")
			return
		case <-ticker.C:
			s.runAutosave(ctx)
		}
	}
}

func (s *Service) runAutosave(ctx context.Context) {
	start := time.Now()
	s.Autosave(ctx)
	slog.Debug("autosave completed", "duration_ms", time.Since(start).Milliseconds())
}
