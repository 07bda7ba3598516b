package sink

import (
	"context"
	"log/slog"

	"github.com/ironsheep/screenwatch/internal/change"
)

// LogSink records events in the structured log. It implements Notifier,
// Trigger and Display.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a LogSink writing to logger, or slog.Default() if nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, ev change.Event) error {
	s.logger.InfoContext(ctx, "change accepted",
		"region", ev.RegionID,
		"type", ev.Type,
		"confidence", ev.Confidence,
		"summary", ev.Summary,
		"id", ev.ID,
	)
	return nil
}

func (s *LogSink) Trigger(ctx context.Context, ev change.Event) error {
	s.logger.DebugContext(ctx, "analysis requested", "region", ev.RegionID, "id", ev.ID, "chars", len([]rune(ev.Text)))
	return nil
}

func (s *LogSink) Show(ctx context.Context, region, formatted string) error {
	s.logger.DebugContext(ctx, "display updated", "region", region, "text", formatted)
	return nil
}
