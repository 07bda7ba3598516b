package sink

import (
	"context"
	"io"
	"log/slog"

	"github.com/ironsheep/screenwatch/internal/change"
)

// Router fans events out to every registered sink. One sink error does not
// block the others: errors are logged and the first encountered is
// returned.
type Router struct {
	notifiers []Notifier
	triggers  []Trigger
	displays  []Display
	closers   []io.Closer
	logger    *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger}
}

// Add registers s under every sink interface it implements. Sinks that
// implement io.Closer are closed by Close.
func (r *Router) Add(s any) *Router {
	if n, ok := s.(Notifier); ok {
		r.notifiers = append(r.notifiers, n)
	}
	if t, ok := s.(Trigger); ok {
		r.triggers = append(r.triggers, t)
	}
	if d, ok := s.(Display); ok {
		r.displays = append(r.displays, d)
	}
	if c, ok := s.(io.Closer); ok {
		r.closers = append(r.closers, c)
	}
	return r
}

// Empty reports whether no sink is registered.
func (r *Router) Empty() bool {
	return len(r.notifiers) == 0 && len(r.triggers) == 0 && len(r.displays) == 0
}

func (r *Router) Notify(ctx context.Context, ev change.Event) error {
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			r.logger.Warn("sink: notify failed", "region", ev.RegionID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Trigger(ctx context.Context, ev change.Event) error {
	var firstErr error
	for _, t := range r.triggers {
		if err := t.Trigger(ctx, ev); err != nil {
			r.logger.Warn("sink: trigger failed", "region", ev.RegionID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Show(ctx context.Context, region, formatted string) error {
	var firstErr error
	for _, d := range r.displays {
		if err := d.Show(ctx, region, formatted); err != nil {
			r.logger.Warn("sink: display failed", "region", region, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Deliver sends an accepted event to the notifiers, the triggers and, when
// formatted is non-empty, the displays.
func (r *Router) Deliver(ctx context.Context, ev change.Event, formatted string) error {
	firstErr := r.Notify(ctx, ev)
	if err := r.Trigger(ctx, ev); err != nil && firstErr == nil {
		firstErr = err
	}
	if formatted != "" {
		if err := r.Show(ctx, ev.RegionID, formatted); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
