// Package monitor drives the change-detection engine on a fixed interval.
//
// Each tick starts one cycle per region: capture, prefilter, OCR, analyze.
// A region whose previous cycle is still running is skipped for that tick.
// Accepted events are handed to a dispatcher goroutine through a bounded
// queue; when the queue is full the event is dropped rather than stalling
// the cycle.
package monitor

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/screenwatch/internal/change"
	"github.com/ironsheep/screenwatch/internal/engine"
)

// Capturer supplies the current frame of a region.
type Capturer interface {
	Capture(ctx context.Context, region string) (image.Image, error)
}

// Extractor turns a frame into raw text.
type Extractor interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// Sink receives accepted events. *sink.Router satisfies it.
type Sink interface {
	Deliver(ctx context.Context, ev change.Event, formatted string) error
}

const (
	DefaultInterval   = 5 * time.Second
	DefaultQueueSize  = 64
	DefaultErrorLimit = 5

	// DefaultShutdownGrace bounds how long queued events are still
	// delivered after Run's context is cancelled.
	DefaultShutdownGrace = 10 * time.Second
)

// Settings are the monitor parameters that can change at runtime.
type Settings struct {
	Regions    []string
	Interval   time.Duration
	ErrorLimit int
}

type delivery struct {
	event     change.Event
	formatted string
}

// Monitor runs capture cycles for a set of regions.
type Monitor struct {
	engine    *engine.Engine
	capturer  Capturer
	extractor Extractor
	sink      Sink
	logger    *slog.Logger
	now       func() time.Time
	queueSize int
	grace     time.Duration

	mu       sync.Mutex
	settings Settings
	inflight map[string]*atomic.Bool

	reset   chan time.Duration
	dropped atomic.Int64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source passed to the engine.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithQueueSize sets the capacity of the event queue.
func WithQueueSize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithShutdownGrace sets how long queued events keep being delivered after
// cancellation. Events still queued when it expires are discarded.
func WithShutdownGrace(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.grace = d
		}
	}
}

// New creates a monitor. It does nothing until Run is called.
func New(eng *engine.Engine, capturer Capturer, extractor Extractor, sink Sink, s Settings, opts ...Option) *Monitor {
	m := &Monitor{
		engine:    eng,
		capturer:  capturer,
		extractor: extractor,
		sink:      sink,
		logger:    slog.Default(),
		now:       time.Now,
		queueSize: DefaultQueueSize,
		grace:     DefaultShutdownGrace,
		settings:  normalize(s),
		inflight:  make(map[string]*atomic.Bool),
		reset:     make(chan time.Duration, 1),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func normalize(s Settings) Settings {
	s.Regions = append([]string(nil), s.Regions...)
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.ErrorLimit <= 0 {
		s.ErrorLimit = DefaultErrorLimit
	}
	return s
}

// Settings returns the active settings.
func (m *Monitor) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settings
	s.Regions = append([]string(nil), s.Regions...)
	return s
}

// Reconfigure swaps in new settings. A changed interval takes effect
// immediately; the region list is used from the next tick.
func (m *Monitor) Reconfigure(s Settings) {
	s = normalize(s)
	m.mu.Lock()
	changed := s.Interval != m.settings.Interval
	m.settings = s
	m.mu.Unlock()

	if changed {
		select {
		case <-m.reset:
		default:
		}
		m.reset <- s.Interval
	}
	m.logger.Info("monitor reconfigured", "regions", len(s.Regions), "interval", s.Interval)
}

// Dropped returns the number of events discarded because the queue was
// full or the shutdown grace period expired.
func (m *Monitor) Dropped() int64 {
	return m.dropped.Load()
}

// Run polls until ctx is cancelled. Cycles in progress are abandoned
// before they mutate state. Events already queued are delivered for up to
// the shutdown grace period, and the rest are discarded.
func (m *Monitor) Run(ctx context.Context) error {
	events := make(chan delivery, m.queueSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		m.loop(gctx, events)
		return nil
	})
	g.Go(func() error {
		m.dispatch(ctx, events)
		return nil
	})
	return g.Wait()
}

func (m *Monitor) loop(ctx context.Context, events chan<- delivery) {
	ticker := time.NewTicker(m.Settings().Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	m.tick(ctx, &wg, events)
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-m.reset:
			ticker.Reset(d)
		case <-ticker.C:
			m.tick(ctx, &wg, events)
		}
	}
}

func (m *Monitor) tick(ctx context.Context, wg *sync.WaitGroup, events chan<- delivery) {
	for _, region := range m.Settings().Regions {
		guard := m.guard(region)
		if !guard.CompareAndSwap(false, true) {
			m.logger.Debug("cycle skipped, previous still running", "region", region)
			continue
		}
		region := region
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer guard.Store(false)
			m.cycle(ctx, region, events)
		}()
	}
}

func (m *Monitor) guard(region string) *atomic.Bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.inflight[region]
	if !ok {
		g = new(atomic.Bool)
		m.inflight[region] = g
	}
	return g
}

// cycle runs one capture for region.
func (m *Monitor) cycle(ctx context.Context, region string, events chan<- delivery) {
	img, err := m.capturer.Capture(ctx, region)
	if err != nil {
		if ctx.Err() == nil {
			m.fail(region, fmt.Errorf("capture: %w", err))
		}
		return
	}

	d := m.engine.PrefilterFrame(region, img)
	if !d.Passed() {
		m.logger.Debug("frame unchanged", "region", region, "distance", d.Distance)
		m.succeed(region)
		return
	}

	text, ocrErr := m.extractor.ExtractText(ctx, img)
	if ctx.Err() != nil {
		return
	}
	if ocrErr != nil {
		// Retry this frame next tick; Analyze records the cycle as having
		// no usable text.
		m.engine.RetryFrame(region)
		text = ""
	}

	out, err := m.engine.Analyze(ctx, region, text, m.now())
	if err != nil {
		return
	}
	if ocrErr != nil {
		m.fail(region, fmt.Errorf("ocr: %w", ocrErr))
	} else {
		m.succeed(region)
	}

	if out.Accepted() && out.Event != nil {
		m.publish(events, delivery{event: *out.Event, formatted: out.Formatted})
	}
}

func (m *Monitor) fail(region string, err error) {
	n := m.engine.RecordError(region)
	m.logger.Warn("cycle failed", "region", region, "consecutive", n, "error", err)
	if n == m.Settings().ErrorLimit {
		m.logger.Warn("region degraded", "region", region, "consecutive", n)
	}
}

func (m *Monitor) succeed(region string) {
	if n := m.engine.ResetErrors(region); n >= m.Settings().ErrorLimit {
		m.logger.Info("region recovered", "region", region, "after", n)
	}
}

func (m *Monitor) publish(events chan<- delivery, d delivery) {
	select {
	case events <- d:
	default:
		m.dropped.Add(1)
		m.logger.Warn("event queue full, dropping event", "region", d.event.RegionID, "id", d.event.ID)
	}
}

// dispatch delivers queued events until events is closed. Deliveries
// outlive ctx by at most the grace period.
func (m *Monitor) dispatch(ctx context.Context, events <-chan delivery) {
	dctx, cancel := m.graceContext(ctx)
	defer cancel()

	discarded := 0
	for d := range events {
		if dctx.Err() != nil {
			discarded++
			continue
		}
		if err := m.sink.Deliver(dctx, d.event, d.formatted); err != nil {
			m.logger.Debug("delivery incomplete", "region", d.event.RegionID, "error", err)
		}
	}
	if discarded > 0 {
		m.dropped.Add(int64(discarded))
		m.logger.Warn("shutdown grace expired, discarded queued events", "count", discarded, "grace", m.grace)
	}
}

// graceContext returns a context that stays live until m.grace after ctx
// is done.
func (m *Monitor) graceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		select {
		case <-dctx.Done():
			return
		case <-ctx.Done():
		}
		t := time.NewTimer(m.grace)
		defer t.Stop()
		select {
		case <-t.C:
			cancel()
		case <-dctx.Done():
		}
	}()
	return dctx, cancel
}
