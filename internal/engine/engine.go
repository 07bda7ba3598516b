// Package engine wires the change-detection stages together and owns the
// per-region state they operate on.
//
// A cycle for a region runs in two steps. Prefilter (or PrefilterFrame)
// compares the frame's fingerprint with the last one seen; only when it
// passes does the caller run OCR and hand the text to Analyze, which
// normalizes, scores, classifies and gates it.
//
// Different regions never share state and may be driven concurrently. Calls
// for the same region are serialized by a per-region lock.
package engine

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ironsheep/screenwatch/internal/change"
	"github.com/ironsheep/screenwatch/internal/classify"
	"github.com/ironsheep/screenwatch/internal/imaging"
	"github.com/ironsheep/screenwatch/internal/prefilter"
	"github.com/ironsheep/screenwatch/internal/similarity"
	"github.com/ironsheep/screenwatch/internal/textnorm"
	"github.com/ironsheep/screenwatch/internal/throttle"
)

// Outcome is the result of analyzing one cycle's text.
type Outcome struct {
	Region     string            `json:"region_id"`
	Normalized string            `json:"normalized_text"`
	Scores     similarity.Scores `json:"scores"`
	Result     classify.Result   `json:"classification"`
	Decision   throttle.Decision `json:"decision"`
	// Event is nil for cycles without usable text.
	Event *change.Event `json:"event,omitempty"`
	// Formatted is set only for accepted events.
	Formatted string `json:"formatted_text,omitempty"`
}

// Accepted reports whether the cycle produced a notification.
func (o Outcome) Accepted() bool { return o.Decision.Accepted }

// Engine holds per-region state and the shared stage configuration.
type Engine struct {
	mu         sync.RWMutex
	cfg        Config
	regions    map[string]*RegionState
	normalizer *textnorm.Normalizer
	classifier *classify.Classifier
	cueOpts    []classify.Option
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(e *Engine) {
		if n != nil {
			e.normalizer = n
		}
	}
}

// WithClassifierOptions passes options (custom cues or decision table) to
// every classifier the engine builds.
func WithClassifierOptions(opts ...classify.Option) Option {
	return func(e *Engine) { e.cueOpts = append(e.cueOpts, opts...) }
}

// New returns an engine with no regions.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		regions:    make(map[string]*RegionState),
		normalizer: textnorm.New(),
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	e.classifier = classify.New(cfg.Classify, e.cueOpts...)
	return e
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SetConfig swaps in new parameters. Existing regions keep their baseline,
// cooldown and the newest history records.
func (e *Engine) SetConfig(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.classifier = classify.New(cfg.Classify, e.cueOpts...)
	regions := make([]*RegionState, 0, len(e.regions))
	for _, r := range e.regions {
		regions = append(regions, r)
	}
	e.mu.Unlock()

	for _, r := range regions {
		r.mu.Lock()
		r.gate.SetConfig(cfg.Throttle)
		r.mu.Unlock()
	}
}

// region returns the state for id, creating it on first use.
func (e *Engine) region(id string) *RegionState {
	e.mu.RLock()
	r, ok := e.regions[id]
	e.mu.RUnlock()
	if ok {
		return r
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok = e.regions[id]; !ok {
		r = newRegionState(id, e.cfg.Throttle)
		e.regions[id] = r
	}
	return r
}

func (e *Engine) stages() (prefilter.Filter, *classify.Classifier, Config) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Prefilter, e.classifier, e.cfg
}

// Prefilter evaluates a precomputed fingerprint for region. On Pass the
// stored fingerprint is replaced; on Reject nothing changes.
func (e *Engine) Prefilter(region string, fp imaging.Fingerprint) prefilter.Decision {
	filter, _, _ := e.stages()
	r := e.region(region)

	r.mu.Lock()
	defer r.mu.Unlock()
	d := filter.Evaluate(r.fingerprint, fp)
	if d.Passed() {
		r.accept(d.Fingerprint)
	}
	return d
}

// PrefilterFrame fingerprints img and evaluates it for region. A frame that
// cannot be fingerprinted passes and leaves the stored fingerprint alone.
func (e *Engine) PrefilterFrame(region string, img image.Image) prefilter.Decision {
	filter, _, _ := e.stages()
	r := e.region(region)

	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := filter.EvaluateFrame(r.fingerprint, img)
	if err != nil {
		e.logger.Warn("prefilter degraded", "region", region, "error", err)
		return d
	}
	if d.Passed() {
		r.accept(d.Fingerprint)
	}
	return d
}

// RetryFrame undoes the fingerprint update of region's last Pass, so the
// next capture of the same frame passes the prefilter again. Callers use
// it when OCR failed on a passed frame. It reports whether a fingerprint
// was restored; it is a no-op once that frame has been analyzed.
func (e *Engine) RetryFrame(region string) bool {
	r := e.region(region)
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.retryable {
		return false
	}
	r.fingerprint, r.previous, r.retryable = r.previous, nil, false
	return true
}

// Analyze runs the text stages for one cycle of region at time now.
//
// Text that is empty, an OCR error report, the no-text sentinel, or that
// normalizes to nothing is recorded as a null history entry and suppressed
// with reason no_text. The baseline only moves when an event is accepted.
// If ctx is already done, Analyze returns its error without touching state.
func (e *Engine) Analyze(ctx context.Context, region, raw string, now time.Time) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	_, classifier, cfg := e.stages()
	r := e.region(region)

	r.mu.Lock()
	defer r.mu.Unlock()

	out := Outcome{Region: region}
	r.previous, r.retryable = nil, false
	cleaned, err := textnorm.Clean(raw)
	if err == nil {
		out.Normalized = e.normalizer.Normalize(cleaned)
	}
	if out.Normalized == "" {
		out.Decision = r.gate.RecordEmpty(now)
		e.logger.Debug("no usable text", "region", region, "reason", out.Decision.Reason)
		return out, nil
	}

	out.Scores = similarity.Compare(r.baseline, out.Normalized)
	out.Result = classifier.Classify(out.Scores, out.Normalized, r.gate.History())

	ev := change.NewEvent(region, out.Result.Type, out.Result.Confidence, now, out.Normalized)
	out.Event = &ev
	out.Decision = r.gate.Decide(ev, now)

	if out.Decision.Accepted {
		r.baseline = out.Normalized
		r.lastAccepted = now
		r.lastType = ev.Type
		r.lastEvent = &ev
		r.formatted = cfg.Format.Format(out.Normalized)
		out.Formatted = r.formatted
	}

	e.logger.Debug("cycle analyzed",
		"region", region,
		"type", ev.Type,
		"confidence", ev.Confidence,
		"accepted", out.Decision.Accepted,
		"reason", out.Decision.Reason,
	)
	return out, nil
}

// RecordError counts a failed cycle for region and returns the number of
// consecutive failures.
func (e *Engine) RecordError(region string) int {
	r := e.region(region)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
	return r.failures
}

// ResetErrors clears region's failure count and returns its previous value.
func (e *Engine) ResetErrors(region string) int {
	r := e.region(region)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.failures
	r.failures = 0
	return n
}

// ErrUnknownRegion is returned when a region has never been seen.
var ErrUnknownRegion = errors.New("unknown region")

// Snapshot returns a copy of region's state.
func (e *Engine) Snapshot(region string) (Snapshot, error) {
	e.mu.RLock()
	r, ok := e.regions[region]
	e.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrUnknownRegion
	}
	return r.snapshot(), nil
}

// Snapshots returns a copy of every region's state, ordered by region ID.
func (e *Engine) Snapshots() []Snapshot {
	ids := e.Regions()
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		if s, err := e.Snapshot(id); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// Regions returns the IDs of all regions seen so far, sorted.
func (e *Engine) Regions() []string {
	e.mu.RLock()
	ids := make([]string, 0, len(e.regions))
	for id := range e.regions {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
