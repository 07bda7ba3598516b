// Package throttle implements the per-region notification gate.
//
// A Gate is a two-state machine: Idle, or Cooldown(until). Major change
// types are accepted when the gate is Idle or the cooldown has elapsed, and
// each acceptance starts a new cooldown. Minor types and low-confidence
// events are always suppressed and never start a cooldown. Every decided
// event is appended to a bounded history used to detect content that
// oscillates between the same few screens.
//
// A Gate is not safe for concurrent use; the owning region serializes
// access.
package throttle

import (
	"time"

	"github.com/ironsheep/screenwatch/internal/change"
)

// Reason explains a gate decision.
type Reason string

const (
	ReasonAccepted      Reason = "accepted"
	ReasonDisabled      Reason = "disabled"
	ReasonMinorType     Reason = "minor_type"
	ReasonLowConfidence Reason = "low_confidence"
	ReasonCooldown      Reason = "cooldown"
	ReasonOscillation   Reason = "oscillation"
	ReasonNoText        Reason = "no_text"
)

// Config holds the gate parameters.
type Config struct {
	Cooldown            time.Duration
	ConfidenceThreshold float64
	Enabled             bool
	// OscillationLimit is how many accepted occurrences of the same text
	// within the history suppress a further one.
	OscillationLimit int
	HistorySize      int
}

// DefaultConfig returns the standard gate parameters.
func DefaultConfig() Config {
	return Config{
		Cooldown:            30 * time.Second,
		ConfidenceThreshold: 0.5,
		Enabled:             true,
		OscillationLimit:    2,
		HistorySize:         16,
	}
}

// State is the gate's mutable state.
type State struct {
	CooldownUntil time.Time   `json:"cooldown_until,omitzero"`
	LastMajorType change.Type `json:"last_major_type,omitempty"`
}

// Idle reports whether no cooldown is in force at now.
func (s State) Idle(now time.Time) bool {
	return s.CooldownUntil.IsZero() || !now.Before(s.CooldownUntil)
}

// Decision is the outcome of gating one event.
type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason"`
}

// Gate throttles events for one region.
type Gate struct {
	cfg     Config
	state   State
	history *History
}

// New returns an Idle gate.
func New(cfg Config) *Gate {
	return &Gate{
		cfg:     cfg,
		history: NewHistory(cfg.HistorySize),
	}
}

// SetConfig replaces the gate parameters, keeping state and the newest
// history records.
func (g *Gate) SetConfig(cfg Config) {
	g.cfg = cfg
	g.history.Resize(cfg.HistorySize)
}

// Config returns the gate parameters.
func (g *Gate) Config() Config { return g.cfg }

// State returns a copy of the gate state.
func (g *Gate) State() State { return g.state }

// History returns the rolling history, oldest first.
func (g *Gate) History() []change.Record { return g.history.Records() }

// Decide gates ev at time now.
func (g *Gate) Decide(ev change.Event, now time.Time) Decision {
	if !g.cfg.Enabled {
		return Decision{Reason: ReasonDisabled}
	}

	digest := ev.Digest
	if digest == "" {
		digest = change.Digest(ev.Text)
	}
	rec := change.Record{
		Type:       ev.Type,
		Confidence: ev.Confidence,
		Digest:     digest,
		At:         now,
	}

	d := g.decide(ev, digest, now)
	rec.Accepted = d.Accepted
	g.history.Append(rec)
	return d
}

func (g *Gate) decide(ev change.Event, digest string, now time.Time) Decision {
	if !ev.Type.IsMajor() {
		return Decision{Reason: ReasonMinorType}
	}
	if ev.Confidence < g.cfg.ConfidenceThreshold {
		return Decision{Reason: ReasonLowConfidence}
	}
	if g.cfg.OscillationLimit > 0 && g.history.AcceptedCount(digest) >= g.cfg.OscillationLimit {
		return Decision{Reason: ReasonOscillation}
	}
	if !g.state.Idle(now) {
		return Decision{Reason: ReasonCooldown}
	}

	g.state.CooldownUntil = now.Add(g.cfg.Cooldown)
	g.state.LastMajorType = ev.Type
	return Decision{Accepted: true, Reason: ReasonAccepted}
}

// RecordEmpty notes a cycle without usable text. Only the history changes.
func (g *Gate) RecordEmpty(now time.Time) Decision {
	if !g.cfg.Enabled {
		return Decision{Reason: ReasonDisabled}
	}
	g.history.Append(change.Record{At: now, Null: true})
	return Decision{Reason: ReasonNoText}
}
