package engine

import (
	"sync"
	"time"

	"github.com/ironsheep/screenwatch/internal/change"
	"github.com/ironsheep/screenwatch/internal/imaging"
	"github.com/ironsheep/screenwatch/internal/throttle"
)

// RegionState is everything the engine remembers about one region. It is
// created on the region's first cycle and never shared with another region.
type RegionState struct {
	mu sync.Mutex

	id           string
	fingerprint  *imaging.Fingerprint
	baseline     string
	formatted    string
	lastAccepted time.Time
	lastType     change.Type
	lastEvent    *change.Event
	gate         *throttle.Gate
	failures     int

	// previous is the fingerprint replaced by the last Pass, kept until
	// that frame is analyzed so a failed OCR can be retried.
	previous  *imaging.Fingerprint
	retryable bool
}

func newRegionState(id string, cfg throttle.Config) *RegionState {
	return &RegionState{id: id, gate: throttle.New(cfg)}
}

// accept stores fp after a prefilter Pass.
func (r *RegionState) accept(fp *imaging.Fingerprint) {
	r.previous, r.retryable = r.fingerprint, true
	r.fingerprint = fp
}

// Snapshot is a read-only copy of a region's state.
type Snapshot struct {
	Region            string          `json:"region_id"`
	Baseline          string          `json:"baseline_text"`
	Formatted         string          `json:"formatted_text,omitempty"`
	Fingerprint       string          `json:"fingerprint,omitempty"`
	LastType          change.Type     `json:"last_type,omitempty"`
	LastAccepted      time.Time       `json:"last_accepted,omitzero"`
	CooldownUntil     time.Time       `json:"cooldown_until,omitzero"`
	LastEvent         *change.Event   `json:"last_event,omitempty"`
	History           []change.Record `json:"history"`
	ConsecutiveErrors int             `json:"consecutive_errors"`
}

// HistoryLen returns the number of records in the snapshot's history.
func (s Snapshot) HistoryLen() int { return len(s.History) }

func (r *RegionState) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Region:            r.id,
		Baseline:          r.baseline,
		Formatted:         r.formatted,
		LastType:          r.lastType,
		LastAccepted:      r.lastAccepted,
		CooldownUntil:     r.gate.State().CooldownUntil,
		History:           r.gate.History(),
		ConsecutiveErrors: r.failures,
	}
	if r.fingerprint != nil {
		s.Fingerprint = r.fingerprint.String()
	}
	if r.lastEvent != nil {
		ev := *r.lastEvent
		s.LastEvent = &ev
	}
	return s
}
