// Package change defines the change types emitted by the pipeline, the
// immutable ChangeEvent value, and the history record kept per region.
package change

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Type classifies a detected change.
type Type string

const (
	MajorContentChange Type = "major_content_change"
	LayoutChange       Type = "layout_change"
	SemanticChange     Type = "semantic_change"
	ContentUpdate      Type = "content_update"
	MinorChange        Type = "minor_change"
)

// Types lists every change type, major types first.
var Types = []Type{SemanticChange, LayoutChange, MajorContentChange, ContentUpdate, MinorChange}

// IsMajor reports whether t can start a notification cooldown.
func (t Type) IsMajor() bool {
	switch t {
	case MajorContentChange, LayoutChange, SemanticChange:
		return true
	}
	return false
}

// Valid reports whether t is one of the known change types.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// SummaryRunes is the maximum length of Event.Summary.
const SummaryRunes = 120

// Event is a classified change for one region. Events are passed by value
// and never modified after NewEvent returns.
type Event struct {
	ID         string    `json:"id"`
	RegionID   string    `json:"region_id"`
	Type       Type      `json:"change_type"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	Summary    string    `json:"summary_text"`
	Text       string    `json:"text,omitempty"`
	Digest     string    `json:"digest"`
}

// NewEvent builds an Event with a fresh time-ordered ID.
func NewEvent(region string, t Type, confidence float64, at time.Time, text string) Event {
	return Event{
		ID:         uuid.Must(uuid.NewV7()).String(),
		RegionID:   region,
		Type:       t,
		Confidence: confidence,
		Timestamp:  at,
		Summary:    Summarize(text, SummaryRunes),
		Text:       text,
		Digest:     Digest(text),
	}
}

// Record is one entry of a region's rolling history.
type Record struct {
	Type       Type      `json:"change_type,omitempty"`
	Confidence float64   `json:"confidence"`
	Digest     string    `json:"digest,omitempty"`
	Accepted   bool      `json:"accepted"`
	At         time.Time `json:"at"`
	// Null marks a cycle that produced no usable OCR text.
	Null bool `json:"null,omitempty"`
}

// Digest returns a short stable hash of normalized text.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

// Summarize flattens text onto one line and truncates it to max runes,
// appending "…" when truncated.
func Summarize(text string, max int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if max <= 0 || utf8.RuneCountInString(flat) <= max {
		return flat
	}
	runes := []rune(flat)
	cut := strings.TrimRight(string(runes[:max-1]), " ")
	return cut + "…"
}
