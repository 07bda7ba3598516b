// Package sink defines the output backends for accepted change events:
// notifiers, analysis triggers and displays.
package sink

import (
	"context"

	"github.com/ironsheep/screenwatch/internal/change"
)

// Notifier announces an accepted change to the user.
type Notifier interface {
	Notify(ctx context.Context, ev change.Event) error
}

// Trigger hands an accepted change to downstream analysis.
type Trigger interface {
	Trigger(ctx context.Context, ev change.Event) error
}

// Display shows formatted region text.
type Display interface {
	Show(ctx context.Context, region, formatted string) error
}

// envelope is the JSON wrapper shared by the stream-oriented sinks.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// displayPayload is the data of a "display" envelope.
type displayPayload struct {
	Region string `json:"region_id"`
	Text   string `json:"text"`
}
