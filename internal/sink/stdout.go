package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/ironsheep/screenwatch/internal/change"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout). Events are
// written as {"type":"event"} and display updates as {"type":"display"}.
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) Notify(_ context.Context, ev change.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "event", Data: ev})
}

func (s *Stdout) Show(_ context.Context, region, formatted string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Type: "display", Data: displayPayload{Region: region, Text: formatted}})
}
