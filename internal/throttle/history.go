package throttle

import "github.com/ironsheep/screenwatch/internal/change"

// Entry is one history record.
type Entry = change.Record

// History is a fixed-capacity ring of change records. When full, appending
// evicts the oldest record.
type History struct {
	buf   []change.Record
	start int
	n     int
}

// NewHistory returns an empty history holding at most capacity records.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]change.Record, capacity)}
}

// Append adds r, evicting the oldest record if the ring is full.
func (h *History) Append(r change.Record) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = r
		h.n++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored records.
func (h *History) Len() int { return h.n }

// Cap returns the ring capacity.
func (h *History) Cap() int { return len(h.buf) }

// Records returns a copy of the stored records, oldest first.
func (h *History) Records() []change.Record {
	out := make([]change.Record, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// AcceptedCount returns how many accepted records carry digest.
func (h *History) AcceptedCount(digest string) int {
	count := 0
	for i := 0; i < h.n; i++ {
		r := h.buf[(h.start+i)%len(h.buf)]
		if r.Accepted && !r.Null && r.Digest == digest {
			count++
		}
	}
	return count
}

// Resize changes the capacity, keeping the newest records.
func (h *History) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(h.buf) {
		return
	}
	records := h.Records()
	if len(records) > capacity {
		records = records[len(records)-capacity:]
	}
	h.buf = make([]change.Record, capacity)
	h.start = 0
	h.n = copy(h.buf, records)
}
