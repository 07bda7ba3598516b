// Package textnorm strips recognized noise from raw OCR text: clock times,
// dates, progress counters, spinner glyphs, loading ellipses, repeated
// symbol runs and one- or two-character artifact lines.
//
// Normalization is deterministic and idempotent. A Normalizer applies
// Unicode NFKC folding followed by an ordered list of Rules, then repeats
// the whole pass until the text stops changing.
package textnorm

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// extraPasses is added to the rune count to bound the fixed-point loop.
// After the first pass the default rules only delete, so every pass that
// changes the text shortens it and the loop ends well before the bound.
const extraPasses = 8

// Normalizer applies an ordered rule list to OCR text.
type Normalizer struct {
	rules []Rule
}

// New returns a Normalizer using rules, or DefaultRules when rules is empty.
func New(rules ...Rule) *Normalizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Normalizer{rules: rules}
}

// Rules returns the names of the configured rules in application order.
func (n *Normalizer) Rules() []string {
	names := make([]string, len(n.rules))
	for i, r := range n.rules {
		names[i] = r.Name
	}
	return names
}

// Normalize returns the noise-stripped form of raw.
func (n *Normalizer) Normalize(raw string) string {
	text := raw
	limit := utf8.RuneCountInString(raw) + extraPasses
	for i := 0; i < limit; i++ {
		next := n.pass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func (n *Normalizer) pass(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = norm.NFKC.String(text)
	for _, r := range n.rules {
		text = r.Apply(text)
	}
	return tidy(text)
}

// tidy collapses runs of blank lines to one and trims leading and trailing
// blank lines.
func tidy(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	if n := len(out); n > 0 && out[n-1] == "" {
		out = out[:n-1]
	}
	return strings.Join(out, "\n")
}

var defaultNormalizer = New()

// Normalize runs the default rule set over raw.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}
