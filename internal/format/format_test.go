package format

import (
	"testing"

	"github.com/ironsheep/screenwatch/internal/textnorm"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "all caps heading promoted",
			in:   "SETTINGS\nDisplay brightness is high.",
			want: "## Settings\nDisplay brightness is high.",
		},
		{
			name: "title case heading kept",
			in:   "Account Details\nYour plan renews soon.",
			want: "## Account Details\nYour plan renews soon.",
		},
		{
			name: "trailing heading not promoted",
			in:   "Your plan renews soon.\n\nWelcome Back",
			want: "Your plan renews soon.\n\nWelcome Back",
		},
		{
			name: "markdown header normalized",
			in:   "# Inbox\nThree new messages.",
			want: "## Inbox\nThree new messages.",
		},
		{
			name: "list markers unified",
			in:   "- apples\n* bananas\n+ cherries\n1. dates\n2) eggs\na) figs\n· grapes\no Honeydew",
			want: "• apples\n• bananas\n• cherries\n• dates\n• eggs\n• figs\n• grapes\n• Honeydew",
		},
		{
			name: "lowercase continuation merged",
			in:   "The quick brown fox\njumps over the lazy dog.",
			want: "The quick brown fox jumps over the lazy dog.",
		},
		{
			name: "indented continuation merged",
			in:   "Results were\n  Mixed overall.",
			want: "Results were Mixed overall.",
		},
		{
			name: "terminal punctuation stops merge",
			in:   "First sentence.\nsecond line here",
			want: "First sentence.\nsecond line here",
		},
		{
			name: "list item continuation merged",
			in:   "- download the\nlatest release",
			want: "• download the latest release",
		},
		{
			name: "short lines dropped",
			in:   "ok\nReal content here",
			want: "Real content here",
		},
		{
			name: "paragraphs capitalized",
			in:   "hello there.\n\n\n\nanother paragraph.",
			want: "Hello there.\n\nAnother paragraph.",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.in); got != tt.want {
				t.Errorf("Format(%q)\n got: %q\nwant: %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatter_MinLineChars(t *testing.T) {
	in := "hi there\nThis stays."

	if got := (Formatter{}).Format(in); got != "Hi there\nThis stays." {
		t.Errorf("zero Formatter dropped a line: %q", got)
	}
	if got := (Formatter{MinLineChars: 9}).Format(in); got != "This stays." {
		t.Errorf("MinLineChars 9: got %q", got)
	}
}

func TestFormat_Stable(t *testing.T) {
	in := "ERROR REPORT\nthe export\nfailed at step three.\n\n- retry later\n- contact support"
	once := Format(in)
	if twice := Format(once); twice != once {
		t.Errorf("Format not stable:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestFormat_IndentationOnlyInRawText(t *testing.T) {
	raw := "Results were\n  Mixed overall."

	if got, want := Format(raw), "Results were Mixed overall."; got != want {
		t.Errorf("raw: got %q, want %q", got, want)
	}
	if got, want := Format(textnorm.Normalize(raw)), "Results were\nMixed overall."; got != want {
		t.Errorf("normalized: got %q, want %q", got, want)
	}
}
