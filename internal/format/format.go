// Package format turns normalized screen text into something pleasant to
// display: headings promoted to markdown, list markers unified, fragmented
// lines merged back into paragraphs.
package format

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ironsheep/screenwatch/internal/layout"
)

// DefaultMinLineChars is the shortest line kept by Format.
const DefaultMinLineChars = 3

// Bullet replaces every recognized list marker.
const Bullet = "•"

const terminalPunct = ".!?:;…"

// Formatter is a configurable ContentFormatter. The zero value keeps every
// non-blank line.
type Formatter struct {
	MinLineChars int
}

// Format formats text with the default settings.
func Format(text string) string {
	return Formatter{MinLineChars: DefaultMinLineChars}.Format(text)
}

type lineKind int

const (
	kindBreak lineKind = iota
	kindText
	kindList
	kindHeading
)

type line struct {
	kind     lineKind
	text     string
	indented bool
}

// Format is pure: the same input always yields the same output.
//
// An indented line continues the previous one. Indentation only survives in
// raw text such as screen_format_text input: the engine formats normalized
// text, whose lines are already trimmed, so there only lowercase starts
// join lines.
func (f Formatter) Format(text string) string {
	lines := f.scan(text)

	var out []line
	paraStart := true
	for i, ln := range lines {
		switch ln.kind {
		case kindBreak:
			if len(out) > 0 && out[len(out)-1].kind != kindBreak {
				out = append(out, ln)
			}
			paraStart = true
			continue
		case kindList:
			out = append(out, line{kind: kindList, text: Bullet + " " + ln.text})
			paraStart = false
			continue
		case kindHeading:
			if hasContentAfter(lines, i) {
				out = append(out, line{kind: kindHeading, text: "## " + headingText(ln.text)})
				paraStart = true
				continue
			}
		}

		if n := len(out); n > 0 && !paraStart && joins(out[n-1], ln) {
			out[n-1].text += " " + ln.text
			continue
		}
		t := ln.text
		if paraStart {
			t = capitalize(t)
		}
		out = append(out, line{kind: kindText, text: t})
		paraStart = false
	}

	parts := make([]string, 0, len(out))
	for _, ln := range out {
		if ln.kind == kindBreak {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, ln.text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// scan classifies lines, dropping the ones that are too short to show.
func (f Formatter) scan(text string) []line {
	var lines []line
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			lines = append(lines, line{kind: kindBreak})
			continue
		}
		if utf8.RuneCountInString(trimmed) < f.MinLineChars {
			continue
		}
		if item, ok := layout.SplitListMarker(trimmed); ok {
			lines = append(lines, line{kind: kindList, text: item})
			continue
		}
		ln := line{kind: kindText, text: trimmed, indented: trimmed != raw}
		if layout.IsHeading(trimmed) {
			ln.kind = kindHeading
		}
		lines = append(lines, ln)
	}
	return lines
}

func hasContentAfter(lines []line, i int) bool {
	for _, ln := range lines[i+1:] {
		if ln.kind != kindBreak {
			return true
		}
	}
	return false
}

// joins reports whether next continues prev.
func joins(prev, next line) bool {
	if prev.kind != kindText && prev.kind != kindList {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(prev.text)
	if strings.ContainsRune(terminalPunct, last) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(next.text)
	return next.indented || unicode.IsLower(first)
}

func headingText(s string) string {
	s = strings.TrimSpace(strings.TrimLeft(s, "#"))
	if isAllCaps(s) {
		return cases.Title(language.Und).String(s)
	}
	return s
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsLower(r) {
			return false
		}
		letters++
	}
	return letters > 1
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToTitle(r)) + s[size:]
}
