// Package layout classifies the lines of OCR'd screen text into coarse kinds
// (blank, text, list item, heading) and summarizes a text's shape.
//
// The structural similarity metric and the display formatter share this
// classification, so they agree on what a "list" or a "heading" is.
package layout

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind is the coarse role of a single line.
type Kind int

const (
	// Blank is an empty or whitespace-only line.
	Blank Kind = iota
	// Text is an ordinary line of prose or UI text.
	Text
	// ListItem starts with a bullet or an enumerator.
	ListItem
	// Heading is a short, title-like line.
	Heading
)

func (k Kind) String() string {
	switch k {
	case Blank:
		return "blank"
	case Text:
		return "text"
	case ListItem:
		return "list"
	case Heading:
		return "heading"
	default:
		return "unknown"
	}
}

// MaxHeadingRunes is the longest line still considered a heading.
const MaxHeadingRunes = 60

// maxHeadingWords caps the word count of a heading.
const maxHeadingWords = 8

var (
	reBullet     = regexp.MustCompile(`^\s*([-*+•·▪◦‣o])\s+`)
	reEnumerator = regexp.MustCompile(`^\s*(\d{1,3}|[a-zA-Z])[.)]\s+`)
	reHeader     = regexp.MustCompile(`^\s*#{1,6}\s+\S`)
)

// SplitListMarker reports whether line starts with a list marker and, if so,
// returns the item text with the marker removed.
func SplitListMarker(line string) (string, bool) {
	if loc := reBullet.FindStringIndex(line); loc != nil {
		// "o" is only a bullet when followed by text that is not a word
		// continuation, e.g. "o Item" but not "oh no".
		if strings.TrimSpace(line[:loc[1]]) == "o" && !startsUpper(line[loc[1]:]) {
			return line, false
		}
		return strings.TrimSpace(line[loc[1]:]), true
	}
	if loc := reEnumerator.FindStringIndex(line); loc != nil {
		return strings.TrimSpace(line[loc[1]:]), true
	}
	return line, false
}

// IsHeading reports whether a non-list line looks like a heading: a markdown
// header, or a short line without terminal punctuation whose words are
// capitalized.
func IsHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if reHeader.MatchString(line) {
		return true
	}
	if utf8.RuneCountInString(line) > MaxHeadingRunes {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(line)
	if strings.ContainsRune(".,;!?", last) {
		return false
	}
	words := strings.Fields(line)
	if len(words) > maxHeadingWords {
		return false
	}
	lettered := 0
	for _, w := range words {
		first, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsLetter(first) {
			continue
		}
		lettered++
		if !unicode.IsUpper(first) {
			return false
		}
	}
	return lettered > 0
}

// Classify returns the kind of a single line.
func Classify(line string) Kind {
	if strings.TrimSpace(line) == "" {
		return Blank
	}
	if _, ok := SplitListMarker(line); ok {
		return ListItem
	}
	if IsHeading(line) {
		return Heading
	}
	return Text
}

// Shape is the coarse structure of a block of text.
type Shape struct {
	Lines      int    `json:"lines"`
	Paragraphs int    `json:"paragraphs"`
	ListItems  int    `json:"list_items"`
	Headings   int    `json:"headings"`
	Kinds      []Kind `json:"-"`
}

// Analyze computes the shape of text. Kinds holds one entry per non-blank
// line, with a single Blank between paragraphs.
func Analyze(text string) Shape {
	var s Shape
	inParagraph := false
	for _, line := range strings.Split(text, "\n") {
		k := Classify(line)
		if k == Blank {
			if inParagraph {
				s.Kinds = append(s.Kinds, Blank)
			}
			inParagraph = false
			continue
		}
		if !inParagraph {
			s.Paragraphs++
			inParagraph = true
		}
		s.Lines++
		switch k {
		case ListItem:
			s.ListItems++
		case Heading:
			s.Headings++
		}
		s.Kinds = append(s.Kinds, k)
	}
	if n := len(s.Kinds); n > 0 && s.Kinds[n-1] == Blank {
		s.Kinds = s.Kinds[:n-1]
	}
	return s
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s))
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}
