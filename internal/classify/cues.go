package classify

import (
	"regexp"
	"strings"
)

// Cue is a family of lexical markers hinting at user intent, such as a
// navigation or an error page.
type Cue struct {
	Name     string
	Strength float64
	Phrases  []string

	re *regexp.Regexp
}

// NewCue compiles phrases into a case-insensitive, word-bounded matcher.
func NewCue(name string, strength float64, phrases ...string) Cue {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(p), " ", `\s+`)
	}
	return Cue{
		Name:     name,
		Strength: strength,
		Phrases:  phrases,
		re:       regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// Match returns the first phrase of the cue found in text.
func (c Cue) Match(text string) (string, bool) {
	if c.re == nil {
		return "", false
	}
	m := c.re.FindString(text)
	return m, m != ""
}

// DefaultCues returns the navigation, error and form-submission cue families.
func DefaultCues() []Cue {
	return []Cue{
		NewCue("error", 0.8,
			"error", "errors", "not found", "404", "500", "502", "503", "failed", "failure",
			"denied", "forbidden", "unauthorized", "exception", "unavailable",
			"invalid", "crashed", "timed out", "something went wrong"),
		NewCue("form_submission", 0.7,
			"submitted", "thank you", "thanks for", "confirmation", "confirmed",
			"sent", "saved", "order placed", "success", "successfully",
			"registered", "uploaded", "payment received"),
		NewCue("navigation", 0.6,
			"page", "tab", "back to", "home", "dashboard", "inbox", "settings",
			"menu", "sign in", "log in", "login", "logout", "log out", "sign out",
			"welcome", "profile", "search results"),
	}
}

// strongestCue returns the matching cue with the highest strength.
func strongestCue(cues []Cue, text string) (Cue, string, bool) {
	var (
		best   Cue
		phrase string
		found  bool
	)
	for _, c := range cues {
		m, ok := c.Match(text)
		if !ok {
			continue
		}
		if !found || c.Strength > best.Strength {
			best, phrase, found = c, m, true
		}
	}
	return best, phrase, found
}
