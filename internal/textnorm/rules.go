package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule is one step of the normalization pipeline. Rules are plain data: a
// name for diagnostics and a pure string transform.
type Rule struct {
	Name  string
	Apply func(string) string
}

// Remove deletes every match of expr.
func Remove(name, expr string) Rule {
	return Replace(name, expr, "")
}

// Replace substitutes every match of expr with repl. repl may reference
// capture groups using regexp.Expand syntax.
func Replace(name, expr, repl string) Rule {
	re := regexp.MustCompile(expr)
	return Rule{
		Name:  name,
		Apply: func(s string) string { return re.ReplaceAllString(s, repl) },
	}
}

// DropLines removes every line for which drop returns true.
func DropLines(name string, drop func(line string) bool) Rule {
	return Rule{
		Name: name,
		Apply: func(s string) string {
			lines := strings.Split(s, "\n")
			kept := lines[:0]
			for _, line := range lines {
				if !drop(line) {
					kept = append(kept, line)
				}
			}
			return strings.Join(kept, "\n")
		},
	}
}

// MapLines applies fn to every line.
func MapLines(name string, fn func(line string) string) Rule {
	return Rule{
		Name: name,
		Apply: func(s string) string {
			lines := strings.Split(s, "\n")
			for i, line := range lines {
				lines[i] = fn(line)
			}
			return strings.Join(lines, "\n")
		},
	}
}

// Squeeze removes runs of at least minRun identical symbol characters
// (anything that is not a letter, digit or whitespace), such as "-----" or
// "=====" left behind by progress bars and separators.
func Squeeze(name string, minRun int) Rule {
	return Rule{
		Name: name,
		Apply: func(s string) string {
			return squeezeRuns(s, minRun)
		},
	}
}

// squeezeRuns drops symbol runs of at least minRun. Removing a run can
// join the runs on either side of it, so each run is checked against the
// tail already written and the merged run is dropped when long enough.
func squeezeRuns(s string, minRun int) string {
	if minRun < 2 {
		minRun = 2
	}
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	for i := 0; i < len(runes); {
		r := runes[i]
		j := i + 1
		for j < len(runes) && runes[j] == r {
			j++
		}
		run := runes[i:j]
		i = j

		if !isSymbol(r) {
			out = append(out, run...)
			continue
		}
		tail := 0
		for tail < len(out) && out[len(out)-1-tail] == r {
			tail++
		}
		if tail+len(run) >= minRun {
			out = out[:len(out)-tail]
			continue
		}
		out = append(out, run...)
	}
	return string(out)
}

func isSymbol(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}

var reSpaces = regexp.MustCompile(`[ \t\f\v\r]+`)

// collapseSpaces folds internal whitespace runs to one space and trims the
// line.
func collapseSpaces(line string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(line, " "))
}

// shortLine reports whether a non-blank line has at most max runes.
func shortLine(max int) func(string) bool {
	return func(line string) bool {
		line = strings.TrimSpace(line)
		return line != "" && utf8.RuneCountInString(line) <= max
	}
}

// symbolLine reports whether a non-blank line contains no letter or digit.
func symbolLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	for _, r := range line {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// DefaultRules is the standard noise-stripping rule set. Order matters:
// dates are removed before the generic "n/m" progress counter, and line
// tidying runs after every substring removal.
func DefaultRules() []Rule {
	return []Rule{
		Remove("ocr_sentinel", `(?i)no text detected in image`),
		Remove("iso_datetime", `\b\d{4}-\d{2}-\d{2}(?:[T ]\d{1,2}:\d{2}(?::\d{2})?(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)?\b`),
		Remove("slash_date", `\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		Remove("clock", `(?i)\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?[ap]\.?m\b\.?)?`),
		Remove("relative_time", `(?i)\b(?:\d+|an?|one)\s+(?:sec(?:ond)?|min(?:ute)?|hour|hr|day|week|month|year)s?\s+ago\b`),
		Remove("just_now", `(?i)\bjust now\b`),
		Remove("percent", `\b\d{1,3}(?:\.\d+)?\s?%`),
		Remove("progress_counter", `\b\d+\s?/\s?\d+\b`),
		Remove("progress_bar", `\[[\s.\-]*[=#>][=#>\-\s.]*\]`),
		Remove("spinner", `[\x{2800}-\x{28FF}◐◓◑◒◴◵◶◷⏳⌛]`),
		Remove("ellipsis", `\s*\.{2,}`),
		Squeeze("repeated_symbols", 3),
		MapLines("collapse_spaces", collapseSpaces),
		DropLines("symbol_lines", symbolLine),
		DropLines("short_lines", shortLine(2)),
	}
}
