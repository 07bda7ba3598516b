// Package similarity scores how alike two normalized screen texts are.
//
// Three independent metrics are produced:
//
//   - Lexical: mean of the token longest-common-subsequence ratio and the
//     token-set Jaccard index. 1.0 for identical token streams, 0.0 for
//     disjoint ones.
//   - Structural: weighted comparison of coarse shape (line, paragraph,
//     list and heading counts plus the sequence of line kinds). Captures
//     "content reorganized" as distinct from "content replaced".
//   - LengthDelta: |len(curr)-len(prev)| / max(len(prev), 1), in runes.
package similarity

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ironsheep/screenwatch/internal/layout"
)

// Scores holds the similarity metrics for one comparison.
type Scores struct {
	Lexical     float64 `json:"lexical"`
	Structural  float64 `json:"structural"`
	LengthDelta float64 `json:"length_delta"`

	// PrevLen and CurrLen are the rune lengths of the compared texts.
	PrevLen int `json:"prev_len"`
	CurrLen int `json:"curr_len"`
}

// Structural feature weights. They sum to 1.
const (
	weightLines      = 0.2
	weightParagraphs = 0.2
	weightLists      = 0.15
	weightHeadings   = 0.15
	weightKinds      = 0.3
)

// Compare scores curr against prev. Identical texts, including two empty
// ones, score 1.0 on both similarity metrics; if exactly one side is empty
// both are 0.
func Compare(prev, curr string) Scores {
	s := Scores{
		PrevLen: utf8.RuneCountInString(prev),
		CurrLen: utf8.RuneCountInString(curr),
	}
	s.LengthDelta = math.Abs(float64(s.CurrLen-s.PrevLen)) / math.Max(float64(s.PrevLen), 1)

	if prev == curr {
		s.Lexical, s.Structural = 1, 1
		return s
	}
	if strings.TrimSpace(prev) == "" || strings.TrimSpace(curr) == "" {
		return s
	}

	s.Lexical = Lexical(prev, curr)
	s.Structural = Structural(prev, curr)
	return s
}

// Lexical returns the token-level similarity of a and b in [0,1].
func Lexical(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		if a == b {
			return 1
		}
		return 0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	return clamp01(0.5*lcsRatio(ta, tb) + 0.5*jaccard(ta, tb))
}

// Structural returns the shape similarity of a and b in [0,1].
func Structural(a, b string) float64 {
	sa, sb := layout.Analyze(a), layout.Analyze(b)
	score := weightLines*countRatio(sa.Lines, sb.Lines) +
		weightParagraphs*countRatio(sa.Paragraphs, sb.Paragraphs) +
		weightLists*countRatio(sa.ListItems, sb.ListItems) +
		weightHeadings*countRatio(sa.Headings, sb.Headings) +
		weightKinds*lcsRatio(sa.Kinds, sb.Kinds)
	return clamp01(score)
}

// Tokens splits text into lowercase runs of letters and digits.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// lcsRatio returns 2·LCS/(len(a)+len(b)), or 1 when both are empty.
func lcsRatio[T comparable](a, b []T) float64 {
	if len(a)+len(b) == 0 {
		return 1
	}
	return 2 * float64(lcsLength(a, b)) / float64(len(a)+len(b))
}

// lcsLength computes the longest common subsequence length with two rows.
func lcsLength[T comparable](a, b []T) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func jaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	if len(set) == 0 {
		return 1
	}
	return float64(inter) / float64(len(set))
}

// countRatio scores two counts as 1-|a-b|/max(a,b), or 1 when both are 0.
func countRatio(a, b int) float64 {
	if a == b {
		return 1
	}
	hi := math.Max(float64(a), float64(b))
	return 1 - math.Abs(float64(a-b))/hi
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
