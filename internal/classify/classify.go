// Package classify turns similarity scores into a typed change with a
// confidence in [0,1].
//
// Classification is an ordered decision table: the first Rule whose Match
// returns true decides the change type and computes the confidence. The
// default table is:
//
//  1. semantic_change       dissimilarity >= major and a lexical cue is present
//  2. layout_change         dissimilarity >= major and structural lags lexical
//  3. major_content_change  dissimilarity >= major
//  4. content_update        dissimilarity >= the min_change_chars floor and
//     lexical < similarity_threshold
//  5. minor_change          everything else
package classify

import (
	"math"

	"github.com/ironsheep/screenwatch/internal/change"
	"github.com/ironsheep/screenwatch/internal/similarity"
)

// Config holds the classifier thresholds.
type Config struct {
	LexicalWeight        float64
	StructuralWeight     float64
	MajorChangeThreshold float64
	SimilarityThreshold  float64
	MinChangeChars       int
	LayoutGap            float64
	// RevisitPenalty scales confidence when the text was already accepted
	// recently.
	RevisitPenalty float64
}

// DefaultConfig returns the standard classifier thresholds.
func DefaultConfig() Config {
	return Config{
		LexicalWeight:        0.5,
		StructuralWeight:     0.5,
		MajorChangeThreshold: 0.4,
		SimilarityThreshold:  0.85,
		MinChangeChars:       50,
		LayoutGap:            0.25,
		RevisitPenalty:       0.8,
	}
}

// minorCap is the highest confidence a minor_change can carry.
const minorCap = 0.2

// Input is everything a Rule may inspect.
type Input struct {
	Scores        similarity.Scores
	Text          string
	Dissimilarity float64
	// Floor is min_change_chars expressed as a fraction of the longer text.
	Floor    float64
	Cue      *Cue
	CueMatch string
	Config   Config
}

// Rule is one row of the decision table.
type Rule struct {
	Type       change.Type
	Match      func(in *Input) bool
	Confidence func(in *Input) float64
}

// Result is the outcome of classification.
type Result struct {
	Type          change.Type `json:"change_type"`
	Confidence    float64     `json:"confidence"`
	Dissimilarity float64     `json:"dissimilarity"`
	Cue           string      `json:"cue,omitempty"`
	CueMatch      string      `json:"cue_match,omitempty"`
	Revisit       bool        `json:"revisit,omitempty"`
}

// Classifier applies a decision table with a cue list.
type Classifier struct {
	cfg   Config
	cues  []Cue
	table []Rule
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCues replaces the default cue families.
func WithCues(cues ...Cue) Option {
	return func(c *Classifier) { c.cues = cues }
}

// WithTable replaces the default decision table.
func WithTable(rules ...Rule) Option {
	return func(c *Classifier) { c.table = rules }
}

// New returns a Classifier using cfg.
func New(cfg Config, opts ...Option) *Classifier {
	c := &Classifier{
		cfg:   cfg,
		cues:  DefaultCues(),
		table: DefaultTable(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Config returns the active thresholds.
func (c *Classifier) Config() Config { return c.cfg }

// Classify decides the change type and confidence for curr given its scores
// against the previous baseline and the region's recent history.
func (c *Classifier) Classify(scores similarity.Scores, curr string, history []change.Record) Result {
	scores.Lexical = Clamp(scores.Lexical)
	scores.Structural = Clamp(scores.Structural)
	if math.IsNaN(scores.LengthDelta) || scores.LengthDelta < 0 {
		scores.LengthDelta = 0
	}
	in := &Input{
		Scores:        scores,
		Text:          curr,
		Dissimilarity: Dissimilarity(scores, c.cfg),
		Floor:         floor(scores, c.cfg.MinChangeChars),
		Config:        c.cfg,
	}
	if cue, phrase, ok := strongestCue(c.cues, curr); ok {
		in.Cue, in.CueMatch = &cue, phrase
	}

	res := Result{Type: change.MinorChange, Dissimilarity: in.Dissimilarity}
	for _, rule := range c.table {
		if rule.Match(in) {
			res.Type = rule.Type
			res.Confidence = rule.Confidence(in)
			break
		}
	}
	if res.Type == change.SemanticChange && in.Cue != nil {
		res.Cue, res.CueMatch = in.Cue.Name, in.CueMatch
	}

	if res.Type.IsMajor() && seenAccepted(history, change.Digest(curr)) {
		res.Revisit = true
		res.Confidence *= c.cfg.RevisitPenalty
	}
	res.Confidence = Clamp(res.Confidence)
	return res
}

// DefaultTable returns the standard first-match-wins decision table.
func DefaultTable() []Rule {
	return []Rule{
		{
			Type: change.SemanticChange,
			Match: func(in *Input) bool {
				return isMajor(in) && in.Cue != nil
			},
			Confidence: func(in *Input) float64 {
				d := in.Dissimilarity
				return d + (1-d)*in.Cue.Strength
			},
		},
		{
			Type: change.LayoutChange,
			Match: func(in *Input) bool {
				return isMajor(in) && in.Scores.Structural < in.Scores.Lexical-in.Config.LayoutGap
			},
			Confidence: func(in *Input) float64 {
				gap := in.Scores.Lexical - in.Scores.Structural - in.Config.LayoutGap
				// Reorganized content keeps its length; a large length
				// swing weakens the layout reading.
				steady := 1 - math.Min(in.Scores.LengthDelta, 1)/2
				return (majorScale(in) + gap) * steady
			},
		},
		{
			Type:       change.MajorContentChange,
			Match:      isMajor,
			Confidence: majorScale,
		},
		{
			Type: change.ContentUpdate,
			Match: func(in *Input) bool {
				return in.Dissimilarity >= in.Floor && in.Scores.Lexical < in.Config.SimilarityThreshold
			},
			Confidence: func(in *Input) float64 {
				return 0.5 * in.Dissimilarity / in.Config.MajorChangeThreshold
			},
		},
		{
			Type:  change.MinorChange,
			Match: func(*Input) bool { return true },
			Confidence: func(in *Input) float64 {
				return math.Min(in.Dissimilarity, minorCap)
			},
		},
	}
}

// Dissimilarity returns 1 minus the weighted mean of lexical and structural
// similarity, rounded to 1e-9 so threshold comparisons are exact.
func Dissimilarity(s similarity.Scores, cfg Config) float64 {
	wl, ws := cfg.LexicalWeight, cfg.StructuralWeight
	if wl < 0 || ws < 0 || wl+ws == 0 {
		wl, ws = 0.5, 0.5
	}
	combined := (wl*Clamp(s.Lexical) + ws*Clamp(s.Structural)) / (wl + ws)
	return Clamp(math.Round((1-combined)*1e9) / 1e9)
}

// Clamp forces v into [0,1]; NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func isMajor(in *Input) bool {
	return in.Dissimilarity >= in.Config.MajorChangeThreshold
}

// majorScale maps dissimilarity in [major,1] onto confidence [0.5,1].
func majorScale(in *Input) float64 {
	major := in.Config.MajorChangeThreshold
	if major >= 1 {
		return 1
	}
	return 0.5 + 0.5*(in.Dissimilarity-major)/(1-major)
}

func floor(s similarity.Scores, minChars int) float64 {
	longest := max(s.PrevLen, s.CurrLen, 1)
	return math.Min(float64(minChars)/float64(longest), 1)
}

func seenAccepted(history []change.Record, digest string) bool {
	for _, r := range history {
		if r.Accepted && r.Digest == digest {
			return true
		}
	}
	return false
}
