// Package prefilter decides, from perceptual fingerprints alone, whether a
// captured frame changed enough to be worth running OCR on.
package prefilter

import (
	"fmt"
	"image"

	"github.com/ironsheep/screenwatch/internal/imaging"
)

// Verdict is the prefilter outcome.
type Verdict string

const (
	Pass   Verdict = "pass"
	Reject Verdict = "reject"
)

// DefaultThreshold is the default normalized Hamming distance at which a
// frame counts as visually changed.
const DefaultThreshold = 0.05

// Filter compares fingerprints against a threshold. The zero value never
// rejects.
type Filter struct {
	// Threshold is the normalized bit distance in [0,1] at or above which a
	// frame passes.
	Threshold float64
	// ToneThreshold, when positive, passes frames whose mean colour moved
	// at least this far in CIE-Lab units even if the bit distance is small.
	ToneThreshold float64
}

// Decision describes one evaluation. Fingerprint is set whenever the frame
// could be fingerprinted, and is what the caller stores on Pass.
type Decision struct {
	Verdict     Verdict              `json:"verdict"`
	Distance    float64              `json:"distance"`
	ToneShift   float64              `json:"tone_shift"`
	Degraded    bool                 `json:"degraded,omitempty"`
	Reason      string               `json:"reason"`
	Fingerprint *imaging.Fingerprint `json:"-"`
}

// Passed reports whether the frame should proceed to OCR.
func (d Decision) Passed() bool { return d.Verdict == Pass }

// Evaluate compares fp with the region's last stored fingerprint. A nil
// last means the region has not been seen and always passes.
func (f Filter) Evaluate(last *imaging.Fingerprint, fp imaging.Fingerprint) Decision {
	d := Decision{Fingerprint: &fp}
	if last == nil {
		d.Verdict, d.Distance, d.Reason = Pass, 1, "first frame"
		return d
	}

	d.Distance = fp.Normalized(*last)
	d.ToneShift = fp.ToneShift(*last)

	switch {
	case d.Distance >= f.Threshold:
		d.Verdict = Pass
		d.Reason = fmt.Sprintf("distance %.3f >= %.3f", d.Distance, f.Threshold)
	case f.ToneThreshold > 0 && d.ToneShift >= f.ToneThreshold:
		d.Verdict = Pass
		d.Reason = fmt.Sprintf("tone shift %.1f >= %.1f", d.ToneShift, f.ToneThreshold)
	default:
		d.Verdict = Reject
		d.Reason = fmt.Sprintf("distance %.3f < %.3f", d.Distance, f.Threshold)
	}
	return d
}

// EvaluateFrame fingerprints img and evaluates it. When fingerprinting
// fails the decision degrades to Pass with a nil Fingerprint, so the stored
// fingerprint is left untouched.
func (f Filter) EvaluateFrame(last *imaging.Fingerprint, img image.Image) (Decision, error) {
	fp, err := imaging.ComputeFingerprint(img)
	if err != nil {
		return Decision{
			Verdict:  Pass,
			Degraded: true,
			Reason:   "fingerprint unavailable",
		}, fmt.Errorf("fingerprint frame: %w", err)
	}
	return f.Evaluate(last, fp), nil
}
