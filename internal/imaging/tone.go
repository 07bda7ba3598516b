package imaging

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// ToneResult describes a frame's mean colour.
type ToneResult struct {
	Hex string     `json:"hex"`
	Lab [3]float64 `json:"lab"`
}

// MeanTone returns the average colour of img, with alpha ignored.
func MeanTone(img image.Image) (colorful.Color, error) {
	if img == nil || img.Bounds().Empty() {
		return colorful.Color{}, ErrEmptyFrame
	}
	px := imaging.Resize(img, 1, 1, imaging.Box)
	return colorful.Color{
		R: float64(px.Pix[0]) / 255,
		G: float64(px.Pix[1]) / 255,
		B: float64(px.Pix[2]) / 255,
	}, nil
}

// DescribeTone converts a colour to its hex and Lab forms.
func DescribeTone(c colorful.Color) ToneResult {
	l, a, b := c.Lab()
	return ToneResult{
		Hex: c.Clamped().Hex(),
		Lab: [3]float64{l, a, b},
	}
}
