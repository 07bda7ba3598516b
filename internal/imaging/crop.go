package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Region is a rectangle in pixel coordinates: (X1,Y1) inclusive, (X2,Y2)
// exclusive. The zero Region means "the whole frame".
type Region struct {
	X1 int `json:"x1" toml:"x1" yaml:"x1"`
	Y1 int `json:"y1" toml:"y1" yaml:"y1"`
	X2 int `json:"x2" toml:"x2" yaml:"x2"`
	Y2 int `json:"y2" toml:"y2" yaml:"y2"`
}

// IsZero reports whether r selects the whole frame.
func (r Region) IsZero() bool {
	return r == Region{}
}

// Rect converts r to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// CropRegion returns the part of img selected by r. A zero Region returns
// img unchanged.
func CropRegion(img image.Image, r Region) (image.Image, error) {
	if r.IsZero() {
		return img, nil
	}
	bounds := img.Bounds()

	if r.X1 < bounds.Min.X || r.Y1 < bounds.Min.Y || r.X2 > bounds.Max.X || r.Y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.X1, r.Y1, r.X2, r.Y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	return imaging.Crop(img, r.Rect()), nil
}
