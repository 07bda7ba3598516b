package imaging

import (
	"errors"
	"fmt"
	"image"
	"math/bits"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// FingerprintBits is the width of a Fingerprint's bit vector.
const FingerprintBits = 128

// blurRadius softens anti-aliasing and cursor-sized details before hashing.
const blurRadius = 1.0

// ErrEmptyFrame is returned when a frame has no pixels.
var ErrEmptyFrame = errors.New("empty frame")

// Fingerprint is a perceptual hash of a frame.
//
// Bits[0] is a 64-bit difference hash (horizontal gradient signs of a 9x8
// grayscale thumbnail) and Bits[1] a 64-bit average hash (8x8 thumbnail
// pixels above the mean). Tone is the frame's mean colour, used to detect
// colour-only changes the grayscale hashes cannot see.
type Fingerprint struct {
	Bits [2]uint64
	Tone colorful.Color
}

// ComputeFingerprint hashes img.
//
// The frame is Gaussian-blurred, converted to grayscale and box-resampled
// to the two thumbnail sizes. Returns ErrEmptyFrame for nil or zero-area
// images.
func ComputeFingerprint(img image.Image) (Fingerprint, error) {
	if img == nil || img.Bounds().Empty() {
		return Fingerprint{}, ErrEmptyFrame
	}

	soft := blur.Gaussian(img, blurRadius)
	gray := imaging.Grayscale(soft)

	var fp Fingerprint
	fp.Bits[0] = differenceHash(imaging.Resize(gray, 9, 8, imaging.Box))
	fp.Bits[1] = averageHash(imaging.Resize(gray, 8, 8, imaging.Box))

	tone, err := MeanTone(img)
	if err != nil {
		return Fingerprint{}, err
	}
	fp.Tone = tone
	return fp, nil
}

// differenceHash sets bit (y*8+x) when pixel x is brighter than pixel x+1.
func differenceHash(thumb *image.NRGBA) uint64 {
	var h uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if luma(thumb, x, y) > luma(thumb, x+1, y) {
				h |= 1 << uint(y*8+x)
			}
		}
	}
	return h
}

// averageHash sets bit (y*8+x) when the pixel is brighter than the mean.
func averageHash(thumb *image.NRGBA) uint64 {
	var sum int
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			sum += int(luma(thumb, x, y))
		}
	}
	// Compare against sum/64 without losing the fraction.
	var h uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if int(luma(thumb, x, y))*64 > sum {
				h |= 1 << uint(y*8+x)
			}
		}
	}
	return h
}

// luma reads the red channel of a grayscale NRGBA thumbnail.
func luma(img *image.NRGBA, x, y int) uint8 {
	return img.Pix[y*img.Stride+x*4]
}

// Distance returns the Hamming distance between f and o, in [0, 128].
func (f Fingerprint) Distance(o Fingerprint) int {
	return bits.OnesCount64(f.Bits[0]^o.Bits[0]) + bits.OnesCount64(f.Bits[1]^o.Bits[1])
}

// Normalized returns the Hamming distance scaled to [0,1].
func (f Fingerprint) Normalized(o Fingerprint) float64 {
	return float64(f.Distance(o)) / FingerprintBits
}

// ToneShift returns the CIE76 colour difference between the frames' mean
// colours, on the conventional 0-100 scale.
func (f Fingerprint) ToneShift(o Fingerprint) float64 {
	return f.Tone.DistanceLab(o.Tone) * 100
}

// String renders the bit vector as 32 hex digits.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x%016x", f.Bits[0], f.Bits[1])
}
