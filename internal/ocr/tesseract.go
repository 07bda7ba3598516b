package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/screenwatch/internal/imaging"
)

// DefaultLanguage is the Tesseract language used when none is configured.
const DefaultLanguage = "eng"

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion represents a word with its location and OCR confidence.
type TextRegion struct {
	// Text is the recognized text content.
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Bounds is the bounding box around this text in the image.
	Bounds Bounds `json:"bounds"`
}

// OCRResult contains the complete results of text extraction from an image.
type OCRResult struct {
	// FullText is all recognized text as a single string with original spacing/newlines.
	FullText string `json:"full_text"`

	// Regions contains individual words with their bounding boxes and confidence scores.
	// May be empty if bounding box extraction fails (text will still be in FullText).
	Regions []TextRegion `json:"regions"`
}

// Tesseract extracts text from in-memory frames. The zero value uses
// DefaultLanguage.
//
// Each call creates its own gosseract client, so a Tesseract may be shared
// by the monitor's per-region goroutines.
type Tesseract struct {
	Language string
}

// ExtractText runs OCR on img and returns the recognized text.
//
// gosseract calls cannot be interrupted; ctx is checked before the frame is
// encoded and again before recognition starts.
func (t Tesseract) ExtractText(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := extract(data, t.language(), false)
	if err != nil {
		return "", err
	}
	return res.FullText, nil
}

func (t Tesseract) language() string {
	if t.Language == "" {
		return DefaultLanguage
	}
	return t.Language
}

// ExtractFile performs OCR on an entire image file and returns recognized
// text together with word-level boxes.
//
// Parameters:
//   - imagePath: Absolute path to the image file. Supports PNG, JPEG, TIFF, BMP.
//   - language: Tesseract language code (e.g., "eng" for English). The corresponding
//     language data must be installed on the system.
//
// # Word-Level Results
//
// The Regions field provides word-level granularity using Tesseract's RIL_WORD
// iterator level. Empty words are filtered out. If word-level bounding box
// extraction fails (which can happen with some Tesseract configurations),
// the full text is still returned with an empty Regions slice.
func ExtractFile(imagePath string, language string) (*OCRResult, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if language == "" {
		language = DefaultLanguage
	}
	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return recognize(client, true)
}

// ExtractRegion performs OCR on part of an in-memory image.
//
// Bounding boxes in the result are adjusted to the original image
// coordinates. For example, if the region starts at (100, 50) and a word is
// detected at (10, 20) within the crop, the returned bounds start at
// (110, 70).
func ExtractRegion(img image.Image, r imaging.Region, language string) (*OCRResult, error) {
	cropped, err := imaging.CropRegion(img, r)
	if err != nil {
		return nil, err
	}
	data, err := encodePNG(cropped)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = DefaultLanguage
	}
	result, err := extract(data, language, true)
	if err != nil {
		return nil, err
	}

	for i := range result.Regions {
		result.Regions[i].Bounds.X1 += r.X1
		result.Regions[i].Bounds.Y1 += r.Y1
		result.Regions[i].Bounds.X2 += r.X1
		result.Regions[i].Bounds.Y2 += r.Y1
	}
	return result, nil
}

// Version returns the linked Tesseract library version.
func Version() string {
	return gosseract.Version()
}

func extract(data []byte, language string, boxes bool) (*OCRResult, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return recognize(client, boxes)
}

func recognize(client *gosseract.Client, boxes bool) (*OCRResult, error) {
	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	result := &OCRResult{FullText: text, Regions: []TextRegion{}}
	if !boxes {
		return result, nil
	}

	words, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Return just text if boxes fail
		return result, nil
	}
	for _, box := range words {
		if box.Word == "" {
			continue
		}
		result.Regions = append(result.Regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}
	return result, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, imaging.ErrEmptyFrame
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
