package textnorm

import (
	"errors"
	"strings"
)

// ErrorPrefix marks OCR output that reports a failure instead of text.
const ErrorPrefix = "OCR_ERROR:"

// NoTextSentinel is the placeholder some OCR front ends return for blank
// frames.
const NoTextSentinel = "No text detected in image"

// ErrNoText is returned by Clean when OCR produced nothing usable.
var ErrNoText = errors.New("no usable text")

// Clean screens raw OCR output. Empty text, the no-text sentinel and
// OCR_ERROR: reports all yield ErrNoText.
func Clean(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return "", ErrNoText
	case strings.HasPrefix(trimmed, ErrorPrefix):
		return "", ErrNoText
	case strings.EqualFold(trimmed, NoTextSentinel):
		return "", ErrNoText
	}
	return text, nil
}
