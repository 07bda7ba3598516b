// Package ocr extracts screen text with Tesseract through gosseract/v2.
//
// Tesseract is the monitor's text extractor, called once for each frame
// that passes the visual prefilter. ExtractFile and ExtractRegion serve the
// screen_ocr tool.
//
// # Prerequisites
//
// The Tesseract library and a traineddata file for every configured
// language must be installed, for example `tesseract-ocr` and
// `tesseract-ocr-eng` on Debian or `brew install tesseract` on macOS.
//
// Output is returned verbatim. Screening for unusable text (empty output,
// error reports, the no-text sentinel) happens in textnorm.Clean.
package ocr
