// Package imaging provides the frame operations used by the visual
// prefilter: decoding and caching screenshots, cropping watched regions,
// and computing perceptual fingerprints.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Fingerprints
//
// A Fingerprint packs a 64-bit difference hash and a 64-bit average hash
// computed from a blurred grayscale thumbnail, plus the frame's mean
// colour. Two fingerprints are compared by normalized Hamming distance;
// colour-only changes show up in ToneShift instead.
//
// # Caching
//
// ImageCache is safe for concurrent use. The monitor reloads a region's
// screenshot every cycle through Reload, so a long-running watcher holds
// at most one decoded frame per watched file. Fingerprinting resamples the
// frame to a few dozen pixels and costs far less than OCR.
package imaging
