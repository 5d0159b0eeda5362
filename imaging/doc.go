// Package imaging provides the image descriptor, geometry primitives and pixel
// accessors shared by every detector in this module.
//
// An Image references a caller-owned pixel buffer in one of four encodings and
// never copies or frees it. Detectors read pixels through the accessors defined
// here; no pixel-format conversion happens inside a detector.
//
// # Pixel Formats
//
// The format set is closed:
//
//   - FormatBinary: one bit per pixel, rows padded to whole 32-bit words
//   - FormatGray8: one byte per pixel
//   - FormatRGB565: one uint16 per pixel (5 red, 6 green, 5 blue bits)
//   - FormatRGB888: three bytes per pixel in R, G, B order
//
// Per-format dispatch is a switch over Format. Hot loops resolve it once per row
// through the typed row accessors (BinaryRow, GrayRow, RGB565Row, RGB888Row).
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Rect is (X, Y, W, H); the right and bottom edges are exclusive
//
// Width and height are limited to 1..32767 so every coordinate fits 16 bits.
//
// # Color Thresholds
//
// A ColorThreshold holds six bounds in an LAB-like space. Binary images compare
// the bit value (0 or 1) against the L bounds, gray8 images compare the byte
// value against the L bounds, and RGB images are converted to CIE L*a*b*
// (L 0..100, a and b -128..127) through a lookup table built once with
// go-colorful.
//
// # Error Handling
//
// Every failure is reported with one of four sentinel errors, wrapped with
// context by the caller:
//   - ErrInvalidParameter: zero-sized image, short buffer, bad stride or cascade
//   - ErrOutOfMemory: scratch arena exhausted or blob cap exceeded
//   - ErrUnsupportedFormat: a format outside the four encodings
//   - ErrWrongROI: a region of interest not contained in the image
//
// Use errors.Is to test for them.
//
// # Interop
//
// FromGray, FromBinary, FromRGB565 and FromRGB888 build descriptors from any Go
// image.Image. They allocate a new buffer owned by the returned Image.
package imaging
