package imaging

import "errors"

var (
	// ErrInvalidParameter reports a malformed argument: a zero-sized image or
	// ROI, a short pixel buffer, a zero stride or malformed cascade data.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrOutOfMemory reports scratch arena exhaustion or an exceeded result cap.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrUnsupportedFormat reports a pixel format outside the four encodings.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")

	// ErrWrongROI reports a region of interest not contained in the image.
	ErrWrongROI = errors.New("roi not contained in image")
)
