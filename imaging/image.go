package imaging

import (
	"fmt"
)

// Format identifies one of the four supported pixel encodings.
type Format uint8

const (
	FormatBinary Format = iota + 1
	FormatGray8
	FormatRGB565
	FormatRGB888
)

// MaxDimension is the largest width or height an Image may have.
const MaxDimension = 32767

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatGray8:
		return "gray8"
	case FormatRGB565:
		return "rgb565"
	case FormatRGB888:
		return "rgb888"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// Valid reports whether f is one of the four supported encodings.
func (f Format) Valid() bool {
	return f >= FormatBinary && f <= FormatRGB888
}

// Image describes a pixel buffer owned by the caller.
//
// Exactly one of the typed buffers is populated, selected by Format. The
// descriptor never copies the buffer, so changes made by the owner are visible
// through it.
type Image struct {
	// Width is the horizontal extent in pixels (1..MaxDimension).
	Width int

	// Height is the vertical extent in pixels (1..MaxDimension).
	Height int

	// Format selects the populated buffer.
	Format Format

	bits   []uint32 // FormatBinary, BinaryWords(Width) words per row
	gray   []uint8  // FormatGray8
	rgb565 []uint16 // FormatRGB565
	rgb888 []uint8  // FormatRGB888, 3 bytes per pixel
}

// BinaryWords returns the number of 32-bit words in one row of a binary image.
func BinaryWords(width int) int {
	return (width + 31) / 32
}

// NewBinary wraps a bit-packed buffer. Bit x of a row lives in word x/32 at bit
// position x%32.
func NewBinary(width, height int, words []uint32) (*Image, error) {
	if err := checkDims(width, height, len(words), BinaryWords(width)*height); err != nil {
		return nil, err
	}
	return &Image{Width: width, Height: height, Format: FormatBinary, bits: words}, nil
}

// NewGray wraps an 8-bit grayscale buffer.
func NewGray(width, height int, pix []uint8) (*Image, error) {
	if err := checkDims(width, height, len(pix), width*height); err != nil {
		return nil, err
	}
	return &Image{Width: width, Height: height, Format: FormatGray8, gray: pix}, nil
}

// NewRGB565 wraps a 16-bit RGB565 buffer.
func NewRGB565(width, height int, pix []uint16) (*Image, error) {
	if err := checkDims(width, height, len(pix), width*height); err != nil {
		return nil, err
	}
	return &Image{Width: width, Height: height, Format: FormatRGB565, rgb565: pix}, nil
}

// NewRGB888 wraps a 24-bit buffer stored as R, G, B bytes.
func NewRGB888(width, height int, pix []uint8) (*Image, error) {
	if err := checkDims(width, height, len(pix), 3*width*height); err != nil {
		return nil, err
	}
	return &Image{Width: width, Height: height, Format: FormatRGB888, rgb888: pix}, nil
}

// Alloc returns a zeroed image of the given format backed by a new buffer.
func Alloc(width, height int, f Format) (*Image, error) {
	if err := checkDims(width, height, 0, 0); err != nil {
		return nil, err
	}
	switch f {
	case FormatBinary:
		return NewBinary(width, height, make([]uint32, BinaryWords(width)*height))
	case FormatGray8:
		return NewGray(width, height, make([]uint8, width*height))
	case FormatRGB565:
		return NewRGB565(width, height, make([]uint16, width*height))
	case FormatRGB888:
		return NewRGB888(width, height, make([]uint8, 3*width*height))
	default:
		return nil, fmt.Errorf("failed to allocate %s image: %w", f, ErrUnsupportedFormat)
	}
}

func checkDims(width, height, have, want int) error {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("image dimensions %dx%d: %w", width, height, ErrInvalidParameter)
	}
	if have < want {
		return fmt.Errorf("buffer holds %d elements, need %d: %w", have, want, ErrInvalidParameter)
	}
	return nil
}

// Validate checks the descriptor before any detector touches its pixels.
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("nil image: %w", ErrInvalidParameter)
	}
	var have, want int
	switch img.Format {
	case FormatBinary:
		have, want = len(img.bits), BinaryWords(img.Width)*img.Height
	case FormatGray8:
		have, want = len(img.gray), img.Width*img.Height
	case FormatRGB565:
		have, want = len(img.rgb565), img.Width*img.Height
	case FormatRGB888:
		have, want = len(img.rgb888), 3*img.Width*img.Height
	default:
		return fmt.Errorf("image format %s: %w", img.Format, ErrUnsupportedFormat)
	}
	return checkDims(img.Width, img.Height, have, want)
}

// Bounds returns the rectangle covering the whole image.
func (img *Image) Bounds() Rect {
	return Rect{W: img.Width, H: img.Height}
}

// CheckROI validates the image and resolves roi against it. A zero Rect selects
// the whole image.
func (img *Image) CheckROI(roi Rect) (Rect, error) {
	if err := img.Validate(); err != nil {
		return Rect{}, err
	}
	if roi == (Rect{}) {
		return img.Bounds(), nil
	}
	if roi.W <= 0 || roi.H <= 0 {
		return Rect{}, fmt.Errorf("roi %v has zero area: %w", roi, ErrInvalidParameter)
	}
	if !img.Bounds().Contains(roi) {
		return Rect{}, fmt.Errorf("roi %v outside %dx%d image: %w", roi, img.Width, img.Height, ErrWrongROI)
	}
	return roi, nil
}

// BitRow is one row of a binary image.
type BitRow []uint32

// Get reports whether bit x is set.
func (r BitRow) Get(x int) bool {
	return r[x>>5]>>(uint(x)&31)&1 != 0
}

// BinaryRow returns row y of a binary image.
func (img *Image) BinaryRow(y int) BitRow {
	n := BinaryWords(img.Width)
	return BitRow(img.bits[y*n : (y+1)*n])
}

// GrayRow returns row y of a gray8 image.
func (img *Image) GrayRow(y int) []uint8 {
	return img.gray[y*img.Width : (y+1)*img.Width]
}

// RGB565Row returns row y of an rgb565 image.
func (img *Image) RGB565Row(y int) []uint16 {
	return img.rgb565[y*img.Width : (y+1)*img.Width]
}

// RGB888Row returns row y of an rgb888 image, three bytes per pixel.
func (img *Image) RGB888Row(y int) []uint8 {
	return img.rgb888[3*y*img.Width : 3*(y+1)*img.Width]
}

// Pixel returns the raw pixel value: 0/1 for binary, the byte for gray8, the
// 16-bit word for rgb565 and 0xRRGGBB for rgb888.
func (img *Image) Pixel(x, y int) uint32 {
	switch img.Format {
	case FormatBinary:
		if img.BinaryRow(y).Get(x) {
			return 1
		}
		return 0
	case FormatGray8:
		return uint32(img.gray[y*img.Width+x])
	case FormatRGB565:
		return uint32(img.rgb565[y*img.Width+x])
	case FormatRGB888:
		i := 3 * (y*img.Width + x)
		return uint32(img.rgb888[i])<<16 | uint32(img.rgb888[i+1])<<8 | uint32(img.rgb888[i+2])
	}
	return 0
}

// Bit reports whether pixel (x, y) is foreground: a set bit for binary images,
// a non-zero intensity otherwise.
func (img *Image) Bit(x, y int) bool {
	if img.Format == FormatBinary {
		return img.BinaryRow(y).Get(x)
	}
	return img.Intensity(x, y) != 0
}

// SetPixel stores a raw pixel value using the same encoding as Pixel.
func (img *Image) SetPixel(x, y int, v uint32) {
	switch img.Format {
	case FormatBinary:
		w := &img.bits[y*BinaryWords(img.Width)+x>>5]
		if v != 0 {
			*w |= 1 << (uint(x) & 31)
		} else {
			*w &^= 1 << (uint(x) & 31)
		}
	case FormatGray8:
		img.gray[y*img.Width+x] = uint8(v)
	case FormatRGB565:
		img.rgb565[y*img.Width+x] = uint16(v)
	case FormatRGB888:
		i := 3 * (y*img.Width + x)
		img.rgb888[i] = uint8(v >> 16)
		img.rgb888[i+1] = uint8(v >> 8)
		img.rgb888[i+2] = uint8(v)
	}
}

// Intensity returns the 0..255 brightness of a pixel. Binary pixels read 0 or
// 255; RGB pixels use the integer luma approximation (38R + 75G + 15B) / 128.
func (img *Image) Intensity(x, y int) uint8 {
	switch img.Format {
	case FormatBinary:
		if img.BinaryRow(y).Get(x) {
			return 255
		}
		return 0
	case FormatGray8:
		return img.gray[y*img.Width+x]
	case FormatRGB565:
		r, g, b := RGB565To888(img.rgb565[y*img.Width+x])
		return luma(r, g, b)
	case FormatRGB888:
		i := 3 * (y*img.Width + x)
		return luma(img.rgb888[i], img.rgb888[i+1], img.rgb888[i+2])
	}
	return 0
}

func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*38 + uint32(g)*75 + uint32(b)*15) >> 7)
}

// RGB565To888 expands a 565 pixel to 8-bit components.
func RGB565To888(p uint16) (r, g, b uint8) {
	r5 := uint32(p>>11) & 0x1f
	g6 := uint32(p>>5) & 0x3f
	b5 := uint32(p) & 0x1f
	return uint8((r5*527 + 23) >> 6), uint8((g6*259 + 33) >> 6), uint8((b5*527 + 23) >> 6)
}

// RGB888To565 packs 8-bit components into a 565 pixel.
func RGB888To565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}
