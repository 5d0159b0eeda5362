package integral

import (
	"fmt"

	"github.com/ironsheep/vision-engine/arena"
	"github.com/ironsheep/vision-engine/imaging"
)

// Windowed is an integral table that keeps only a fixed number of rows. Slots
// are recycled oldest-first as Advance computes new rows, so the table must be
// consumed in strictly increasing row order.
//
// Values keep accumulating from row 0 and may wrap the word type; window sums
// stay exact while a single window's true sum fits T.
type Windowed[T Sum] struct {
	W, H    int // full region size
	img     *imaging.Image
	roi     imaging.Rect
	squared bool
	rows    int
	data    []T
	first   int // oldest retained row
	next    int // next row Advance will compute
}

// WindowedScratchSize returns the arena bytes BuildWindowed needs for roi with
// the given number of retained rows.
func WindowedScratchSize[T Sum](roi imaging.Rect, rows int) int {
	return arena.SizeOf[T](min(rows, roi.H) * roi.W)
}

// BuildWindowed allocates a table retaining rows rows and computes the first
// rows rows of roi. Querying a window of height h at any row y needs h+1
// retained rows (h when y is 0). With squared set the table sums squared
// intensities.
func BuildWindowed[T Sum](a *arena.Arena, img *imaging.Image, roi imaging.Rect, rows int, squared bool) (*Windowed[T], error) {
	roi, err := img.CheckROI(roi)
	if err != nil {
		return nil, fmt.Errorf("failed to build windowed integral image: %w", err)
	}
	if rows <= 0 {
		return nil, fmt.Errorf("windowed integral image with %d rows: %w", rows, imaging.ErrInvalidParameter)
	}
	rows = min(rows, roi.H)
	data, err := arena.Push[T](a, rows*roi.W)
	if err != nil {
		return nil, fmt.Errorf("failed to build windowed integral image: %w", err)
	}

	m := &Windowed[T]{W: roi.W, H: roi.H, img: img, roi: roi, squared: squared, rows: rows, data: data}
	for m.next < rows {
		m.compute()
	}
	return m, nil
}

// Window returns the retained row range [first, next).
func (m *Windowed[T]) Window() (first, next int) {
	return m.first, m.next
}

// Advance computes the next row, evicting the oldest one. It returns false once
// every row of the region has been computed.
func (m *Windowed[T]) Advance() bool {
	if m.next >= m.H {
		return false
	}
	m.compute()
	return true
}

// AdvanceTo advances until row y is retained.
func (m *Windowed[T]) AdvanceTo(y int) {
	for m.next <= y && m.Advance() {
	}
}

func (m *Windowed[T]) compute() {
	y := m.next
	row := m.slot(y)
	var prev []T
	if y > 0 {
		prev = m.slot(y - 1)
	}

	var rowSum T
	for x := range row {
		v := T(m.img.Intensity(m.roi.X+x, m.roi.Y+y))
		if m.squared {
			v *= v
		}
		rowSum += v
		if prev != nil {
			// prev may alias row when only one row is retained; each element
			// is read before it is overwritten.
			row[x] = rowSum + prev[x]
		} else {
			row[x] = rowSum
		}
	}

	m.next++
	if m.next-m.first > m.rows {
		m.first++
	}
}

func (m *Windowed[T]) slot(y int) []T {
	s := y % m.rows
	return m.data[s*m.W : (s+1)*m.W]
}

func (m *Windowed[T]) at(x, y int) T {
	if x < 0 || y < 0 {
		return 0
	}
	if y < m.first || y >= m.next {
		panic(fmt.Sprintf("integral: row %d read outside retained window [%d,%d)", y, m.first, m.next))
	}
	return m.slot(y)[x]
}

// Lookup returns the sum over the w x h rectangle at (x, y). Every row from
// y-1 to y+h-1 must be retained; reading outside the window panics.
func (m *Windowed[T]) Lookup(x, y, w, h int) T {
	x1, y1 := x+w-1, y+h-1
	return m.at(x1, y1) + m.at(x-1, y-1) - m.at(x-1, y1) - m.at(x1, y-1)
}
