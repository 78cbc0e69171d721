// Package depict draws a molecule as a PNG over a lettered checkerboard and
// maps atoms to the board cells they land in.
package depict

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/h1w0xxx/chiralgrid/internal/molecule"
)

var ErrNoExtent = errors.New("molecule has no extent")

// Layout fixes the canvas geometry for one molecule.
type Layout struct {
	Width, Height int
	FontSize      float64
	Scale         float64
	Cols, Rows    int

	minX, minY float64
}

// NewLayout fits the molecule into a maxSize square and pads it by one font
// size on every side. A molecule flat along one axis is scaled by the other.
func NewLayout(m *molecule.Molecule, maxSize, cols, rows int) (*Layout, error) {
	if maxSize <= 0 || cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("layout %dx%d in %dpx: invalid geometry", cols, rows, maxSize)
	}
	if m.AtomCount() == 0 {
		return nil, ErrNoExtent
	}
	rx, ry := m.RangeX(), m.RangeY()
	size := float64(maxSize)

	var scale float64
	switch {
	case rx > 0 && ry > 0:
		scale = math.Min(size/rx, size/ry)
	case rx > 0:
		scale = size / rx
	case ry > 0:
		scale = size / ry
	default:
		return nil, ErrNoExtent
	}

	fontSize := m.AverageBondLength() / 1.8 * scale
	if fontSize > size/16 || fontSize == 0 {
		fontSize = size / 16
	}

	return &Layout{
		Width:    int(rx*scale) + 2*int(fontSize),
		Height:   int(ry*scale) + 2*int(fontSize),
		FontSize: fontSize,
		Scale:    scale,
		Cols:     cols,
		Rows:     rows,
		minX:     m.MinX(),
		minY:     m.MinY(),
	}, nil
}

// Project maps molecule coordinates to canvas pixels. The y axis is flipped.
func (l *Layout) Project(x, y float64) (px, py float64) {
	px = l.FontSize + l.Scale*(x-l.minX)
	py = float64(l.Height) - l.FontSize - l.Scale*(y-l.minY)
	return px, py
}

// RegionOf returns the label of the cell containing molecule point (x, y).
// Points past the border are clamped to the outer cells.
func (l *Layout) RegionOf(x, y float64) string {
	px, py := l.Project(x, y)
	cellW := float64(l.Width) / float64(l.Cols)
	cellH := float64(l.Height) / float64(l.Rows)

	col := clamp(int(px/cellW), 0, l.Cols-1)
	row := clamp(int(py/cellH), 0, l.Rows-1)
	return RegionLabel(col, row)
}

// Regions lists every cell label of the layout.
func (l *Layout) Regions() []string {
	return Regions(l.Cols, l.Rows)
}

// AnswerRegions returns the sorted, de-duplicated cells holding the given
// atoms. Unknown ids are skipped.
func AnswerRegions(m *molecule.Molecule, l *Layout, ids []molecule.AtomID) []string {
	var out []string
	for _, id := range ids {
		a, err := m.Atom(id)
		if err != nil {
			continue
		}
		out = append(out, l.RegionOf(a.X, a.Y))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// RegionLabel names a cell: column letter then 1-based row, e.g. "B3".
func RegionLabel(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row+1)
}

// Regions lists cell labels column by column.
func Regions(cols, rows int) []string {
	out := make([]string, 0, cols*rows)
	for i := 0; i < cols; i++ {
		for j := 0; j < rows; j++ {
			out = append(out, RegionLabel(i, j))
		}
	}
	return out
}

// AutoGrid returns the smallest near-square grid holding n items.
func AutoGrid(n int) (cols, rows int) {
	if n < 1 {
		return 1, 1
	}
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = int(math.Ceil(float64(n) / float64(cols)))
	return cols, rows
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
