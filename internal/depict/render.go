package depict

import (
	"bytes"
	"fmt"
	"image/png"
	"math"
	"strconv"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/h1w0xxx/chiralgrid/internal/molecule"
)

var regularFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

func fontFace(size float64) (font.Face, error) {
	f, err := regularFont()
	if err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// labelBox is the clearance around an atom label that bonds stop at.
type labelBox struct {
	left, right, top, bottom float64
}

type point struct{ x, y float64 }

// Render draws m on l's checkerboard and returns the PNG encoding. Atoms in
// marked get an asterisk.
func Render(m *molecule.Molecule, l *Layout, marked []molecule.AtomID) ([]byte, error) {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	if err := drawGrid(dc, l); err != nil {
		return nil, err
	}
	if err := drawMolecule(dc, m, l, marked); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawGrid(dc *gg.Context, l *Layout) error {
	unitX := float64(l.Width) / float64(l.Cols)
	unitY := float64(l.Height) / float64(l.Rows)
	for i := 0; i < l.Cols; i++ {
		for j := 0; j < l.Rows; j++ {
			if (i+j)%2 == 0 {
				dc.SetHexColor("#FFFFFF")
			} else {
				dc.SetHexColor("#E0E0E0")
			}
			dc.DrawRectangle(float64(i)*unitX, float64(j)*unitY, unitX, unitY)
			dc.Fill()
		}
	}

	labelSize := math.Min(math.Min(unitX, unitY)/2, l.FontSize)
	face, err := fontFace(labelSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetRGB(0.627, 0.627, 0.627)
	for i := 0; i < l.Cols; i++ {
		for j := 0; j < l.Rows; j++ {
			x := float64(i)*unitX + labelSize*0.25
			y := float64(j+1)*unitY - dc.FontHeight()/2
			dc.DrawString(RegionLabel(i, j), x, y)
		}
	}
	return nil
}

func drawMolecule(dc *gg.Context, m *molecule.Molecule, l *Layout, marked []molecule.AtomID) error {
	face, err := fontFace(l.FontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetLineWidth(l.FontSize / 12)
	dc.SetRGB(0, 0, 0)

	star := make(map[molecule.AtomID]bool, len(marked))
	for _, id := range marked {
		star[id] = true
	}

	boxes := make([]labelBox, m.AtomCount()+1)
	for i := range m.Atoms {
		id := molecule.AtomID(i + 1)
		boxes[id] = drawAtom(dc, l, &m.Atoms[i], star[id])
	}

	for i := range m.Bonds {
		b := &m.Bonds[i]
		from, to := m.MustAtom(b.From), m.MustAtom(b.To)
		x1, y1 := l.Project(from.X, from.Y)
		x2, y2 := l.Project(to.X, to.Y)
		p1 := confine(x1, y1, x2, y2, boxes[b.From])
		p2 := confine(x2, y2, x1, y1, boxes[b.To])

		rad := math.Atan2(y2-y1, x2-x1)
		delta := l.FontSize / 6
		dx, dy := math.Sin(rad)*delta, -math.Cos(rad)*delta
		switch b.Order {
		case 2:
			dc.DrawLine(p1.x+dx/2, p1.y+dy/2, p2.x+dx/2, p2.y+dy/2)
			dc.DrawLine(p1.x-dx/2, p1.y-dy/2, p2.x-dx/2, p2.y-dy/2)
		case 3:
			dc.DrawLine(p1.x, p1.y, p2.x, p2.y)
			dc.DrawLine(p1.x+dx, p1.y+dy, p2.x+dx, p2.y+dy)
			dc.DrawLine(p1.x-dx, p1.y-dy, p2.x-dx, p2.y-dy)
		default:
			dc.DrawLine(p1.x, p1.y, p2.x, p2.y)
		}
		dc.Stroke()
	}
	return nil
}

// drawAtom writes the atom label, if any, and returns its clearance box.
// Skeletal carbons only get the asterisk.
func drawAtom(dc *gg.Context, l *Layout, a *molecule.Atom, marked bool) labelBox {
	x, y := l.Project(a.X, a.Y)
	text := atomLabel(a)
	if text == "" {
		if marked {
			w, _ := dc.MeasureString("*")
			r := w/4 + l.FontSize/4
			dc.DrawStringAnchored("*", x+r, y-r, 0.5, 0.5)
		}
		return labelBox{}
	}

	w, _ := dc.MeasureString(text)
	box := labelBox{left: w / 2, right: w / 2, top: l.FontSize / 2, bottom: l.FontSize / 2}
	dc.DrawStringAnchored(text, x, y, 0.5, 0.5)
	if marked {
		w2, _ := dc.MeasureString("*")
		dc.DrawString("*", x-box.left-w2/2, y)
		box.left += w2
	}
	return box
}

// atomLabel composes element, hydrogens and charge. Hydrogens go on the
// side the placement hint names.
func atomLabel(a *molecule.Atom) string {
	if a.Element == "C" && !a.Explicit && a.Charge == 0 && a.Isotope == 0 {
		return ""
	}

	el := a.Element
	if a.Isotope != 0 {
		el = strconv.Itoa(a.Isotope) + el
	}
	var hs string
	switch {
	case a.HCount == 1:
		hs = "H"
	case a.HCount > 1:
		hs = "H" + strconv.Itoa(a.HCount)
	}

	text := el + hs
	if a.Placement == molecule.PlaceLeft && hs != "" {
		text = hs + el
	}
	return text + chargeText(a.Charge)
}

func chargeText(charge int) string {
	switch {
	case charge == 1:
		return "+"
	case charge == -1:
		return "-"
	case charge > 1:
		return strconv.Itoa(charge) + "+"
	case charge < -1:
		return strconv.Itoa(-charge) + "-"
	}
	return ""
}

// confine moves the segment start (x, y) toward (x2, y2) until it leaves
// the label box.
func confine(x, y, x2, y2 float64, box labelBox) point {
	w := box.right
	if x2 <= x {
		w = box.left
	}
	h := box.top
	if y2 < y {
		h = box.bottom
	}
	k := math.Atan2(h, w)
	sigx := math.Copysign(1, x2-x)
	sigy := math.Copysign(1, y2-y)
	absRad := math.Atan2(math.Abs(y2-y), math.Abs(x2-x))
	if absRad > k {
		return point{x: x + sigx*h/math.Tan(absRad), y: y + sigy*h}
	}
	return point{x: x + sigx*w, y: y + sigy*w*math.Tan(absRad)}
}
