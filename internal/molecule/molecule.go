// Package molecule holds the 2D connection-table model shared by the parser,
// the valence annotator and the stereocenter analyzer.
//
// A Molecule goes through a fixed lifecycle:
//  1. built by the molfile parser,
//  2. annotated exactly once by Annotate,
//  3. queried read-only afterwards.
//
// Atoms and bonds are addressed with 1-based AtomID / BondID values; 0 is never valid.
package molecule

import (
	"fmt"
	"math"
)

// AtomID is the 1-based position of an atom in its molecule.
type AtomID int

// BondID is the 1-based position of a bond in its molecule.
type BondID int

// Placement is the free-side hint used when a label must be drawn next to an atom.
type Placement int

const (
	PlaceUnspecified Placement = 0
	PlaceTop         Placement = 1
	PlaceBottom      Placement = 2
	PlaceLeft        Placement = 4
	PlaceRight       Placement = 8
)

func (p Placement) String() string {
	switch p {
	case PlaceTop:
		return "top"
	case PlaceBottom:
		return "bottom"
	case PlaceLeft:
		return "left"
	case PlaceRight:
		return "right"
	}
	return "unspecified"
}

// Stereo is the wedge style of a bond.
type Stereo int

const (
	StereoUnspecified Stereo = 0
	StereoWedgeA      Stereo = 1
	StereoWedgeB      Stereo = 2
)

type Atom struct {
	Element   string
	Charge    int
	Unpaired  int
	Isotope   int
	MapNum    int
	HCount    int
	Explicit  bool
	Placement Placement
	X, Y, Z   float64
}

type Bond struct {
	From, To AtomID
	Order    int
	Stereo   Stereo
}

// Molecule is a parsed connection table.
type Molecule struct {
	ID    int
	Atoms []Atom
	Bonds []Bond

	source string

	adjacency [][]BondID
	annotated bool

	boundsDirty            bool
	minX, minY, maxX, maxY float64
	avgBondLength          float64
}

// New wraps atoms and bonds into a Molecule. source is the raw text the
// structure was read from and is kept verbatim.
func New(id int, atoms []Atom, bonds []Bond, source string) *Molecule {
	m := &Molecule{
		ID:          id,
		Atoms:       atoms,
		Bonds:       bonds,
		source:      source,
		boundsDirty: true,
	}
	m.BuildAdjacency()
	return m
}

// Source returns the text the molecule was parsed from.
func (m *Molecule) Source() string { return m.source }

func (m *Molecule) AtomCount() int { return len(m.Atoms) }

func (m *Molecule) BondCount() int { return len(m.Bonds) }

// Atom returns the atom at id, or ErrNotFound when id is outside [1, AtomCount].
func (m *Molecule) Atom(id AtomID) (*Atom, error) {
	if id < 1 || int(id) > len(m.Atoms) {
		return nil, fmt.Errorf("atom %d of %d: %w", id, len(m.Atoms), ErrNotFound)
	}
	return &m.Atoms[id-1], nil
}

// Bond returns the bond at id, or ErrNotFound when id is outside [1, BondCount].
func (m *Molecule) Bond(id BondID) (*Bond, error) {
	if id < 1 || int(id) > len(m.Bonds) {
		return nil, fmt.Errorf("bond %d of %d: %w", id, len(m.Bonds), ErrNotFound)
	}
	return &m.Bonds[id-1], nil
}

// MustAtom is Atom for ids that come from the molecule itself. It panics on
// an invalid id.
func (m *Molecule) MustAtom(id AtomID) *Atom {
	a, err := m.Atom(id)
	if err != nil {
		panic(err)
	}
	return a
}

// MustBond is Bond for ids that come from the molecule itself.
func (m *Molecule) MustBond(id BondID) *Bond {
	b, err := m.Bond(id)
	if err != nil {
		panic(err)
	}
	return b
}

// Other returns the end of b that is not at.
func (b Bond) Other(at AtomID) AtomID {
	if b.From == at {
		return b.To
	}
	return b.From
}

// BuildAdjacency indexes every bond under both of its atoms. Bonds keep
// their declaration order within each list. New calls it; callers that edit
// bond endpoints afterwards must call it again.
func (m *Molecule) BuildAdjacency() {
	adj := make([][]BondID, len(m.Atoms)+1)
	for i, b := range m.Bonds {
		id := BondID(i + 1)
		adj[b.From] = append(adj[b.From], id)
		adj[b.To] = append(adj[b.To], id)
	}
	m.adjacency = adj
}

// IncidentBonds returns the ids of all bonds touching atom id, in
// declaration order. The returned slice must not be modified.
func (m *Molecule) IncidentBonds(id AtomID) []BondID {
	if id < 1 || int(id) >= len(m.adjacency) {
		return nil
	}
	return m.adjacency[id]
}

// Degree is the number of declared bonds at atom id.
func (m *Molecule) Degree(id AtomID) int {
	return len(m.IncidentBonds(id))
}

// IsTerminalHydrogen reports whether id is a hydrogen with a single bond.
func (m *Molecule) IsTerminalHydrogen(id AtomID) bool {
	a, err := m.Atom(id)
	if err != nil {
		return false
	}
	return a.Element == "H" && m.Degree(id) == 1
}

// Invalidate marks the cached bounding box stale, e.g. after coordinates
// have been moved by a renderer.
func (m *Molecule) Invalidate() {
	m.boundsDirty = true
}

func (m *Molecule) determineBounds() {
	m.boundsDirty = false
	if len(m.Atoms) == 0 {
		m.minX, m.minY, m.maxX, m.maxY = 0, 0, 0, 0
		return
	}
	m.minX, m.maxX = m.Atoms[0].X, m.Atoms[0].X
	m.minY, m.maxY = m.Atoms[0].Y, m.Atoms[0].Y
	for _, a := range m.Atoms[1:] {
		m.minX = math.Min(m.minX, a.X)
		m.maxX = math.Max(m.maxX, a.X)
		m.minY = math.Min(m.minY, a.Y)
		m.maxY = math.Max(m.maxY, a.Y)
	}
}

// Bounds returns the 2D bounding box of all atoms.
func (m *Molecule) Bounds() (minX, minY, maxX, maxY float64) {
	if m.boundsDirty {
		m.determineBounds()
	}
	return m.minX, m.minY, m.maxX, m.maxY
}

func (m *Molecule) MinX() float64 { x, _, _, _ := m.Bounds(); return x }
func (m *Molecule) MinY() float64 { _, y, _, _ := m.Bounds(); return y }
func (m *Molecule) MaxX() float64 { _, _, x, _ := m.Bounds(); return x }
func (m *Molecule) MaxY() float64 { _, _, _, y := m.Bounds(); return y }

func (m *Molecule) RangeX() float64 { return m.MaxX() - m.MinX() }
func (m *Molecule) RangeY() float64 { return m.MaxY() - m.MinY() }

// AverageBondLength is the value computed by Annotate.
func (m *Molecule) AverageBondLength() float64 {
	return m.avgBondLength
}

// BondLength is the 2D distance between the ends of bond id.
func (m *Molecule) BondLength(id BondID) float64 {
	b := m.MustBond(id)
	a1, a2 := m.MustAtom(b.From), m.MustAtom(b.To)
	return math.Hypot(a1.X-a2.X, a1.Y-a2.Y)
}

// AtomIndexNear returns the atom closest to (x, y), or 0 if none lies
// within tolerance.
func (m *Molecule) AtomIndexNear(x, y, tolerance float64) AtomID {
	best := AtomID(0)
	bestDist := math.Inf(1)
	for i, a := range m.Atoms {
		d := (a.X-x)*(a.X-x) + (a.Y-y)*(a.Y-y)
		if d < bestDist {
			best = AtomID(i + 1)
			bestDist = d
		}
	}
	if best == 0 || bestDist >= tolerance*tolerance {
		return 0
	}
	return best
}
