package molecule

import "math"

// colinearTolerance is the angular gap under which two bonds at a carbon
// are drawn as one straight line.
const colinearTolerance = 10.0 / 360.0 * 2 * math.Pi

// Annotate fills implicit hydrogen counts, the explicit-display flag, the
// placement hint and the average bond length. It runs once; later calls are
// no-ops.
func Annotate(m *Molecule) {
	if m.annotated {
		return
	}
	m.annotated = true
	m.BuildAdjacency()

	for i := range m.Atoms {
		id := AtomID(i + 1)
		atom := &m.Atoms[i]
		bonds := m.IncidentBonds(id)

		if atom.HCount == 0 {
			atom.HCount = implicitHydrogens(atom, m.bondOrderSum(bonds))
		}
		if atom.Element == "C" && len(bonds) == 2 && m.colinear(bonds[0], bonds[1]) {
			atom.Explicit = true
		}
		atom.Placement = m.placement(id, bonds)
	}

	total := 0.0
	for i := range m.Bonds {
		total += m.BondLength(BondID(i + 1))
	}
	if len(m.Bonds) > 0 {
		m.avgBondLength = total / float64(len(m.Bonds))
	} else {
		m.avgBondLength = 0
	}
	m.Invalidate()
}

// Annotated reports whether Annotate has run.
func (m *Molecule) Annotated() bool { return m.annotated }

func (m *Molecule) bondOrderSum(bonds []BondID) int {
	sum := 0
	for _, id := range bonds {
		sum += m.MustBond(id).Order
	}
	return sum
}

func implicitHydrogens(a *Atom, bondSum int) int {
	switch a.Element {
	case "C":
		return max(0, 4-a.Unpaired-abs(a.Charge)-bondSum)
	case "O", "S":
		return max(0, 2-a.Unpaired+a.Charge-bondSum)
	case "N", "P":
		return max(0, 3-a.Unpaired+a.Charge-bondSum)
	case "F", "Cl", "Br", "I":
		return max(0, 1-a.Unpaired-abs(a.Charge)-bondSum)
	}
	return a.HCount
}

// bondDirection is the line direction of a bond folded into [0, π).
func (m *Molecule) bondDirection(id BondID) float64 {
	b := m.MustBond(id)
	from, to := m.MustAtom(b.From), m.MustAtom(b.To)
	t := math.Mod(math.Atan2(from.Y-to.Y, from.X-to.X), math.Pi)
	if t < 0 {
		t += math.Pi
	}
	return t
}

func (m *Molecule) colinear(b1, b2 BondID) bool {
	d := math.Abs(m.bondDirection(b1) - m.bondDirection(b2))
	d = math.Min(d, math.Pi-d)
	return d < colinearTolerance
}

func (m *Molecule) placement(id AtomID, bonds []BondID) Placement {
	top, bottom, left, right := 2*math.Pi, 2*math.Pi, 2*math.Pi, 2*math.Pi
	self := m.MustAtom(id)
	for _, bid := range bonds {
		other := m.MustAtom(m.MustBond(bid).Other(id))
		dt := math.Atan2(other.Y-self.Y, other.X-self.X)
		right = math.Min(right, math.Mod(math.Abs(dt), 2*math.Pi))
		left = math.Min(left, math.Mod(math.Min(math.Abs(dt-math.Pi), math.Abs(dt+math.Pi)), 2*math.Pi))
		top = math.Min(top, math.Mod(math.Abs(dt-math.Pi/2), 2*math.Pi))
		bottom = math.Min(bottom, math.Mod(math.Abs(dt+math.Pi/2), 2*math.Pi))
	}
	// top is measured like the others but never wins.
	switch {
	case right > 1.0:
		return PlaceRight
	case left > 1.4:
		return PlaceLeft
	case bottom > 1.0:
		return PlaceBottom
	}
	return PlaceUnspecified
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
