// Package molfile reads MDL MOL (V2000) connection tables.
package molfile

import (
	"strconv"
	"strings"

	"github.com/h1w0xxx/chiralgrid/internal/molecule"
)

const (
	versionTag    = "V2000"
	versionColumn = 34
	headerWidth   = versionColumn + len(versionTag)
	atomLineWidth = 39
	bondLineWidth = 12
	mapNumWidth   = 63
	propertyEnd   = "M  END"
	aliasPrefix   = "A  "
)

// ParseAndAnnotate parses text and runs the valence annotation pass on the
// result.
func ParseAndAnnotate(text string) (*molecule.Molecule, error) {
	mol, err := Parse(text)
	if err != nil {
		return nil, err
	}
	molecule.Annotate(mol)
	return mol, nil
}

// Parse reads the first V2000 structure in text. Any structural problem
// fails the whole parse with a *FormatError; no partial molecule is returned.
func Parse(text string) (*molecule.Molecule, error) {
	lines := splitLines(text)

	start := -1
	for i, line := range lines {
		if len(line) >= headerWidth && line[versionColumn:headerWidth] == versionTag {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, formatErr(0, "", "%s tag not found at column %d", versionTag, versionColumn)
	}

	header := lines[start]
	numAtoms, err := intField(header, start, "atom count", 0, 3)
	if err != nil {
		return nil, err
	}
	numBonds, err := intField(header, start, "bond count", 3, 6)
	if err != nil {
		return nil, err
	}
	if numAtoms < 0 || numBonds < 0 {
		return nil, formatErr(start+1, "counts", "negative count")
	}

	atoms := make([]molecule.Atom, numAtoms)
	for i := range atoms {
		n := start + 1 + i
		if n >= len(lines) {
			return nil, formatErr(n+1, "", "missing atom line %d of %d", i+1, numAtoms)
		}
		if err := parseAtom(lines[n], n, &atoms[i]); err != nil {
			return nil, err
		}
	}

	bonds := make([]molecule.Bond, numBonds)
	for i := range bonds {
		n := start + 1 + numAtoms + i
		if n >= len(lines) {
			return nil, formatErr(n+1, "", "missing bond line %d of %d", i+1, numBonds)
		}
		if err := parseBond(lines[n], n, numAtoms, &bonds[i]); err != nil {
			return nil, err
		}
	}

	p := &propertyBlock{lines: lines, atoms: atoms, bonds: bonds}
	if err := p.parse(start + 1 + numAtoms + numBonds); err != nil {
		return nil, err
	}

	return molecule.New(moleculeID(lines[0]), atoms, bonds, text), nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func moleculeID(line string) int {
	if line == "" {
		return 0
	}
	for _, r := range line {
		if r < '0' || r > '9' {
			return 0
		}
	}
	id, err := strconv.Atoi(line)
	if err != nil {
		return 0
	}
	return id
}

func parseAtom(line string, n int, atom *molecule.Atom) error {
	if len(line) < atomLineWidth {
		return formatErr(n+1, "atom", "line has %d columns, need %d", len(line), atomLineWidth)
	}

	var err error
	if atom.X, err = floatField(line, n, "x", 0, 10); err != nil {
		return err
	}
	if atom.Y, err = floatField(line, n, "y", 10, 20); err != nil {
		return err
	}
	if atom.Z, err = floatField(line, n, "z", 20, 30); err != nil {
		return err
	}

	atom.Element = strings.TrimSpace(line[31:34])
	if atom.Element == "" {
		return formatErr(n+1, "element", "empty element symbol")
	}

	code, err := intField(line, n, "charge", 36, 39)
	if err != nil {
		return err
	}
	atom.Charge, atom.Unpaired = chargeFromCode(code)

	if len(line) >= mapNumWidth {
		if atom.MapNum, err = intField(line, n, "map number", 60, 63); err != nil {
			return err
		}
	}
	return nil
}

// chargeFromCode decodes the atom-block charge column. Code 4 is a doublet
// radical.
func chargeFromCode(code int) (charge, unpaired int) {
	switch {
	case code >= 1 && code <= 3:
		return 4 - code, 0
	case code == 4:
		return 0, 2
	case code >= 5 && code <= 7:
		return 4 - code, 0
	}
	return 0, 0
}

func parseBond(line string, n, numAtoms int, bond *molecule.Bond) error {
	if len(line) < bondLineWidth {
		return formatErr(n+1, "bond", "line has %d columns, need %d", len(line), bondLineWidth)
	}

	from, err := intField(line, n, "from", 0, 3)
	if err != nil {
		return err
	}
	to, err := intField(line, n, "to", 3, 6)
	if err != nil {
		return err
	}
	order, err := intField(line, n, "order", 6, 9)
	if err != nil {
		return err
	}
	stereo, err := intField(line, n, "stereo", 9, 12)
	if err != nil {
		return err
	}

	if from == to {
		return formatErr(n+1, "bond", "atom %d bonded to itself", from)
	}
	if from < 1 || from > numAtoms || to < 1 || to > numAtoms {
		return formatErr(n+1, "bond", "atoms %d-%d outside [1, %d]", from, to, numAtoms)
	}
	if order < 1 || order > 3 {
		order = 1
	}

	bond.From = molecule.AtomID(from)
	bond.To = molecule.AtomID(to)
	bond.Order = order
	bond.Stereo = stereoFromCode(stereo)
	return nil
}

func stereoFromCode(code int) molecule.Stereo {
	switch code {
	case 1:
		return molecule.StereoWedgeA
	case 6:
		return molecule.StereoWedgeB
	}
	return molecule.StereoUnspecified
}

// column returns line[lo:hi] clipped to the line length.
func column(line string, lo, hi int) string {
	if lo >= len(line) {
		return ""
	}
	if hi > len(line) {
		hi = len(line)
	}
	return line[lo:hi]
}

// intField parses a right-aligned integer column. A blank column reads as 0.
func intField(line string, n int, name string, lo, hi int) (int, error) {
	s := strings.TrimSpace(column(line, lo, hi))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, formatErr(n+1, name, "not an integer: %q", s)
	}
	return v, nil
}

func floatField(line string, n int, name string, lo, hi int) (float64, error) {
	s := strings.TrimSpace(column(line, lo, hi))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, formatErr(n+1, name, "not a number: %q", s)
	}
	return v, nil
}
