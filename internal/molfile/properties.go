package molfile

import (
	"strconv"
	"strings"

	"github.com/h1w0xxx/chiralgrid/internal/molecule"
)

type recordKind int

const (
	recordUnknown recordKind = iota
	recordCharge
	recordRadical
	recordIsotope
	recordRGroup
	recordExplicitH
	recordAltCharge
	recordBondStereo
)

var recordTags = map[string]recordKind{
	"M  CHG": recordCharge,
	"M  RAD": recordRadical,
	"M  ISO": recordIsotope,
	"M  RGP": recordRGroup,
	"M  HYD": recordExplicitH,
	"M  ZCH": recordAltCharge,
	"M  ZBO": recordBondStereo,
}

const (
	pairStart  = 9
	pairStride = 8
)

// propertyBlock applies "M  " records and atom aliases to atoms and bonds
// parsed from the earlier blocks.
type propertyBlock struct {
	lines []string
	atoms []molecule.Atom
	bonds []molecule.Bond
}

func (p *propertyBlock) parse(from int) error {
	for n := from; n < len(p.lines); n++ {
		line := p.lines[n]
		if strings.HasPrefix(line, propertyEnd) {
			return nil
		}

		if strings.HasPrefix(line, aliasPrefix) {
			consumed, stop, err := p.alias(n)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
			if consumed {
				n++
			}
			continue
		}

		kind := recordUnknown
		if len(line) >= 6 {
			kind = recordTags[line[:6]]
		}
		if kind == recordUnknown {
			continue
		}
		if err := p.record(line, n, kind); err != nil {
			return err
		}
	}
	return nil
}

// alias replaces an atom's element with the text of the following line,
// which is then consumed. A short line or an out-of-range atom leaves the
// following line to be read as a record. stop is true when the alias is
// valid but the following line does not exist.
func (p *propertyBlock) alias(n int) (consumed, stop bool, err error) {
	line := p.lines[n]
	if len(line) < 6 {
		return false, false, nil
	}
	pos, err := intField(line, n, "alias atom", 3, 6)
	if err != nil {
		return false, false, err
	}
	if pos < 1 || pos > len(p.atoms) {
		return false, false, nil
	}
	if n+1 >= len(p.lines) {
		return false, true, nil
	}
	if text := strings.TrimSpace(p.lines[n+1]); text != "" {
		p.atoms[pos-1].Element = text
	}
	return true, false, nil
}

func (p *propertyBlock) record(line string, n int, kind recordKind) error {
	count, err := requiredInt(line, n, "count", 6, 9)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		lo := pairStart + i*pairStride
		pos, err := requiredInt(line, n, "position", lo, lo+4)
		if err != nil {
			return err
		}
		val, err := requiredInt(line, n, "value", lo+4, lo+8)
		if err != nil {
			return err
		}
		if pos < 1 {
			return formatErr(n+1, "position", "position %d < 1", pos)
		}
		if err := p.apply(kind, pos, val, n); err != nil {
			return err
		}
	}
	return nil
}

func (p *propertyBlock) apply(kind recordKind, pos, val, n int) error {
	if kind == recordBondStereo {
		if pos > len(p.bonds) {
			return formatErr(n+1, "position", "bond %d outside [1, %d]", pos, len(p.bonds))
		}
		p.bonds[pos-1].Stereo = stereoFromCode(val)
		return nil
	}

	if pos > len(p.atoms) {
		return formatErr(n+1, "position", "atom %d outside [1, %d]", pos, len(p.atoms))
	}
	atom := &p.atoms[pos-1]
	switch kind {
	case recordCharge, recordAltCharge:
		atom.Charge = val
	case recordRadical:
		atom.Unpaired = val
	case recordIsotope:
		atom.Isotope = val
	case recordRGroup:
		atom.Element = "R" + strconv.Itoa(val)
	case recordExplicitH:
		atom.Explicit = true
	}
	return nil
}

// requiredInt is intField for property records, where every field must be
// present.
func requiredInt(line string, n int, name string, lo, hi int) (int, error) {
	s := strings.TrimSpace(column(line, lo, hi))
	if s == "" {
		return 0, formatErr(n+1, name, "missing value")
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, formatErr(n+1, name, "not an integer: %q", s)
	}
	return v, nil
}
