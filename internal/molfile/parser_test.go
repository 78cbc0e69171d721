package molfile

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h1w0xxx/chiralgrid/internal/molecule"
)

type testAtom struct {
	x, y   float64
	el     string
	charge int
}

type testBond struct {
	from, to, order, stereo int
}

func atomLine(a testAtom) string {
	return fmt.Sprintf("%10.4f%10.4f%10.4f %-3s 0%3d  0  0  0  0  0  0  0  0  0  0", a.x, a.y, 0.0, a.el, a.charge)
}

func bondLine(b testBond) string {
	return fmt.Sprintf("%3d%3d%3d%3d  0  0  0", b.from, b.to, b.order, b.stereo)
}

// molText assembles a V2000 block; extra lines go between the bond block and M  END.
func molText(name string, atoms []testAtom, bonds []testBond, extra ...string) string {
	lines := []string{
		name,
		"  -OEChem-01012500002D",
		"",
		fmt.Sprintf("%3d%3d  0  0  0  0  0  0  0  0999 V2000", len(atoms), len(bonds)),
	}
	for _, a := range atoms {
		lines = append(lines, atomLine(a))
	}
	for _, b := range bonds {
		lines = append(lines, bondLine(b))
	}
	lines = append(lines, extra...)
	lines = append(lines, "M  END")
	return strings.Join(lines, "\n") + "\n"
}

var ethanolAtoms = []testAtom{
	{x: 2.5369, y: -0.155, el: "O"},
	{x: 3.4030, y: 0.345, el: "C"},
	{x: 4.2690, y: -0.155, el: "C"},
}

var ethanolBonds = []testBond{
	{from: 1, to: 2, order: 1},
	{from: 2, to: 3, order: 1},
}

func TestParseEthanol(t *testing.T) {
	text := molText("702", ethanolAtoms, ethanolBonds)

	mol, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, 702, mol.ID)
	require.Equal(t, 3, mol.AtomCount())
	require.Equal(t, 2, mol.BondCount())
	assert.Equal(t, "O", mol.Atoms[0].Element)
	assert.InDelta(t, 3.4030, mol.Atoms[1].X, 1e-9)
	assert.InDelta(t, 0.345, mol.Atoms[1].Y, 1e-9)
	assert.Equal(t, molecule.AtomID(2), mol.Bonds[1].From)
	assert.Equal(t, molecule.AtomID(3), mol.Bonds[1].To)
	assert.Equal(t, text, mol.Source())
	assert.False(t, mol.Annotated())
	assert.Equal(t, []molecule.BondID{1, 2}, mol.IncidentBonds(2))
}

func TestParseAndAnnotate(t *testing.T) {
	mol, err := ParseAndAnnotate(molText("ethanol", ethanolAtoms, ethanolBonds))
	require.NoError(t, err)

	assert.Equal(t, 0, mol.ID, "non-numeric name gives id 0")
	assert.True(t, mol.Annotated())
	assert.Equal(t, 1, mol.Atoms[0].HCount)
	assert.Equal(t, 2, mol.Atoms[1].HCount)
	assert.Equal(t, 3, mol.Atoms[2].HCount)
	assert.Greater(t, mol.AverageBondLength(), 0.0)
}

func TestParseCRLF(t *testing.T) {
	text := strings.ReplaceAll(molText("1", ethanolAtoms, ethanolBonds), "\n", "\r\n")
	mol, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, 3, mol.AtomCount())
}

func TestChargeCodes(t *testing.T) {
	testCases := []struct {
		code         int
		wantCharge   int
		wantUnpaired int
	}{
		{code: 0, wantCharge: 0},
		{code: 1, wantCharge: 3},
		{code: 2, wantCharge: 2},
		{code: 3, wantCharge: 1},
		{code: 4, wantCharge: 0, wantUnpaired: 2},
		{code: 5, wantCharge: -1},
		{code: 6, wantCharge: -2},
		{code: 7, wantCharge: -3},
		{code: 8, wantCharge: 0},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("code %d", tc.code), func(t *testing.T) {
			atoms := []testAtom{{el: "N", charge: tc.code}}
			mol, err := Parse(molText("", atoms, nil))
			require.NoError(t, err)
			assert.Equal(t, tc.wantCharge, mol.Atoms[0].Charge)
			assert.Equal(t, tc.wantUnpaired, mol.Atoms[0].Unpaired)
		})
	}
}

func TestParseMapNumber(t *testing.T) {
	line := atomLine(testAtom{el: "C"})
	line = line[:60] + " 42" + line[63:]
	text := strings.Join([]string{
		"", "", "",
		"  1  0  0  0  0  0  0  0  0  0999 V2000",
		line,
		"M  END",
	}, "\n")

	mol, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, 42, mol.Atoms[0].MapNum)

	short := strings.Replace(text, line, line[:39], 1)
	mol, err = Parse(short)
	require.NoError(t, err)
	assert.Equal(t, 0, mol.Atoms[0].MapNum)
}

func TestParseBondOrderAndStereo(t *testing.T) {
	atoms := []testAtom{{el: "C"}, {el: "C", x: 1}, {el: "C", x: 2}, {el: "O", x: 3}, {el: "N", x: 4}}
	bonds := []testBond{
		{from: 1, to: 2, order: 0, stereo: 1},
		{from: 2, to: 3, order: 4, stereo: 6},
		{from: 3, to: 4, order: 2, stereo: 4},
		{from: 4, to: 5, order: 3},
	}

	mol, err := Parse(molText("", atoms, bonds))
	require.NoError(t, err)

	assert.Equal(t, 1, mol.Bonds[0].Order)
	assert.Equal(t, molecule.StereoWedgeA, mol.Bonds[0].Stereo)
	assert.Equal(t, 1, mol.Bonds[1].Order)
	assert.Equal(t, molecule.StereoWedgeB, mol.Bonds[1].Stereo)
	assert.Equal(t, 2, mol.Bonds[2].Order)
	assert.Equal(t, molecule.StereoUnspecified, mol.Bonds[2].Stereo)
	assert.Equal(t, 3, mol.Bonds[3].Order)
}

func TestParsePropertyBlock(t *testing.T) {
	atoms := []testAtom{{el: "C"}, {el: "N", x: 1}, {el: "O", x: 2}, {el: "C", x: 3}}
	bonds := []testBond{{from: 1, to: 2, order: 1}, {from: 2, to: 3, order: 1}, {from: 3, to: 4, order: 1}}

	mol, err := Parse(molText("", atoms, bonds,
		"M  CHG  2   2   1   3  -1",
		"M  RAD  1   1   2",
		"M  ISO  1   4  13",
		"M  HYD  1   4   1",
		"M  ZBO  1   2   1",
		"M  STY  1   1 SUP",
		"A    1",
		"CH3",
	))
	require.NoError(t, err)

	assert.Equal(t, "CH3", mol.Atoms[0].Element)
	assert.Equal(t, 2, mol.Atoms[0].Unpaired)
	assert.Equal(t, 1, mol.Atoms[1].Charge)
	assert.Equal(t, -1, mol.Atoms[2].Charge)
	assert.Equal(t, 13, mol.Atoms[3].Isotope)
	assert.True(t, mol.Atoms[3].Explicit)
	assert.Equal(t, molecule.StereoWedgeA, mol.Bonds[1].Stereo)
}

func TestParseRGroupAndAltCharge(t *testing.T) {
	atoms := []testAtom{{el: "C"}, {el: "C", x: 1}}
	mol, err := Parse(molText("", atoms, []testBond{{from: 1, to: 2, order: 1}},
		"M  RGP  1   2   3",
		"M  ZCH  1   1  -2",
	))
	require.NoError(t, err)
	assert.Equal(t, "R3", mol.Atoms[1].Element)
	assert.Equal(t, -2, mol.Atoms[0].Charge)
}

func TestParseAliasAtEndOfText(t *testing.T) {
	text := strings.Join([]string{
		"", "", "",
		"  1  0  0  0  0  0  0  0  0  0999 V2000",
		atomLine(testAtom{el: "C"}),
		"A    1",
	}, "\n")

	mol, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "C", mol.Atoms[0].Element)
}

func TestParseRejectedAliasKeepsNextLine(t *testing.T) {
	atoms := []testAtom{{el: "C"}, {el: "C", x: 1}}
	bonds := []testBond{{from: 1, to: 2, order: 1}}

	testCases := []struct {
		name  string
		alias string
	}{
		{name: "atom out of range", alias: "A    9"},
		{name: "atom zero", alias: "A    0"},
		{name: "short line", alias: "A  "},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mol, err := Parse(molText("", atoms, bonds, tc.alias, "M  CHG  1   2   1"))
			require.NoError(t, err)
			assert.Equal(t, "C", mol.Atoms[0].Element)
			assert.Equal(t, "C", mol.Atoms[1].Element)
			assert.Equal(t, 1, mol.Atoms[1].Charge)
		})
	}
}

func TestParseFormatErrors(t *testing.T) {
	atoms := []testAtom{{el: "C"}, {el: "C", x: 1}}

	testCases := []struct {
		name      string
		text      string
		wantLine  int
		wantField string
	}{
		{
			name: "missing version tag",
			text: strings.Replace(molText("", atoms, nil), "V2000", "V3000", 1),
		},
		{
			name: "version tag at wrong column",
			text: strings.Replace(molText("", atoms, nil), "999 V2000", "999V2000 ", 1),
		},
		{
			name:      "short atom line",
			text:      strings.Replace(molText("", atoms, nil), atomLine(atoms[1]), atomLine(atoms[1])[:30], 1),
			wantLine:  6,
			wantField: "atom",
		},
		{
			name:      "bond to itself",
			text:      molText("", atoms, []testBond{{from: 2, to: 2, order: 1}}),
			wantLine:  7,
			wantField: "bond",
		},
		{
			name:      "bond atom out of range",
			text:      molText("", atoms, []testBond{{from: 1, to: 3, order: 1}}),
			wantLine:  7,
			wantField: "bond",
		},
		{
			name:      "bond atom zero",
			text:      molText("", atoms, []testBond{{from: 0, to: 1, order: 1}}),
			wantLine:  7,
			wantField: "bond",
		},
		{
			name:      "short bond line",
			text:      strings.Replace(molText("", atoms, []testBond{{from: 1, to: 2, order: 1}}), "  1  2  1  0  0  0  0", "  1  2  1", 1),
			wantLine:  7,
			wantField: "bond",
		},
		{
			name:      "non-numeric coordinate",
			text:      strings.Replace(molText("", atoms, nil), "    1.0000", "    1.0x00", 1),
			wantLine:  6,
			wantField: "x",
		},
		{
			name:      "non-numeric property value",
			text:      molText("", atoms, nil, "M  CHG  1   1  +x"),
			wantLine:  7,
			wantField: "value",
		},
		{
			name:      "property position below one",
			text:      molText("", atoms, nil, "M  CHG  1   0   1"),
			wantLine:  7,
			wantField: "position",
		},
		{
			name:      "property position beyond atoms",
			text:      molText("", atoms, nil, "M  ISO  1   3  13"),
			wantLine:  7,
			wantField: "position",
		},
		{
			name:      "property count larger than pairs",
			text:      molText("", atoms, nil, "M  CHG  2   1   1"),
			wantLine:  7,
			wantField: "position",
		},
		{
			name:     "missing atom lines",
			text:     "\n\n\n  3  0  0  0  0  0  0  0  0  0999 V2000\n" + atomLine(atoms[0]),
			wantLine: 6,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mol, err := Parse(tc.text)
			require.Error(t, err)
			assert.Nil(t, mol)
			assert.True(t, errors.Is(err, ErrFormat))

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tc.wantLine, fe.Line)
			assert.Equal(t, tc.wantField, fe.Field)
		})
	}
}

func TestParseUnknownRecordsSkipped(t *testing.T) {
	mol, err := Parse(molText("", ethanolAtoms, ethanolBonds,
		"M  SAL   1  2   1   2",
		"S  SKP  1",
		"garbage",
	))
	require.NoError(t, err)
	assert.Equal(t, 3, mol.AtomCount())
}

func TestFormatErrorMessage(t *testing.T) {
	err := formatErr(7, "bond", "atom %d bonded to itself", 2)
	assert.Equal(t, "invalid MDL MOL: line 7: bond: atom 2 bonded to itself", err.Error())
	assert.Equal(t, "invalid MDL MOL: V2000 missing", formatErr(0, "", "V2000 missing").Error())
}
