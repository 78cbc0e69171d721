package chiral

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h1w0xxx/chiralgrid/internal/molecule"
)

// build makes an annotated molecule from element symbols and [from, to, order]
// triples. Atoms are spread on a circle so no two share a position.
func build(elements []string, bonds [][3]int) *molecule.Molecule {
	atoms := make([]molecule.Atom, len(elements))
	for i, el := range elements {
		angle := 2 * math.Pi * float64(i) / float64(len(elements))
		atoms[i] = molecule.Atom{Element: el, X: math.Cos(angle), Y: math.Sin(angle)}
	}
	bs := make([]molecule.Bond, len(bonds))
	for i, b := range bonds {
		bs[i] = molecule.Bond{From: molecule.AtomID(b[0]), To: molecule.AtomID(b[1]), Order: b[2]}
	}
	m := molecule.New(0, atoms, bs, "")
	molecule.Annotate(m)
	return m
}

// ring returns bonds closing atoms first..first+n-1 into a cycle.
func ring(first, n int) [][3]int {
	bonds := make([][3]int, 0, n)
	for i := 0; i < n; i++ {
		from := first + i
		to := first + (i+1)%n
		bonds = append(bonds, [3]int{from, to, 1})
	}
	return bonds
}

func carbons(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "C"
	}
	return out
}

func TestStereocenterCases(t *testing.T) {
	testCases := []struct {
		name     string
		elements []string
		bonds    [][3]int
		want     []molecule.AtomID
	}{
		{
			name:     "chlorine, methyl, ethyl and hydrogen",
			elements: []string{"C", "Cl", "C", "C", "C"},
			bonds:    [][3]int{{1, 2, 1}, {1, 3, 1}, {1, 4, 1}, {4, 5, 1}},
			want:     []molecule.AtomID{1},
		},
		{
			name:     "two methyls, hydroxyl and hydrogen",
			elements: []string{"C", "C", "C", "O"},
			bonds:    [][3]int{{1, 2, 1}, {1, 3, 1}, {1, 4, 1}},
			want:     nil,
		},
		{
			name:     "butan-2-ol",
			elements: []string{"C", "C", "C", "C", "O"},
			bonds:    [][3]int{{1, 2, 1}, {2, 3, 1}, {3, 4, 1}, {2, 5, 1}},
			want:     []molecule.AtomID{2},
		},
		{
			name:     "four different halogens",
			elements: []string{"C", "F", "Cl", "Br", "I"},
			bonds:    [][3]int{{1, 2, 1}, {1, 3, 1}, {1, 4, 1}, {1, 5, 1}},
			want:     []molecule.AtomID{1},
		},
		{
			name:     "explicit hydrogen is collapsed",
			elements: []string{"C", "F", "Cl", "Br", "H"},
			bonds:    [][3]int{{1, 2, 1}, {1, 3, 1}, {1, 4, 1}, {1, 5, 1}},
			want:     []molecule.AtomID{1},
		},
		{
			name:     "drawn methyl hydrogens are not implicit ones",
			elements: []string{"C", "Cl", "C", "C", "H", "H", "H"},
			// C3 is CH3 by valence, C4 is CH3 drawn with three H atoms.
			bonds: [][3]int{{1, 2, 1}, {1, 3, 1}, {1, 4, 1}, {4, 5, 1}, {4, 6, 1}, {4, 7, 1}},
			want:  []molecule.AtomID{1},
		},
		{
			name:     "double bond disqualifies",
			elements: []string{"C", "O", "Cl", "Br"},
			bonds:    [][3]int{{1, 2, 2}, {1, 3, 1}, {1, 4, 1}},
			want:     nil,
		},
		{
			name:     "two hydrogens disqualify",
			elements: []string{"C", "Cl", "Br"},
			bonds:    [][3]int{{1, 2, 1}, {1, 3, 1}},
			want:     nil,
		},
		{
			name:     "nitrogen is never a candidate",
			elements: []string{"N", "C", "C", "C", "O"},
			bonds:    [][3]int{{1, 2, 1}, {1, 3, 1}, {3, 4, 1}, {1, 5, 1}},
			want:     nil,
		},
		{
			name:     "branches differing only deep down",
			elements: []string{"C", "Cl", "C", "C", "C", "C", "C", "C", "O"},
			// 1-(CH2CH2CH3), 1-(CH2CH2CH2OH)
			bonds: [][3]int{{1, 2, 1}, {1, 3, 1}, {3, 4, 1}, {4, 5, 1}, {1, 6, 1}, {6, 7, 1}, {7, 8, 1}, {8, 9, 1}},
			want:  []molecule.AtomID{1},
		},
		{
			name:     "methylcyclohexane is symmetric",
			elements: carbons(7),
			bonds:    append(ring(1, 6), [3]int{1, 7, 1}),
			want:     nil,
		},
		{
			name:     "2-methylcyclohexan-1-ol",
			elements: append(carbons(6), "O", "C"),
			bonds:    append(ring(1, 6), [3]int{1, 7, 1}, [3]int{2, 8, 1}),
			want:     []molecule.AtomID{1, 2},
		},
	}

	a := NewAnalyzer()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := build(tc.elements, tc.bonds)
			assert.Equal(t, tc.want, a.Stereocenters(m))
		})
	}
}

func TestIsStereocenterDeterministic(t *testing.T) {
	m := build([]string{"C", "C", "C", "C", "O"}, [][3]int{{1, 2, 1}, {2, 3, 1}, {3, 4, 1}, {2, 5, 1}})
	a := NewAnalyzer()

	for i := 0; i < 20; i++ {
		got, err := a.IsStereocenter(m, 2)
		require.NoError(t, err)
		assert.True(t, got)

		got, err = a.IsStereocenter(m, 3)
		require.NoError(t, err)
		assert.False(t, got)
	}
}

func TestIsStereocenterOutOfRange(t *testing.T) {
	m := build([]string{"C"}, nil)
	a := NewAnalyzer()

	_, err := a.IsStereocenter(m, 0)
	assert.ErrorIs(t, err, molecule.ErrNotFound)
	_, err = a.IsStereocenter(m, 2)
	assert.ErrorIs(t, err, molecule.ErrNotFound)
}

func TestLargeRingsTerminate(t *testing.T) {
	const n = 1500

	t.Run("symmetric ring", func(t *testing.T) {
		bonds := append(ring(1, n), [3]int{1, n + 1, 1})
		m := build(carbons(n+1), bonds)
		assert.Empty(t, NewAnalyzer().Stereocenters(m))
	})

	t.Run("asymmetric ring", func(t *testing.T) {
		elements := append(carbons(n+1), "O")
		bonds := append(ring(1, n), [3]int{1, n + 1, 1}, [3]int{5, n + 2, 1})
		m := build(elements, bonds)
		assert.Equal(t, []molecule.AtomID{1, 5}, NewAnalyzer().Stereocenters(m))
	})
}

func TestFusedRingsTerminate(t *testing.T) {
	// A ladder of fused five-membered rings, methylated at one end.
	const rings = 300
	top := func(i int) int { return 1 + i }
	bottom := func(i int) int { return rings + 2 + i }
	mid := func(i int) int { return 2*rings + 3 + i }

	elements := carbons(3*rings + 3)
	var bonds [][3]int
	for i := 0; i <= rings; i++ {
		bonds = append(bonds, [3]int{top(i), bottom(i), 1})
		if i < rings {
			bonds = append(bonds,
				[3]int{top(i), mid(i), 1},
				[3]int{mid(i), top(i + 1), 1},
				[3]int{bottom(i), bottom(i + 1), 1},
			)
		}
	}
	bonds = append(bonds, [3]int{top(0), len(elements), 1})
	m := build(elements, bonds)

	a := NewAnalyzer()
	start := time.Now()
	serial := a.Stereocenters(m)
	parallel, err := a.StereocentersParallel(context.Background(), m, 4)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, serial, parallel)
}

func TestSharedWalkerMatchesFreshWalker(t *testing.T) {
	// Fused rings with a methyl and a hydroxyl, so answers vary by budget.
	const rings = 6
	n := 3*rings + 3
	elements := append(carbons(n+1), "O")
	var bonds [][3]int
	for i := 0; i <= rings; i++ {
		top, bottom := 1+i, rings+2+i
		bonds = append(bonds, [3]int{top, bottom, 1})
		if i < rings {
			mid := 2*rings + 3 + i
			bonds = append(bonds, [3]int{top, mid, 1}, [3]int{mid, top + 1, 1}, [3]int{bottom, bottom + 1, 1})
		}
	}
	bonds = append(bonds, [3]int{1, n + 1, 1}, [3]int{rings + 4, n + 2, 1})
	m := build(elements, bonds)

	a := NewAnalyzer()
	shared := newWalker(m)
	for i := 1; i <= m.AtomCount(); i++ {
		id := molecule.AtomID(i)
		assert.Equal(t, a.isStereocenter(newWalker(m), id), a.isStereocenter(shared, id), "atom %d", id)
	}

	// A warmed walker answers every budget the way a cold one does.
	keys := make([]walkKey, 0, len(shared.seen))
	for key := range shared.seen {
		keys = append(keys, key)
	}
	for _, key := range keys {
		for budget := -1; budget <= shared.budget; budget++ {
			want := newWalker(m).equivalent(key.at1, key.at2, key.b1, key.b2, budget)
			assert.Equal(t, want, shared.equivalent(key.at1, key.at2, key.b1, key.b2, budget), "%+v budget %d", key, budget)
		}
	}
}

func TestStereocentersParallelMatchesSerial(t *testing.T) {
	m := build(append(carbons(6), "O", "C"), append(ring(1, 6), [3]int{1, 7, 1}, [3]int{2, 8, 1}))
	a := NewAnalyzer()

	got, err := a.StereocentersParallel(context.Background(), m, 3)
	require.NoError(t, err)
	assert.Equal(t, a.Stereocenters(m), got)

	got, err = a.StereocentersParallel(context.Background(), m, 0)
	require.NoError(t, err)
	assert.Equal(t, []molecule.AtomID{1, 2}, got)
}

func TestStereocentersParallelCancelled(t *testing.T) {
	m := build(carbons(10), ring(1, 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAnalyzer().StereocentersParallel(ctx, m, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTracerReceivesEvents(t *testing.T) {
	var events []TraceEvent
	a := NewAnalyzer(WithTracer(func(ev TraceEvent) {
		events = append(events, ev)
	}))
	m := build([]string{"C", "C", "C", "O"}, [][3]int{{1, 2, 1}, {1, 3, 1}, {1, 4, 1}})

	a.Stereocenters(m)

	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		if ev.Atom == 1 {
			kinds = append(kinds, ev.Kind)
		}
	}
	assert.Equal(t, []EventKind{EventCandidate, EventEquivalent}, kinds)
	assert.Equal(t, [2]molecule.BondID{1, 2}, events[1].Branches)
}

func TestPanickingTracerIsIgnored(t *testing.T) {
	a := NewAnalyzer(WithTracer(func(TraceEvent) { panic("boom") }))
	m := build([]string{"C", "F", "Cl", "Br", "I"}, [][3]int{{1, 2, 1}, {1, 3, 1}, {1, 4, 1}, {1, 5, 1}})

	assert.NotPanics(t, func() {
		assert.Equal(t, []molecule.AtomID{1}, a.Stereocenters(m))
	})
}

func TestSlogTracer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewAnalyzer(WithTracer(SlogTracer(logger)))

	a.Stereocenters(build([]string{"C", "C", "C", "O"}, [][3]int{{1, 2, 1}, {1, 3, 1}, {1, 4, 1}}))

	out := buf.String()
	assert.Contains(t, out, "event=equivalent")
	assert.Contains(t, out, "branch_a=1")
	assert.True(t, strings.Contains(out, "event=rejected"), fmt.Sprintf("log: %s", out))
}

func TestClassifyIsSideAgnostic(t *testing.T) {
	// C1 bonded to C2 (which carries an explicit H3) and O4.
	m := build([]string{"C", "C", "H", "O"}, [][3]int{{1, 2, 1}, {2, 3, 1}, {1, 4, 1}})

	h, rest := classify(m, 2, m.IncidentBonds(2), 1, 1)
	assert.Equal(t, 1, h)
	assert.Empty(t, rest)

	h, rest = classify(m, 1, m.IncidentBonds(1), 0, 0)
	assert.Equal(t, 0, h)
	assert.Equal(t, []molecule.BondID{1, 3}, rest)
}
