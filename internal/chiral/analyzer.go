// Package chiral finds tetrahedral stereocenters in an annotated 2D molecule.
//
// A carbon qualifies when all of its bonds are single and it carries either
// four heavy branches, or three heavy branches plus one hydrogen. It is
// reported as a stereocenter when no two of its branches are structurally
// equivalent. Equivalence is decided by walking both branches in lockstep up
// to a depth budget of 3 + floor(sqrt(atomCount)); a walk that outlives the
// budget counts as equivalent. This is a symmetry heuristic, not a CIP ranking.
package chiral

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/h1w0xxx/chiralgrid/internal/molecule"
)

// Analyzer answers stereocenter queries. It holds no per-molecule state and
// may be shared between goroutines.
type Analyzer struct {
	trace Tracer
}

type Option func(*Analyzer)

// WithTracer installs a callback that receives decision events.
func WithTracer(t Tracer) Option {
	return func(a *Analyzer) {
		a.trace = t
	}
}

func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsStereocenter reports whether atom id is a stereocenter. The only error is
// molecule.ErrNotFound for an id outside the molecule.
func (a *Analyzer) IsStereocenter(m *molecule.Molecule, id molecule.AtomID) (bool, error) {
	if _, err := m.Atom(id); err != nil {
		return false, fmt.Errorf("stereocenter query: %w", err)
	}
	return a.isStereocenter(newWalker(m), id), nil
}

// Stereocenters returns every stereocenter of m in ascending order.
func (a *Analyzer) Stereocenters(m *molecule.Molecule) []molecule.AtomID {
	w := newWalker(m)
	var out []molecule.AtomID
	for i := 1; i <= m.AtomCount(); i++ {
		if a.isStereocenter(w, molecule.AtomID(i)) {
			out = append(out, molecule.AtomID(i))
		}
	}
	return out
}

// StereocentersParallel is Stereocenters with the per-atom queries spread
// over at most workers goroutines. It fails only when ctx is done.
func (a *Analyzer) StereocentersParallel(ctx context.Context, m *molecule.Molecule, workers int) ([]molecule.AtomID, error) {
	if workers < 1 {
		workers = 1
	}
	w := newWalker(m)
	hits := make([]bool, m.AtomCount()+1)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 1; i <= m.AtomCount(); i++ {
		id := molecule.AtomID(i)
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			hits[id] = a.isStereocenter(w, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []molecule.AtomID
	for i, hit := range hits {
		if hit {
			out = append(out, molecule.AtomID(i))
		}
	}
	return out, nil
}

func (a *Analyzer) isStereocenter(w *walker, id molecule.AtomID) bool {
	branches, ok := a.candidate(w.m, id)
	if !ok {
		return false
	}

	for i := 0; i < len(branches); i++ {
		for j := i + 1; j < len(branches); j++ {
			if w.equivalent(id, id, branches[i], branches[j], w.budget) {
				a.emit(TraceEvent{Atom: id, Kind: EventEquivalent, Branches: [2]molecule.BondID{branches[i], branches[j]}})
				return false
			}
		}
	}
	a.emit(TraceEvent{Atom: id, Kind: EventStereocenter})
	return true
}

// candidate applies the substitution filter and returns the heavy branches.
func (a *Analyzer) candidate(m *molecule.Molecule, id molecule.AtomID) ([]molecule.BondID, bool) {
	atom := m.MustAtom(id)
	if atom.Element != "C" {
		return nil, false
	}

	bonds := m.IncidentBonds(id)
	for _, bid := range bonds {
		if m.MustBond(bid).Order != 1 {
			a.emit(TraceEvent{Atom: id, Kind: EventRejected, Reason: "multiple bond"})
			return nil, false
		}
	}

	hydrogens, branches := classify(m, id, bonds, 0, 0)
	hydrogens += atom.HCount

	switch {
	case len(branches) == 4 && hydrogens == 0, len(branches) == 3 && hydrogens == 1:
		a.emit(TraceEvent{Atom: id, Kind: EventCandidate})
		return branches, true
	}
	a.emit(TraceEvent{Atom: id, Kind: EventRejected, Reason: fmt.Sprintf("%d branches, %d hydrogens", len(branches), hydrogens)})
	return nil, false
}

// classify splits the bonds at atom into terminal-hydrogen bonds and
// continuation bonds. skip is the bond the walk arrived by and avoid an atom
// whose bonds are ignored; zero disables either filter.
func classify(m *molecule.Molecule, at molecule.AtomID, bonds []molecule.BondID, skip molecule.BondID, avoid molecule.AtomID) (hydrogens int, rest []molecule.BondID) {
	for _, bid := range bonds {
		if bid == skip {
			continue
		}
		far := m.MustBond(bid).Other(at)
		if avoid != 0 && far == avoid {
			continue
		}
		if m.IsTerminalHydrogen(far) {
			hydrogens++
			continue
		}
		rest = append(rest, bid)
	}
	return hydrogens, rest
}

type walkKey struct {
	at1, at2 molecule.AtomID
	b1, b2   molecule.BondID
}

// mismatch is the depth of a pair that differs at its first atom.
const mismatch = -2

// reach is a memoised depth for one walkKey. When depth < limit it is exact;
// otherwise the pair is only known to stay alike for at least limit levels.
type reach struct {
	depth, limit int
}

// walker compares branch pairs of one molecule. The depth to which a pair
// stays alike does not depend on the centre atom or the budget it was asked
// with, so one walker serves every query on the molecule and is safe for
// concurrent use.
type walker struct {
	m      *molecule.Molecule
	budget int

	mu   sync.Mutex
	seen map[walkKey]reach
}

func newWalker(m *molecule.Molecule) *walker {
	return &walker{
		m:      m,
		budget: 3 + int(math.Sqrt(float64(m.AtomCount()))),
		seen:   make(map[walkKey]reach),
	}
}

// equivalent follows b1 from at1 and b2 from at2 and reports whether the two
// branches look the same within budget.
func (w *walker) equivalent(at1, at2 molecule.AtomID, b1, b2 molecule.BondID, budget int) bool {
	return w.depth(walkKey{at1: at1, at2: at2, b1: b1, b2: b2}, budget) >= budget
}

// depth returns min(D, limit), where D is the largest budget for which the
// pair is equivalent. A pair alike at budget b is alike at every smaller one.
func (w *walker) depth(key walkKey, limit int) int {
	w.mu.Lock()
	r, ok := w.seen[key]
	w.mu.Unlock()
	if ok {
		if r.depth < r.limit {
			return min(r.depth, limit)
		}
		if limit <= r.limit {
			return limit
		}
	}

	d := w.compare(key, limit)
	w.mu.Lock()
	if prev, ok := w.seen[key]; !ok || prev.depth >= prev.limit && limit > prev.limit {
		w.seen[key] = reach{depth: d, limit: limit}
	}
	w.mu.Unlock()
	return d
}

func (w *walker) compare(key walkKey, limit int) int {
	bond1, bond2 := w.m.MustBond(key.b1), w.m.MustBond(key.b2)
	if bond1.Order != bond2.Order {
		return mismatch
	}
	n1, n2 := bond1.Other(key.at1), bond2.Other(key.at2)
	if w.m.MustAtom(n1).Element != w.m.MustAtom(n2).Element {
		return mismatch
	}

	h1, next1 := classify(w.m, n1, w.m.IncidentBonds(n1), key.b1, key.at2)
	h2, next2 := classify(w.m, n2, w.m.IncidentBonds(n2), key.b2, key.at1)
	if h1 != h2 || len(next1) != len(next2) {
		return mismatch
	}

	if limit < 0 {
		return limit
	}

	// Every continuation on side 1 needs a match on side 2 one level down.
	best := limit
	for _, c1 := range next1 {
		deepest := mismatch
		for _, c2 := range next2 {
			deepest = max(deepest, w.depth(walkKey{at1: n1, at2: n2, b1: c1, b2: c2}, limit-1))
			if deepest == limit-1 {
				break
			}
		}
		best = min(best, max(-1, deepest+1))
		if best == -1 {
			break
		}
	}
	return best
}
