package molecule

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
)

// Topology summarises the bond graph of a molecule.
type Topology struct {
	// RingBonds are the bonds that close a cycle when bonds are added in
	// declaration order. Their count is the number of independent rings.
	RingBonds []BondID
	// Fragments is the number of disconnected pieces.
	Fragments int
}

// Rings returns len(t.RingBonds).
func (t Topology) Rings() int { return len(t.RingBonds) }

// AnalyzeTopology builds an undirected graph over the atoms and reports ring
// closures and connected fragments.
func AnalyzeTopology(m *Molecule) (Topology, error) {
	g := graph.New(graph.IntHash)
	for i := range m.Atoms {
		if err := g.AddVertex(i + 1); err != nil {
			return Topology{}, fmt.Errorf("topology: add atom %d: %w", i+1, err)
		}
	}

	var t Topology
	for i, b := range m.Bonds {
		from, to := int(b.From), int(b.To)
		closes, err := graph.CreatesCycle(g, from, to)
		if err != nil {
			return Topology{}, fmt.Errorf("topology: bond %d: %w", i+1, err)
		}
		if closes {
			t.RingBonds = append(t.RingBonds, BondID(i+1))
		}
		if err := g.AddEdge(from, to); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return Topology{}, fmt.Errorf("topology: bond %d: %w", i+1, err)
		}
	}

	seen := make(map[int]bool, len(m.Atoms))
	for i := range m.Atoms {
		start := i + 1
		if seen[start] {
			continue
		}
		t.Fragments++
		err := graph.BFS(g, start, func(v int) bool {
			seen[v] = true
			return false
		})
		if err != nil {
			return Topology{}, fmt.Errorf("topology: walk from %d: %w", start, err)
		}
	}
	return t, nil
}
