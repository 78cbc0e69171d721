package challenge

import (
	"context"
	"strings"

	"github.com/h1w0xxx/chiralgrid/internal/chiral"
	"github.com/h1w0xxx/chiralgrid/internal/molecule"
	"github.com/h1w0xxx/chiralgrid/internal/molfile"
)

// Report summarises one analysed record.
type Report struct {
	Title         string `json:"title"`
	MoleculeID    int    `json:"molecule_id"`
	Atoms         int    `json:"atoms"`
	Bonds         int    `json:"bonds"`
	Rings         int    `json:"rings"`
	Fragments     int    `json:"fragments"`
	Stereocenters []int  `json:"stereocenters"`
}

// Analyze parses text, annotates it and lists its stereocenters. Parse
// failures come back as *molfile.FormatError.
func Analyze(ctx context.Context, a *chiral.Analyzer, text string, workers int) (*Report, error) {
	m, err := molfile.ParseAndAnnotate(text)
	if err != nil {
		return nil, err
	}
	ids, err := a.StereocentersParallel(ctx, m, workers)
	if err != nil {
		return nil, err
	}
	topo, err := molecule.AnalyzeTopology(m)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Title:         title(text),
		MoleculeID:    m.ID,
		Atoms:         m.AtomCount(),
		Bonds:         m.BondCount(),
		Rings:         topo.Rings(),
		Fragments:     topo.Fragments,
		Stereocenters: make([]int, 0, len(ids)),
	}
	for _, id := range ids {
		r.Stereocenters = append(r.Stereocenters, int(id))
	}
	return r, nil
}

func title(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}
