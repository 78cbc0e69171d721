// Package challenge issues and verifies "find the stereocenters" puzzles:
// a molecule is drawn over a lettered grid and the solver must name every
// cell that holds a stereocenter.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/h1w0xxx/chiralgrid/internal/chiral"
	"github.com/h1w0xxx/chiralgrid/internal/depict"
	"github.com/h1w0xxx/chiralgrid/internal/library"
	"github.com/h1w0xxx/chiralgrid/internal/molecule"
	"github.com/h1w0xxx/chiralgrid/internal/molfile"
)

// Challenge is one issued puzzle. Image is only set on the value returned by
// Start.
type Challenge struct {
	ID         string
	MoleculeID int
	Regions    []string
	Answers    []string
	Image      []byte
	CreatedAt  time.Time
}

// Source yields MOL records; *library.Library is the production source.
type Source interface {
	Random() (string, error)
}

type Config struct {
	MinStereocenters int
	MaxAttempts      int
	ImageSize        int
	Workers          int
}

type Service struct {
	src      Source
	store    Store
	analyzer *chiral.Analyzer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(src Source, store Store, analyzer *chiral.Analyzer, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		src:      src,
		store:    store,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Start draws records until one has at least MinStereocenters stereocenters,
// renders it and stores the answer key.
func (s *Service) Start(ctx context.Context) (*Challenge, error) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		text, err := s.src.Random()
		if errors.Is(err, library.ErrEmpty) {
			return nil, err
		}
		if err != nil {
			s.logger.Warn("challenge: draw failed", slog.Int("attempt", attempt), slog.String("error", err.Error()))
			continue
		}

		m, err := molfile.ParseAndAnnotate(text)
		if err != nil {
			s.logger.Debug("challenge: skip record", slog.Int("attempt", attempt), slog.String("error", err.Error()))
			continue
		}

		ids, err := s.analyzer.StereocentersParallel(ctx, m, s.cfg.Workers)
		if err != nil {
			return nil, err
		}
		if len(ids) < s.cfg.MinStereocenters {
			continue
		}

		c, err := s.issue(m, ids)
		if err != nil {
			s.logger.Debug("challenge: skip record", slog.Int("attempt", attempt), slog.String("error", err.Error()))
			continue
		}
		if err := s.store.Save(ctx, c); err != nil {
			return nil, err
		}
		s.logger.Debug("challenge: issued",
			slog.String("id", c.ID),
			slog.Int("molecule", c.MoleculeID),
			slog.Any("answers", c.Answers))
		return c, nil
	}
	return nil, ErrNoStereocenters
}

func (s *Service) issue(m *molecule.Molecule, ids []molecule.AtomID) (*Challenge, error) {
	cols, rows := depict.AutoGrid(len(ids))
	layout, err := depict.NewLayout(m, s.cfg.ImageSize, cols, rows)
	if err != nil {
		return nil, err
	}
	img, err := depict.Render(m, layout, ids)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return &Challenge{
		ID:         uuid.NewString(),
		MoleculeID: m.ID,
		Regions:    layout.Regions(),
		Answers:    depict.AnswerRegions(m, layout, ids),
		Image:      img,
		CreatedAt:  s.now(),
	}, nil
}

// Verify consumes the challenge and reports whether selections name exactly
// its answer cells. Order and repetition of selections do not matter.
func (s *Service) Verify(ctx context.Context, id string, selections []string) (bool, error) {
	c, err := s.store.Take(ctx, id)
	if err != nil {
		return false, err
	}

	picked := slices.Clone(selections)
	slices.Sort(picked)
	picked = slices.Compact(picked)

	ok := slices.Equal(picked, c.Answers)
	s.logger.Debug("challenge: verified", slog.String("id", id), slog.Bool("success", ok))
	return ok, nil
}

// Expire drops challenges older than ttl.
func (s *Service) Expire(ctx context.Context, ttl time.Duration) (int, error) {
	return s.store.Purge(ctx, s.now().Add(-ttl))
}

// Analyze runs the full pipeline on one MOL record.
func (s *Service) Analyze(ctx context.Context, text string) (*Report, error) {
	return Analyze(ctx, s.analyzer, text, s.cfg.Workers)
}
