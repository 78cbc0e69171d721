package chiral

import (
	"context"
	"log/slog"

	"github.com/h1w0xxx/chiralgrid/internal/molecule"
)

type EventKind int

const (
	EventCandidate EventKind = iota + 1
	EventRejected
	EventEquivalent
	EventStereocenter
)

func (k EventKind) String() string {
	switch k {
	case EventCandidate:
		return "candidate"
	case EventRejected:
		return "rejected"
	case EventEquivalent:
		return "equivalent"
	case EventStereocenter:
		return "stereocenter"
	}
	return "unknown"
}

// TraceEvent describes one decision made while answering a query.
type TraceEvent struct {
	Atom     molecule.AtomID
	Kind     EventKind
	Reason   string
	Branches [2]molecule.BondID
}

// Tracer receives decision events synchronously. It must return quickly; a
// panicking tracer is ignored.
type Tracer func(TraceEvent)

func (a *Analyzer) emit(ev TraceEvent) {
	if a.trace == nil {
		return
	}
	defer func() { _ = recover() }()
	a.trace(ev)
}

// SlogTracer forwards events to logger at debug level.
func SlogTracer(logger *slog.Logger) Tracer {
	return func(ev TraceEvent) {
		if !logger.Enabled(context.Background(), slog.LevelDebug) {
			return
		}
		attrs := []slog.Attr{
			slog.Int("atom", int(ev.Atom)),
			slog.String("event", ev.Kind.String()),
		}
		if ev.Reason != "" {
			attrs = append(attrs, slog.String("reason", ev.Reason))
		}
		if ev.Kind == EventEquivalent {
			attrs = append(attrs, slog.Int("branch_a", int(ev.Branches[0])), slog.Int("branch_b", int(ev.Branches[1])))
		}
		logger.LogAttrs(context.Background(), slog.LevelDebug, "stereocenter", attrs...)
	}
}
