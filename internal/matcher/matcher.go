// Package matcher decides whether two face encodings belong to the same person.
package matcher

import (
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

type Metric string

const (
	Euclidean Metric = "euclidean"
	Cosine    Metric = "cosine"

	DefaultTolerance = 0.6
)

// Availability reports whether the encoder backend is usable.
type Availability interface {
	Available() bool
}

type alwaysAvailable struct{}

func (alwaysAvailable) Available() bool { return true }

// Matcher is stateless apart from its settings and safe for concurrent use.
type Matcher struct {
	tolerance float64
	metric    Metric
	backend   Availability
}

// New builds a matcher. A nil backend is treated as always available.
func New(tolerance float64, metric Metric, backend Availability) *Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if metric != Cosine {
		metric = Euclidean
	}
	if backend == nil {
		backend = alwaysAvailable{}
	}
	return &Matcher{tolerance: tolerance, metric: metric, backend: backend}
}

func (m *Matcher) Tolerance() float64 { return m.tolerance }

// Available reports whether comparisons can currently produce matches.
func (m *Matcher) Available() bool { return m.backend.Available() }

// Distance returns the configured distance between a and b. ok is false when
// the vectors are empty or of different length.
func (m *Matcher) Distance(a, b []float32) (d float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	x, y := widen(a), widen(b)

	if m.metric == Cosine {
		na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
		if na == 0 || nb == 0 {
			return 0, false
		}
		sim := floats.Dot(x, y) / (na * nb)
		sim = math.Max(-1, math.Min(1, sim))
		return 1 - sim, true
	}
	return floats.Distance(x, y, 2), true
}

// Compare returns whether candidate matches known and a confidence in [0, 100].
// It never matches while the encoder backend is unavailable.
func (m *Matcher) Compare(known, candidate []float32) (bool, float64) {
	if !m.backend.Available() {
		return false, 0
	}
	d, ok := m.Distance(known, candidate)
	if !ok {
		return false, 0
	}
	return d <= m.tolerance, Confidence(d)
}

// Confidence maps a distance onto a 0-100 score.
func Confidence(distance float64) float64 {
	return math.Max(0, 1-distance) * 100
}

// Candidate is one known encoding in a deterministic search order.
type Candidate struct {
	ID        uuid.UUID
	Embedding []float32
}

// Match is a candidate that fell within tolerance.
type Match struct {
	ID         uuid.UUID
	Confidence float64
}

// FirstMatch returns the first candidate, in slice order, that matches query.
func (m *Matcher) FirstMatch(query []float32, candidates []Candidate) (Match, bool) {
	for _, c := range candidates {
		if ok, conf := m.Compare(c.Embedding, query); ok {
			return Match{ID: c.ID, Confidence: conf}, true
		}
	}
	return Match{}, false
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
