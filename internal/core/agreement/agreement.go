// Package agreement computes chance-corrected inter-annotator agreement
// (Cohen's kappa) over pair-wise labels.
package agreement

import (
	"sort"

	"github.com/geolabel/conflator/internal/core/model"
	"github.com/geolabel/conflator/internal/core/store"
)

// Engine recomputes agreement statistics on demand from the store's latest
// label per annotator per pair. Nothing is cached: correctness over
// staleness, the stats are advisory display only.
type Engine struct {
	Store *store.Store
}

func NewEngine(s *store.Store) *Engine {
	return &Engine{Store: s}
}

// Kappa computes Cohen's kappa between two annotators over the pairs both
// have labeled. The second return is false when they share no labeled pair,
// in which case agreement is undefined. Symmetric: Kappa(a,b) == Kappa(b,a).
func (e *Engine) Kappa(a, b string) (float64, bool) {
	labels := e.Store.AllLatestPairLabels()

	var la, lb []model.Label
	for _, byAnnotator := range labels {
		va, oka := byAnnotator[a]
		vb, okb := byAnnotator[b]
		if oka && okb {
			la = append(la, va)
			lb = append(lb, vb)
		}
	}
	if len(la) == 0 {
		return 0, false
	}
	return cohenKappa(la, lb), true
}

// AggregatedKappa returns the mean pairwise kappa of the annotator against
// every other annotator sharing at least one labeled pair, or nil if no
// overlap exists.
func (e *Engine) AggregatedKappa(annotator string) *float64 {
	sum := 0.0
	n := 0
	for _, other := range e.annotators() {
		if other == annotator {
			continue
		}
		if k, ok := e.Kappa(annotator, other); ok {
			sum += k
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

func (e *Engine) annotators() []string {
	seen := make(map[string]bool)
	for _, byAnnotator := range e.Store.AllLatestPairLabels() {
		for a := range byAnnotator {
			seen[a] = true
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// cohenKappa is the standard two-rater chance-corrected agreement over the
// categorical label set. Inputs are parallel slices of equal length >= 1.
func cohenKappa(a, b []model.Label) float64 {
	n := float64(len(a))

	agree := 0
	countA := make(map[model.Label]float64)
	countB := make(map[model.Label]float64)
	for i := range a {
		if a[i] == b[i] {
			agree++
		}
		countA[a[i]]++
		countB[b[i]]++
	}

	po := float64(agree) / n
	pe := 0.0
	for label, ca := range countA {
		pe += (ca / n) * (countB[label] / n)
	}

	if 1-pe == 0 {
		// Both raters used a single identical category; chance agreement is
		// total and kappa is defined as full agreement.
		if po == 1 {
			return 1
		}
		return 0
	}
	return (po - pe) / (1 - pe)
}
