// Package consensus decides if and to what label an item's accumulated
// annotations resolve, under a redundancy/margin policy.
package consensus

import (
	"sort"

	"github.com/geolabel/conflator/internal/core/model"
)

// Resolver resolves items once the most frequent label leads the runner-up
// by at least Margin votes among at least Redundancy distinct annotators.
// A persistent tie grows the effective redundancy by one annotator at a
// time, up to MaxExtraAnnotators, after which the item resolves to the
// plurality label.
type Resolver struct {
	Redundancy         int
	Margin             int
	MaxExtraAnnotators int
}

func NewResolver(redundancy, margin, maxExtra int) *Resolver {
	return &Resolver{
		Redundancy:         redundancy,
		Margin:             margin,
		MaxExtraAnnotators: maxExtra,
	}
}

// ResolvePair computes the consensus record for a pair from its latest label
// per annotator. Deterministic: the same label map always yields the same
// record.
func (r *Resolver) ResolvePair(labels map[string]model.Label) model.ConsensusRecord {
	rec := model.ConsensusRecord{Status: model.StatusPending, Annotators: len(labels)}
	if len(labels) < r.Redundancy {
		return rec
	}

	counts := make(map[model.Label]int)
	for _, l := range labels {
		counts[l]++
	}

	top, second := topTwo(counts)
	if counts[top]-second >= r.Margin {
		rec.Status = model.StatusResolved
		rec.Label = top
		return rec
	}

	// Margin not met. Keep collecting annotators until the fallback cap,
	// then settle on the plurality label so the item terminates.
	if len(labels) >= r.Redundancy+r.MaxExtraAnnotators {
		rec.Status = model.StatusResolved
		rec.Label = top
	}
	return rec
}

// topTwo returns the winning label and the runner-up's count. Ties for the
// top are broken deterministically: 'unsure' wins a tie (the honest reading
// of a split vote), then lexicographic order.
func topTwo(counts map[model.Label]int) (model.Label, int) {
	labels := make([]model.Label, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		if (labels[i] == model.LabelUnsure) != (labels[j] == model.LabelUnsure) {
			return labels[i] == model.LabelUnsure
		}
		return labels[i] < labels[j]
	})

	second := 0
	if len(labels) > 1 {
		second = counts[labels[1]]
	}
	return labels[0], second
}

// ResolveNeighborhood computes the consensus record for a neighborhood from
// the latest diff per annotator. Resolution is per-edge: an edge toggle is
// confirmed once at least Margin more reviewers toggled it that way than the
// opposite way; edges nobody toggled keep the generator's original state.
// The record's Edges field is the resolved current-edge set.
func (r *Resolver) ResolveNeighborhood(nbh *model.Neighborhood, diffs map[string]model.Annotation) model.ConsensusRecord {
	rec := model.ConsensusRecord{Status: model.StatusPending, Annotators: len(diffs)}
	if len(diffs) < r.Redundancy {
		return rec
	}

	initial := make(map[model.EdgeKey]bool, len(nbh.InitialEdges))
	for _, k := range nbh.InitialEdges {
		initial[k] = true
	}

	removeVotes := make(map[model.EdgeKey]int)
	addVotes := make(map[model.EdgeKey]int)
	for _, d := range diffs {
		for _, k := range d.Removed {
			removeVotes[k]++
		}
		for _, k := range d.Added {
			addVotes[k]++
		}
	}

	reviewers := len(diffs)
	resolvedSet := make(map[model.EdgeKey]bool, len(initial))
	for k := range initial {
		// Reviewers who did not remove an initial edge implicitly kept it.
		kept := reviewers - removeVotes[k]
		resolvedSet[k] = removeVotes[k]-kept < r.Margin
	}
	for k, votes := range addVotes {
		if initial[k] {
			continue
		}
		// Reviewers who did not assert the edge implicitly declined it.
		declined := reviewers - votes
		if votes-declined >= r.Margin {
			resolvedSet[k] = true
		}
	}

	rec.Status = model.StatusResolved
	for k, in := range resolvedSet {
		if in {
			rec.Edges = append(rec.Edges, k)
		}
	}
	model.SortEdgeKeys(rec.Edges)
	return rec
}
