package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geolabel/conflator/internal/core/model"
)

func TestResolvePairAgreement(t *testing.T) {
	// Scenario: R=2, M=1. A and B both label "match" -> resolves.
	r := NewResolver(2, 1, 2)

	rec := r.ResolvePair(map[string]model.Label{
		"alice": model.LabelMatch,
		"bob":   model.LabelMatch,
	})

	assert.Equal(t, model.StatusResolved, rec.Status)
	assert.Equal(t, model.LabelMatch, rec.Label)
	assert.Equal(t, 2, rec.Annotators)
}

func TestResolvePairTieStaysPending(t *testing.T) {
	// Scenario: R=2, M=1. A says "match", B says "no_match" -> tie, item
	// stays pending and is queued for a third annotator.
	r := NewResolver(2, 1, 2)

	rec := r.ResolvePair(map[string]model.Label{
		"alice": model.LabelMatch,
		"bob":   model.LabelNoMatch,
	})

	assert.Equal(t, model.StatusPending, rec.Status)
}

func TestResolvePairBelowRedundancy(t *testing.T) {
	r := NewResolver(2, 1, 2)

	rec := r.ResolvePair(map[string]model.Label{"alice": model.LabelMatch})
	assert.Equal(t, model.StatusPending, rec.Status)
}

func TestResolvePairThirdAnnotatorBreaksTie(t *testing.T) {
	r := NewResolver(2, 1, 2)

	rec := r.ResolvePair(map[string]model.Label{
		"alice": model.LabelMatch,
		"bob":   model.LabelNoMatch,
		"carol": model.LabelMatch,
	})

	assert.Equal(t, model.StatusResolved, rec.Status)
	assert.Equal(t, model.LabelMatch, rec.Label)
}

func TestResolvePairPluralityFallbackAtCap(t *testing.T) {
	// With R=2 and two extra annotators, four distinct annotators without
	// the margin resolve to the plurality label instead of looping forever.
	r := NewResolver(2, 2, 2)

	rec := r.ResolvePair(map[string]model.Label{
		"alice": model.LabelMatch,
		"bob":   model.LabelNoMatch,
		"carol": model.LabelMatch,
		"dave":  model.LabelUnsure,
	})

	assert.Equal(t, model.StatusResolved, rec.Status)
	assert.Equal(t, model.LabelMatch, rec.Label)
}

func TestResolvePairDeterministic(t *testing.T) {
	r := NewResolver(2, 1, 2)
	labels := map[string]model.Label{
		"alice": model.LabelMatch,
		"bob":   model.LabelMatch,
		"carol": model.LabelNoMatch,
	}

	first := r.ResolvePair(labels)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.ResolvePair(labels))
	}
}

func TestResolveNeighborhoodPerEdge(t *testing.T) {
	r := NewResolver(2, 1, 2)

	nbh := &model.Neighborhood{
		ID: "h3-a",
		InitialEdges: []model.EdgeKey{
			{IDExisting: "e1", IDNew: "n1"},
			{IDExisting: "e2", IDNew: "n2"},
		},
	}

	// Both reviewers remove (e1,n1); only one asserts (e3,n4). The removal
	// is confirmed, the lone addition is not.
	diffs := map[string]model.Annotation{
		"alice": {
			Annotator: "alice",
			Removed:   []model.EdgeKey{{IDExisting: "e1", IDNew: "n1"}},
			Added:     []model.EdgeKey{{IDExisting: "e3", IDNew: "n4"}},
		},
		"bob": {
			Annotator: "bob",
			Removed:   []model.EdgeKey{{IDExisting: "e1", IDNew: "n1"}},
		},
	}

	rec := r.ResolveNeighborhood(nbh, diffs)
	assert.Equal(t, model.StatusResolved, rec.Status)
	assert.Equal(t, []model.EdgeKey{{IDExisting: "e2", IDNew: "n2"}}, rec.Edges)
}

func TestResolveNeighborhoodUntouchedEdgesKeepOriginalState(t *testing.T) {
	r := NewResolver(2, 1, 2)

	nbh := &model.Neighborhood{
		ID:           "h3-a",
		InitialEdges: []model.EdgeKey{{IDExisting: "e1", IDNew: "n1"}},
	}

	diffs := map[string]model.Annotation{
		"alice": {Annotator: "alice"},
		"bob":   {Annotator: "bob"},
	}

	rec := r.ResolveNeighborhood(nbh, diffs)
	assert.Equal(t, model.StatusResolved, rec.Status)
	assert.Equal(t, nbh.InitialEdges, rec.Edges)
}

func TestResolveNeighborhoodBelowRedundancy(t *testing.T) {
	r := NewResolver(2, 1, 2)

	nbh := &model.Neighborhood{ID: "h3-a"}
	rec := r.ResolveNeighborhood(nbh, map[string]model.Annotation{
		"alice": {Annotator: "alice"},
	})

	assert.Equal(t, model.StatusPending, rec.Status)
}

func TestResolveNeighborhoodConfirmedAddition(t *testing.T) {
	r := NewResolver(2, 1, 2)

	nbh := &model.Neighborhood{ID: "h3-a"}
	added := []model.EdgeKey{{IDExisting: "e3", IDNew: "n4"}}
	diffs := map[string]model.Annotation{
		"alice": {Annotator: "alice", Added: added},
		"bob":   {Annotator: "bob", Added: added},
	}

	rec := r.ResolveNeighborhood(nbh, diffs)
	assert.Equal(t, added, rec.Edges)
}
