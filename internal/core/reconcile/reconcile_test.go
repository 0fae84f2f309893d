package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geolabel/conflator/internal/core/model"
)

func edge(e, n string) model.EdgeKey {
	return model.EdgeKey{IDExisting: e, IDNew: n}
}

func TestToggleInitialEdge(t *testing.T) {
	r := New([]model.EdgeKey{edge("e1", "n1"), edge("e2", "n2")})

	r.ToggleEdge(edge("e1", "n1"))
	s, ok := r.State(edge("e1", "n1"))
	assert.True(t, ok)
	assert.Equal(t, StateRemoved, s)

	added, removed := r.Diff()
	assert.Empty(t, added)
	assert.Equal(t, []model.EdgeKey{edge("e1", "n1")}, removed)
}

func TestDoubleToggleIsIdempotent(t *testing.T) {
	// Toggling an edge twice through the same path returns it to its
	// original state.
	r := New([]model.EdgeKey{edge("e1", "n1")})

	r.ToggleEdge(edge("e1", "n1"))
	r.ToggleEdge(edge("e1", "n1"))

	s, _ := r.State(edge("e1", "n1"))
	assert.Equal(t, StateInitial, s)

	added, removed := r.Diff()
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestAddViaSelection(t *testing.T) {
	r := New([]model.EdgeKey{edge("e1", "n1")})

	assert.Equal(t, OutcomePending, r.SelectExisting("e3"))
	assert.Equal(t, OutcomeAdded, r.SelectNew("n4"))

	s, ok := r.State(edge("e3", "n4"))
	assert.True(t, ok)
	assert.Equal(t, StateAdded, s)

	// Selection always clears after completing a pair.
	existing, newSide := r.PendingSelection()
	assert.Empty(t, existing)
	assert.Empty(t, newSide)
}

func TestRetractAddedEdge(t *testing.T) {
	// Retracting a manually added match removes it entirely; it never
	// passes through StateRemoved since it was not in the initial graph.
	r := New(nil)

	r.SelectExisting("e3")
	r.SelectNew("n4")
	r.ToggleEdge(edge("e3", "n4"))

	_, ok := r.State(edge("e3", "n4"))
	assert.False(t, ok)

	added, removed := r.Diff()
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestReAddRemovedEdgeCancelsRemoval(t *testing.T) {
	// Scenario: annotator removes initial edge (e1,n1), then re-adds it via
	// the add-flow before submitting. The final diff must contain neither
	// an add nor a remove for the edge.
	r := New([]model.EdgeKey{edge("e1", "n1")})

	r.ToggleEdge(edge("e1", "n1"))
	r.SelectExisting("e1")
	assert.Equal(t, OutcomeReinstated, r.SelectNew("n1"))

	s, _ := r.State(edge("e1", "n1"))
	assert.Equal(t, StateInitial, s)

	added, removed := r.Diff()
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestDuplicateAddIsSkipped(t *testing.T) {
	r := New([]model.EdgeKey{edge("e1", "n1")})

	r.SelectExisting("e1")
	assert.Equal(t, OutcomeSkipped, r.SelectNew("n1"))

	r.SelectExisting("e3")
	r.SelectNew("n4")
	r.SelectExisting("e3")
	assert.Equal(t, OutcomeSkipped, r.SelectNew("n4"))

	added, removed := r.Diff()
	assert.Equal(t, []model.EdgeKey{edge("e3", "n4")}, added)
	assert.Empty(t, removed)
}

func TestSameBuildingTwiceDeselects(t *testing.T) {
	r := New(nil)

	assert.Equal(t, OutcomePending, r.SelectExisting("e3"))
	assert.Equal(t, OutcomeDeselected, r.SelectExisting("e3"))

	// The cancelled selection must not complete a pair later.
	assert.Equal(t, OutcomePending, r.SelectNew("n4"))
	added, _ := r.Diff()
	assert.Empty(t, added)
}

func TestDiffSetsAreDisjointAndSorted(t *testing.T) {
	r := New([]model.EdgeKey{edge("e2", "n2"), edge("e1", "n1")})

	r.ToggleEdge(edge("e2", "n2"))
	r.SelectExisting("e9")
	r.SelectNew("n9")
	r.SelectExisting("e3")
	r.SelectNew("n4")

	added, removed := r.Diff()
	assert.Equal(t, []model.EdgeKey{edge("e3", "n4"), edge("e9", "n9")}, added)
	assert.Equal(t, []model.EdgeKey{edge("e2", "n2")}, removed)

	for _, a := range added {
		assert.NotContains(t, removed, a)
	}
}

func TestNeighborhoodScenario(t *testing.T) {
	// Scenario: initial edges {(e1,n1),(e2,n2)}; annotator removes (e1,n1)
	// and adds (e3,n4). Submitted diff = added:[(e3,n4)],
	// removed:[(e1,n1)].
	r := New([]model.EdgeKey{edge("e1", "n1"), edge("e2", "n2")})

	r.ToggleEdge(edge("e1", "n1"))
	r.SelectExisting("e3")
	r.SelectNew("n4")

	added, removed := r.Diff()
	assert.Equal(t, []model.EdgeKey{edge("e3", "n4")}, added)
	assert.Equal(t, []model.EdgeKey{edge("e1", "n1")}, removed)
}
