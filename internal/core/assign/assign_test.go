package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geolabel/conflator/internal/core/consensus"
	"github.com/geolabel/conflator/internal/core/model"
	"github.com/geolabel/conflator/internal/core/store"
)

func testEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()

	ds := &model.Dataset{
		Existing: []model.Building{
			{ID: "e1", Neighborhood: "h3-a"},
			{ID: "e2", Neighborhood: "h3-a"},
			{ID: "e3", Neighborhood: "h3-b"},
		},
		New: []model.Building{
			{ID: "n1", Neighborhood: "h3-a"},
			{ID: "n2", Neighborhood: "h3-a"},
			{ID: "n3", Neighborhood: "h3-b"},
		},
		Pairs: []model.EdgeKey{
			{IDExisting: "e1", IDNew: "n1"},
			{IDExisting: "e2", IDNew: "n2"},
			{IDExisting: "e3", IDNew: "n3"},
		},
	}
	require.NoError(t, ds.Init())

	s, err := store.Open(ds, nil)
	require.NoError(t, err)

	resolver := consensus.NewResolver(2, 1, 2)
	return NewEngine(s, resolver), s
}

func edge(e, n string) model.EdgeKey {
	return model.EdgeKey{IDExisting: e, IDNew: n}
}

func TestNextPairDeterministicOrder(t *testing.T) {
	e, _ := testEngine(t)

	k, err := e.NextPair(model.ModeUnlabeled, "alice")
	require.NoError(t, err)
	assert.Equal(t, edge("e1", "n1"), k)

	// Repeated calls without new submissions are idempotent.
	again, err := e.NextPair(model.ModeUnlabeled, "alice")
	require.NoError(t, err)
	assert.Equal(t, k, again)
}

func TestNextPairNeverRepeatsForAnnotator(t *testing.T) {
	e, s := testEngine(t)

	seen := make(map[model.EdgeKey]bool)
	for {
		k, err := e.NextPair(model.ModeUnlabeled, "alice")
		if err != nil {
			assert.ErrorIs(t, err, ErrNoMoreItems)
			break
		}
		assert.False(t, seen[k], "pair %s served twice", k)
		seen[k] = true
		require.NoError(t, s.RecordLabel(k, "alice", model.LabelMatch))
	}
	assert.Len(t, seen, 3)
}

func TestUnlabeledRequeuesTiedItems(t *testing.T) {
	e, s := testEngine(t)

	// (e1,n1) reaches the redundancy threshold with two conflicting labels;
	// it stays in the queue for a tie-breaking extra annotator.
	require.NoError(t, s.RecordLabel(edge("e1", "n1"), "alice", model.LabelMatch))
	require.NoError(t, s.RecordLabel(edge("e1", "n1"), "bob", model.LabelNoMatch))

	k, err := e.NextPair(model.ModeUnlabeled, "carol")
	require.NoError(t, err)
	assert.Equal(t, edge("e1", "n1"), k)
}

func TestUnlabeledSkipsResolvedItems(t *testing.T) {
	e, s := testEngine(t)

	require.NoError(t, s.RecordLabel(edge("e1", "n1"), "alice", model.LabelMatch))
	require.NoError(t, s.RecordLabel(edge("e1", "n1"), "bob", model.LabelMatch))
	s.SetResolved(model.KindPair, edge("e1", "n1"), "", model.ConsensusRecord{
		Status: model.StatusResolved, Label: model.LabelMatch, Annotators: 2,
	})

	k, err := e.NextPair(model.ModeUnlabeled, "carol")
	require.NoError(t, err)
	assert.Equal(t, edge("e2", "n2"), k)
}

func TestAllModeServesResolvedItems(t *testing.T) {
	e, s := testEngine(t)

	require.NoError(t, s.RecordLabel(edge("e1", "n1"), "alice", model.LabelMatch))
	require.NoError(t, s.RecordLabel(edge("e1", "n1"), "bob", model.LabelMatch))
	s.SetResolved(model.KindPair, edge("e1", "n1"), "", model.ConsensusRecord{
		Status: model.StatusResolved, Label: model.LabelMatch, Annotators: 2,
	})

	k, err := e.NextPair(model.ModeAll, "carol")
	require.NoError(t, err)
	assert.Equal(t, edge("e1", "n1"), k)
}

func TestCrossValidateServesOnlyOthersItems(t *testing.T) {
	e, s := testEngine(t)

	require.NoError(t, s.RecordLabel(edge("e2", "n2"), "alice", model.LabelMatch))

	// Bob gets alice's item, not the untouched ones.
	k, err := e.NextPair(model.ModeCrossValidate, "bob")
	require.NoError(t, err)
	assert.Equal(t, edge("e2", "n2"), k)

	// Alice has nothing to cross-validate against.
	_, err = e.NextPair(model.ModeCrossValidate, "alice")
	assert.ErrorIs(t, err, ErrNoMoreItems)
}

func TestPairAfterNext(t *testing.T) {
	e, _ := testEngine(t)

	after, ok := e.PairAfterNext(model.ModeUnlabeled, "alice")
	require.True(t, ok)
	assert.Equal(t, edge("e2", "n2"), after)
}

func TestNextNeighborhood(t *testing.T) {
	e, s := testEngine(t)

	id, err := e.NextNeighborhood(model.ModeUnlabeled, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h3-a", id)

	after, ok := e.NeighborhoodAfterNext(model.ModeUnlabeled, "alice")
	require.True(t, ok)
	assert.Equal(t, "h3-b", after)

	require.NoError(t, s.RecordNeighborhoodDiff("h3-a", "alice", nil, nil))
	id, err = e.NextNeighborhood(model.ModeUnlabeled, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h3-b", id)
}

func TestInvalidMode(t *testing.T) {
	e, _ := testEngine(t)

	_, err := e.NextPair("speedrun", "alice")
	assert.Error(t, err)
}
