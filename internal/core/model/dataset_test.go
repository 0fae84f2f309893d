package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset(t *testing.T) *Dataset {
	t.Helper()

	ds := &Dataset{
		Existing: []Building{
			{ID: "e1", Neighborhood: "h3-a"},
			{ID: "e2", Neighborhood: "h3-a"},
			{ID: "e3", Neighborhood: "h3-b"},
		},
		New: []Building{
			{ID: "n1", Neighborhood: "h3-a"},
			{ID: "n2", Neighborhood: "h3-a"},
			{ID: "n3", Neighborhood: "h3-b"},
		},
		Pairs: []EdgeKey{
			{IDExisting: "e2", IDNew: "n2"},
			{IDExisting: "e1", IDNew: "n1"},
			{IDExisting: "e3", IDNew: "n3"},
		},
	}
	require.NoError(t, ds.Init())
	return ds
}

func TestDatasetGroupsPairsByNeighborhood(t *testing.T) {
	ds := testDataset(t)

	assert.Equal(t, []string{"h3-a", "h3-b"}, ds.NeighborhoodIDs())

	nbh := ds.NeighborhoodByID("h3-a")
	require.NotNil(t, nbh)
	assert.Equal(t, []EdgeKey{
		{IDExisting: "e1", IDNew: "n1"},
		{IDExisting: "e2", IDNew: "n2"},
	}, nbh.InitialEdges)
	assert.Equal(t, []string{"e1", "e2"}, nbh.ExistingIDs)
	assert.Equal(t, []string{"n1", "n2"}, nbh.NewIDs)
}

func TestDatasetLinkedExistingBuilding(t *testing.T) {
	// Edge case: a candidate pair whose existing building sits in another
	// neighborhood still lists that building in the pair's neighborhood.
	ds := &Dataset{
		Existing: []Building{
			{ID: "e1", Neighborhood: "h3-b"},
		},
		New: []Building{
			{ID: "n1", Neighborhood: "h3-a"},
		},
		Pairs: []EdgeKey{{IDExisting: "e1", IDNew: "n1"}},
	}
	require.NoError(t, ds.Init())

	nbh := ds.NeighborhoodByID("h3-a")
	require.NotNil(t, nbh)
	assert.Contains(t, nbh.ExistingIDs, "e1")
}

func TestDatasetSortedPairs(t *testing.T) {
	ds := testDataset(t)

	pairs := ds.SortedPairs()
	for i := 1; i < len(pairs); i++ {
		assert.True(t, pairs[i-1].Less(pairs[i]))
	}
}

func TestDatasetValidPair(t *testing.T) {
	ds := testDataset(t)

	assert.True(t, ds.ValidPair(EdgeKey{IDExisting: "e1", IDNew: "n1"}))
	assert.False(t, ds.ValidPair(EdgeKey{IDExisting: "e1", IDNew: "n2"}))
}

func TestDatasetRejectsUnknownPairIDs(t *testing.T) {
	ds := &Dataset{
		Existing: []Building{{ID: "e1", Neighborhood: "h3-a"}},
		New:      []Building{{ID: "n1", Neighborhood: "h3-a"}},
		Pairs:    []EdgeKey{{IDExisting: "e9", IDNew: "n1"}},
	}
	assert.Error(t, ds.Init())
}

func TestDatasetRejectsMissingNeighborhood(t *testing.T) {
	ds := &Dataset{
		Existing: []Building{{ID: "e1"}},
		New:      []Building{{ID: "n1", Neighborhood: "h3-a"}},
	}
	assert.Error(t, ds.Init())
}
