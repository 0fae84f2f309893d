package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Building is one footprint from either dataset. Geometry is opaque GeoJSON,
// served to the UI but never interpreted here.
type Building struct {
	ID           string          `json:"id"`
	Neighborhood string          `json:"neighborhood"`
	Geometry     json.RawMessage `json:"geometry,omitempty"`
}

// Neighborhood is a spatial cluster of candidate pairs reviewed together.
// InitialEdges is the generator's presumed-match graph; it is immutable,
// reconciled diffs are layered on top of it by the store.
type Neighborhood struct {
	ID           string
	InitialEdges []EdgeKey
	ExistingIDs  []string
	NewIDs       []string
}

// Dataset is the immutable candidate set produced by the external matcher:
// buildings from both sources plus the candidate pairs connecting them.
type Dataset struct {
	Existing []Building `json:"existing"`
	New      []Building `json:"new"`
	Pairs    []EdgeKey  `json:"pairs"`

	existingByID  map[string]Building
	newByID       map[string]Building
	pairSet       map[EdgeKey]bool
	neighborhoods map[string]*Neighborhood
	nbhIDs        []string
	sortedPairs   []EdgeKey
}

// LoadDataset reads and validates a dataset from a JSON file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file '%s': %w", path, err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}

	if err := ds.Init(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Init validates the dataset and builds the lookup indices and the
// neighborhood grouping. Must be called before any accessor.
func (d *Dataset) Init() error {
	d.existingByID = make(map[string]Building, len(d.Existing))
	d.newByID = make(map[string]Building, len(d.New))

	for _, b := range d.Existing {
		if b.Neighborhood == "" {
			return fmt.Errorf("existing building '%s' has no neighborhood", b.ID)
		}
		d.existingByID[b.ID] = b
	}
	for _, b := range d.New {
		if b.Neighborhood == "" {
			return fmt.Errorf("new building '%s' has no neighborhood", b.ID)
		}
		d.newByID[b.ID] = b
	}

	d.pairSet = make(map[EdgeKey]bool, len(d.Pairs))
	d.neighborhoods = make(map[string]*Neighborhood)

	for _, p := range d.Pairs {
		if _, ok := d.existingByID[p.IDExisting]; !ok {
			return fmt.Errorf("candidate pair references ID not in existing dataset: %s", p.IDExisting)
		}
		nb, ok := d.newByID[p.IDNew]
		if !ok {
			return fmt.Errorf("candidate pair references ID not in new dataset: %s", p.IDNew)
		}
		d.pairSet[p] = true

		// A pair belongs to the neighborhood of its new building, matching
		// how the generator groups candidates.
		nbh := d.neighborhood(nb.Neighborhood)
		nbh.InitialEdges = append(nbh.InitialEdges, p)
	}

	for _, b := range d.New {
		nbh := d.neighborhood(b.Neighborhood)
		nbh.NewIDs = append(nbh.NewIDs, b.ID)
	}
	for _, b := range d.Existing {
		if nbh, ok := d.neighborhoods[b.Neighborhood]; ok {
			nbh.ExistingIDs = append(nbh.ExistingIDs, b.ID)
		}
	}
	// Existing buildings linked into a neighborhood only through a candidate
	// pair (their own neighborhood differs) must still be listed there.
	for _, p := range d.Pairs {
		nbhID := d.newByID[p.IDNew].Neighborhood
		eb := d.existingByID[p.IDExisting]
		if eb.Neighborhood != nbhID {
			nbh := d.neighborhoods[nbhID]
			if !containsString(nbh.ExistingIDs, eb.ID) {
				nbh.ExistingIDs = append(nbh.ExistingIDs, eb.ID)
			}
		}
	}

	d.nbhIDs = d.nbhIDs[:0]
	for id, nbh := range d.neighborhoods {
		SortEdgeKeys(nbh.InitialEdges)
		sort.Strings(nbh.ExistingIDs)
		sort.Strings(nbh.NewIDs)
		d.nbhIDs = append(d.nbhIDs, id)
	}
	sort.Strings(d.nbhIDs)

	d.sortedPairs = append(d.sortedPairs[:0], d.Pairs...)
	SortEdgeKeys(d.sortedPairs)

	return nil
}

func (d *Dataset) neighborhood(id string) *Neighborhood {
	nbh, ok := d.neighborhoods[id]
	if !ok {
		nbh = &Neighborhood{ID: id}
		d.neighborhoods[id] = nbh
	}
	return nbh
}

// ValidPair reports whether the key is a known candidate pair.
func (d *Dataset) ValidPair(k EdgeKey) bool {
	return d.pairSet[k]
}

// SortedPairs returns all candidate pairs in ascending identity order.
// Callers must not mutate the returned slice.
func (d *Dataset) SortedPairs() []EdgeKey {
	return d.sortedPairs
}

// NeighborhoodIDs returns all neighborhood ids in ascending order.
func (d *Dataset) NeighborhoodIDs() []string {
	return d.nbhIDs
}

// NeighborhoodByID returns the neighborhood, or nil if unknown.
func (d *Dataset) NeighborhoodByID(id string) *Neighborhood {
	return d.neighborhoods[id]
}

// ExistingBuilding returns a building from the existing dataset.
func (d *Dataset) ExistingBuilding(id string) (Building, bool) {
	b, ok := d.existingByID[id]
	return b, ok
}

// NewBuilding returns a building from the new dataset.
func (d *Dataset) NewBuilding(id string) (Building, bool) {
	b, ok := d.newByID[id]
	return b, ok
}

func containsString(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
