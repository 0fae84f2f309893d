package model

import (
	"sort"
	"strings"
)

// EdgeKey is the composite identity of a candidate match: one building from
// the existing dataset, one from the new dataset. It doubles as the identity
// of a candidate pair and of a single edge in a neighborhood's match graph.
type EdgeKey struct {
	IDExisting string `json:"id_existing"`
	IDNew      string `json:"id_new"`
}

func (k EdgeKey) String() string {
	return k.IDExisting + "--" + k.IDNew
}

// Less orders keys lexicographically by (id_existing, id_new). Assignment
// and diff output rely on this for stable, reproducible ordering.
func (k EdgeKey) Less(other EdgeKey) bool {
	if c := strings.Compare(k.IDExisting, other.IDExisting); c != 0 {
		return c < 0
	}
	return k.IDNew < other.IDNew
}

// SortEdgeKeys sorts in place in ascending (id_existing, id_new) order.
func SortEdgeKeys(keys []EdgeKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
