// Package store is the single source of truth for annotation records and
// neighborhood edge-diff state. Annotations are append-only; derived state
// (consensus, stats) is a projection over them, with resolved consensus
// records cached so a resolution never reverts.
package store

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/geolabel/conflator/internal/core/model"
)

type Store struct {
	mu sync.RWMutex

	ds *model.Dataset
	db *badger.DB // nil disables persistence (tests use in-memory badger instead)

	pairAnns map[model.EdgeKey][]model.Annotation // append order, newest last
	nbhAnns  map[string][]model.Annotation

	// current is the materialized edge set per neighborhood:
	// (initial ∪ added) − removed, folded over accepted diffs.
	current map[string]map[model.EdgeKey]bool
	// known is initial ∪ every edge ever added; removals are validated
	// against it rather than against current, so two annotators may each
	// remove the same initial edge.
	known map[string]map[model.EdgeKey]bool

	resolved map[string]model.ConsensusRecord

	total int
}

// Open builds a store over the dataset and replays any previously persisted
// annotations from db. db may be nil for a purely in-memory store.
func Open(ds *model.Dataset, db *badger.DB) (*Store, error) {
	s := &Store{
		ds:       ds,
		db:       db,
		pairAnns: make(map[model.EdgeKey][]model.Annotation),
		nbhAnns:  make(map[string][]model.Annotation),
		current:  make(map[string]map[model.EdgeKey]bool),
		known:    make(map[string]map[model.EdgeKey]bool),
		resolved: make(map[string]model.ConsensusRecord),
	}

	if db != nil {
		n, err := s.replay()
		if err != nil {
			return nil, fmt.Errorf("failed to replay annotation log: %w", err)
		}
		if n > 0 {
			log.Printf("Replayed %d annotations from store", n)
		}
	}

	return s, nil
}

// Dataset returns the immutable candidate set the store serves.
func (s *Store) Dataset() *model.Dataset {
	return s.ds
}

// RecordLabel appends a pair-wise annotation. The pair must be a known
// candidate pair; edges asserted inside neighborhood diffs enter through
// RecordNeighborhoodDiff instead.
func (s *Store) RecordLabel(k model.EdgeKey, annotator string, label model.Label) error {
	if !model.ValidLabel(label) {
		return &InvalidLabelError{Label: label}
	}
	if !s.ds.ValidPair(k) {
		return ErrUnknownItem
	}

	ann := model.Annotation{
		UUID:      uuid.New().String(),
		Kind:      model.KindPair,
		Edge:      k,
		Annotator: annotator,
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ann); err != nil {
		return err
	}
	s.applyPair(ann)
	s.logProgress()
	return nil
}

// RecordNeighborhoodDiff validates and applies one annotator's diff against
// the neighborhood's match graph. All-or-nothing: an invalid added/removed
// combination rejects the whole diff. Applying the same diff twice yields
// the same materialized edge set, which is what makes network resubmission
// safe.
func (s *Store) RecordNeighborhoodDiff(nbhID, annotator string, added, removed []model.EdgeKey) error {
	nbh := s.ds.NeighborhoodByID(nbhID)
	if nbh == nil {
		return ErrUnknownItem
	}

	removedSet := make(map[model.EdgeKey]bool, len(removed))
	for _, k := range removed {
		removedSet[k] = true
	}
	for _, k := range added {
		if removedSet[k] {
			return &InvalidDiffError{Reason: fmt.Sprintf("edge %s in both added and removed", k)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	known := s.knownEdges(nbhID)
	for _, k := range removed {
		if !known[k] {
			return &InvalidDiffError{Reason: fmt.Sprintf("removed edge %s was never part of neighborhood %s", k, nbhID)}
		}
	}

	now := time.Now().UTC()
	ann := model.Annotation{
		UUID:         uuid.New().String(),
		Kind:         model.KindNeighborhood,
		Neighborhood: nbhID,
		Annotator:    annotator,
		Added:        append([]model.EdgeKey(nil), added...),
		Removed:      append([]model.EdgeKey(nil), removed...),
		CreatedAt:    now,
	}
	model.SortEdgeKeys(ann.Added)
	model.SortEdgeKeys(ann.Removed)

	implied := s.impliedLabels(nbh, ann, now)

	if err := s.persist(append([]model.Annotation{ann}, implied...)...); err != nil {
		return err
	}

	s.applyNeighborhood(ann)
	for _, p := range implied {
		s.applyPair(p)
	}

	log.Printf("Neighborhood %s: %d matches added, %d removed by %s", nbhID, len(added), len(removed), annotator)
	return nil
}

// impliedLabels flattens a neighborhood diff into per-pair labels for the
// neighborhood's candidate pairs: kept initial edges confirm a match,
// removed edges a no-match, asserted edges a new match.
func (s *Store) impliedLabels(nbh *model.Neighborhood, diff model.Annotation, now time.Time) []model.Annotation {
	removed := make(map[model.EdgeKey]bool, len(diff.Removed))
	for _, k := range diff.Removed {
		removed[k] = true
	}

	var out []model.Annotation
	emit := func(k model.EdgeKey, label model.Label) {
		out = append(out, model.Annotation{
			UUID:         uuid.New().String(),
			Kind:         model.KindPair,
			Edge:         k,
			Neighborhood: nbh.ID,
			Annotator:    diff.Annotator,
			Label:        label,
			CreatedAt:    now,
		})
	}

	for _, k := range nbh.InitialEdges {
		if removed[k] {
			emit(k, model.LabelNoMatch)
		} else {
			emit(k, model.LabelMatch)
		}
	}
	for _, k := range diff.Added {
		emit(k, model.LabelMatch)
	}
	for _, k := range diff.Removed {
		// Initial edges were already emitted above; removals of
		// previously-added (non-initial) edges still need an audit record.
		if !containsEdge(nbh.InitialEdges, k) {
			emit(k, model.LabelNoMatch)
		}
	}

	return out
}

func (s *Store) applyPair(ann model.Annotation) {
	s.pairAnns[ann.Edge] = append(s.pairAnns[ann.Edge], ann)
	s.total++
}

func (s *Store) applyNeighborhood(ann model.Annotation) {
	s.nbhAnns[ann.Neighborhood] = append(s.nbhAnns[ann.Neighborhood], ann)
	s.total++

	cur := s.currentEdges(ann.Neighborhood)
	known := s.knownEdges(ann.Neighborhood)
	for _, k := range ann.Added {
		cur[k] = true
		known[k] = true
	}
	for _, k := range ann.Removed {
		delete(cur, k)
	}
}

// currentEdges lazily seeds the materialized set from the initial graph.
// Callers must hold mu.
func (s *Store) currentEdges(nbhID string) map[model.EdgeKey]bool {
	cur, ok := s.current[nbhID]
	if !ok {
		cur = make(map[model.EdgeKey]bool)
		for _, k := range s.ds.NeighborhoodByID(nbhID).InitialEdges {
			cur[k] = true
		}
		s.current[nbhID] = cur
	}
	return cur
}

func (s *Store) knownEdges(nbhID string) map[model.EdgeKey]bool {
	known, ok := s.known[nbhID]
	if !ok {
		known = make(map[model.EdgeKey]bool)
		for _, k := range s.ds.NeighborhoodByID(nbhID).InitialEdges {
			known[k] = true
		}
		s.known[nbhID] = known
	}
	return known
}

// CurrentEdges returns the materialized current-edge set of a neighborhood,
// ascending.
func (s *Store) CurrentEdges(nbhID string) []model.EdgeKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.currentEdges(nbhID)
	out := make([]model.EdgeKey, 0, len(cur))
	for k := range cur {
		out = append(out, k)
	}
	model.SortEdgeKeys(out)
	return out
}

// PairAnnotations returns a pair's annotations latest-first.
func (s *Store) PairAnnotations(k model.EdgeKey) []model.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reversed(s.pairAnns[k])
}

// NeighborhoodAnnotations returns a neighborhood's diff annotations
// latest-first.
func (s *Store) NeighborhoodAnnotations(nbhID string) []model.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reversed(s.nbhAnns[nbhID])
}

// LatestPairLabels returns the latest label per annotator for a pair.
func (s *Store) LatestPairLabels(k model.EdgeKey) map[string]model.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestLabels(s.pairAnns[k])
}

// AllLatestPairLabels returns, for every annotated pair, the latest label
// per annotator. The agreement engine computes kappa over this projection.
func (s *Store) AllLatestPairLabels() map[model.EdgeKey]map[string]model.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.EdgeKey]map[string]model.Label, len(s.pairAnns))
	for k, anns := range s.pairAnns {
		out[k] = latestLabels(anns)
	}
	return out
}

// LatestNeighborhoodDiffs returns the latest diff per annotator for a
// neighborhood.
func (s *Store) LatestNeighborhoodDiffs(nbhID string) map[string]model.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Annotation)
	for _, ann := range s.nbhAnns[nbhID] {
		out[ann.Annotator] = ann
	}
	return out
}

// DistinctAnnotators counts annotators with at least one annotation for the
// item.
func (s *Store) DistinctAnnotators(kind model.ItemKind, pair model.EdgeKey, nbhID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, ann := range s.itemAnns(kind, pair, nbhID) {
		seen[ann.Annotator] = true
	}
	return len(seen)
}

// AnnotatedBy reports whether the annotator has any annotation for the item.
func (s *Store) AnnotatedBy(kind model.ItemKind, pair model.EdgeKey, nbhID, annotator string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ann := range s.itemAnns(kind, pair, nbhID) {
		if ann.Annotator == annotator {
			return true
		}
	}
	return false
}

func (s *Store) itemAnns(kind model.ItemKind, pair model.EdgeKey, nbhID string) []model.Annotation {
	if kind == model.KindPair {
		return s.pairAnns[pair]
	}
	return s.nbhAnns[nbhID]
}

// NextUnlabeled returns up to limit lowest-identity items of the requested
// kind that are unresolved, have fewer than redundancy distinct annotators
// and were not yet labeled by the excluded annotator. One of the two return
// slices is populated depending on kind. Deterministic: repeated calls
// without new submissions return the same items. The assignment engine's
// unlabeled mode is built directly on this scan.
func (s *Store) NextUnlabeled(kind model.ItemKind, exclude string, redundancy, limit int) ([]model.EdgeKey, []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if kind == model.KindPair {
		var out []model.EdgeKey
		for _, k := range s.ds.SortedPairs() {
			if _, done := s.resolved[itemKey(model.KindPair, k, "")]; done {
				continue
			}
			if distinct(s.pairAnns[k]) >= redundancy || annotatedBy(s.pairAnns[k], exclude) {
				continue
			}
			out = append(out, k)
			if len(out) == limit {
				break
			}
		}
		return out, nil
	}

	var out []string
	for _, id := range s.ds.NeighborhoodIDs() {
		if _, done := s.resolved[itemKey(model.KindNeighborhood, model.EdgeKey{}, id)]; done {
			continue
		}
		if distinct(s.nbhAnns[id]) >= redundancy || annotatedBy(s.nbhAnns[id], exclude) {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return nil, out
}

// LabeledCounts returns the number of distinct items (pairs and
// neighborhoods) each annotator has labeled, latest-per-annotator semantics.
func (s *Store) LabeledCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, anns := range s.pairAnns {
		for a := range latestLabels(anns) {
			counts[a]++
		}
	}
	for _, anns := range s.nbhAnns {
		seen := make(map[string]bool)
		for _, ann := range anns {
			if !seen[ann.Annotator] {
				seen[ann.Annotator] = true
				counts[ann.Annotator]++
			}
		}
	}
	return counts
}

// AnnotatedPairKeys returns every pair with at least one annotation in
// ascending order, including edges asserted through neighborhood diffs that
// were never candidate pairs.
func (s *Store) AnnotatedPairKeys() []model.EdgeKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.EdgeKey, 0, len(s.pairAnns))
	for k := range s.pairAnns {
		out = append(out, k)
	}
	model.SortEdgeKeys(out)
	return out
}

// ResolvedRecord returns the cached consensus record for an item, if the
// item has already been resolved.
func (s *Store) ResolvedRecord(kind model.ItemKind, pair model.EdgeKey, nbhID string) (model.ConsensusRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.resolved[itemKey(kind, pair, nbhID)]
	return rec, ok
}

// SetResolved caches a resolution. pending -> resolved is monotonic: once an
// item is resolved the first record sticks, later recomputations are
// ignored.
func (s *Store) SetResolved(kind model.ItemKind, pair model.EdgeKey, nbhID string, rec model.ConsensusRecord) {
	if rec.Status != model.StatusResolved {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := itemKey(kind, pair, nbhID)
	if _, ok := s.resolved[key]; !ok {
		s.resolved[key] = rec
	}
}

// TotalAnnotations returns the number of annotation records held.
func (s *Store) TotalAnnotations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// logProgress logs a per-label frequency breakdown every 10th record. The
// total counts neighborhood diffs too, so they are reported alongside the
// pair-label breakdown rather than silently missing from it. Callers must
// hold mu.
func (s *Store) logProgress() {
	if s.total%10 != 0 {
		return
	}
	freq := make(map[model.Label]int)
	pairs := 0
	for _, anns := range s.pairAnns {
		pairs += len(anns)
		for _, ann := range anns {
			freq[ann.Label]++
		}
	}
	log.Printf("Progress: %d annotations recorded (%d pair labels %v, %d neighborhood diffs)", s.total, pairs, freq, s.total-pairs)
}

func itemKey(kind model.ItemKind, pair model.EdgeKey, nbhID string) string {
	if kind == model.KindPair {
		return "pair/" + pair.String()
	}
	return "nbh/" + nbhID
}

func latestLabels(anns []model.Annotation) map[string]model.Label {
	out := make(map[string]model.Label)
	for _, ann := range anns {
		out[ann.Annotator] = ann.Label
	}
	return out
}

func distinct(anns []model.Annotation) int {
	seen := make(map[string]bool)
	for _, ann := range anns {
		seen[ann.Annotator] = true
	}
	return len(seen)
}

func annotatedBy(anns []model.Annotation, annotator string) bool {
	for _, ann := range anns {
		if ann.Annotator == annotator {
			return true
		}
	}
	return false
}

func reversed(anns []model.Annotation) []model.Annotation {
	out := make([]model.Annotation, len(anns))
	for i, ann := range anns {
		out[len(anns)-1-i] = ann
	}
	return out
}

func containsEdge(s []model.EdgeKey, k model.EdgeKey) bool {
	for _, e := range s {
		if e == k {
			return true
		}
	}
	return false
}
