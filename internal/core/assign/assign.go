// Package assign decides the next item shown to an annotator under the
// active labeling mode.
package assign

import (
	"errors"
	"fmt"

	"github.com/geolabel/conflator/internal/core/consensus"
	"github.com/geolabel/conflator/internal/core/model"
	"github.com/geolabel/conflator/internal/core/store"
)

// ErrNoMoreItems signals that the candidate set for the annotator's mode is
// exhausted. A terminal state, not a failure: the controller maps it to a
// completion view.
var ErrNoMoreItems = errors.New("no more items to label")

// Engine selects items in stable ascending-identity order. No randomness:
// repeated calls without new submissions return the same item, which keeps
// sessions resumable and tests reproducible.
//
// Selection is not serialized against submission, so two annotators racing
// for the last under-redundancy item may both receive it and coverage
// overshoots to R+1. Accepted trade-off, see DESIGN.md.
type Engine struct {
	Store    *store.Store
	Resolver *consensus.Resolver
}

func NewEngine(s *store.Store, r *consensus.Resolver) *Engine {
	return &Engine{Store: s, Resolver: r}
}

// NextPair returns the next candidate pair for the annotator, or
// ErrNoMoreItems.
func (e *Engine) NextPair(mode model.Mode, annotator string) (model.EdgeKey, error) {
	pairs, err := e.nextPairs(mode, annotator, 1)
	if err != nil {
		return model.EdgeKey{}, err
	}
	if len(pairs) == 0 {
		return model.EdgeKey{}, ErrNoMoreItems
	}
	return pairs[0], nil
}

// PairAfterNext returns the pair that would follow the next one, letting the
// UI pre-render its map. False when there is no such pair.
func (e *Engine) PairAfterNext(mode model.Mode, annotator string) (model.EdgeKey, bool) {
	pairs, err := e.nextPairs(mode, annotator, 2)
	if err != nil || len(pairs) < 2 {
		return model.EdgeKey{}, false
	}
	return pairs[1], true
}

// NextNeighborhood returns the next neighborhood for the annotator, or
// ErrNoMoreItems.
func (e *Engine) NextNeighborhood(mode model.Mode, annotator string) (string, error) {
	ids, err := e.nextNeighborhoods(mode, annotator, 1)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrNoMoreItems
	}
	return ids[0], nil
}

// NeighborhoodAfterNext returns the neighborhood after the next one, or
// false.
func (e *Engine) NeighborhoodAfterNext(mode model.Mode, annotator string) (string, bool) {
	ids, err := e.nextNeighborhoods(mode, annotator, 2)
	if err != nil || len(ids) < 2 {
		return "", false
	}
	return ids[1], true
}

func (e *Engine) nextPairs(mode model.Mode, annotator string, limit int) ([]model.EdgeKey, error) {
	if !model.ValidMode(mode) {
		return nil, fmt.Errorf("labeling mode '%s' is not supported", mode)
	}

	if mode == model.ModeUnlabeled {
		pairs, _ := e.Store.NextUnlabeled(model.KindPair, annotator, e.effectiveRedundancy(), limit)
		return pairs, nil
	}

	var out []model.EdgeKey
	for _, k := range e.Store.Dataset().SortedPairs() {
		if e.Store.AnnotatedBy(model.KindPair, k, "", annotator) {
			continue
		}
		if mode == model.ModeCrossValidate && e.Store.DistinctAnnotators(model.KindPair, k, "") < 1 {
			continue
		}
		out = append(out, k)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (e *Engine) nextNeighborhoods(mode model.Mode, annotator string, limit int) ([]string, error) {
	if !model.ValidMode(mode) {
		return nil, fmt.Errorf("labeling mode '%s' is not supported", mode)
	}

	if mode == model.ModeUnlabeled {
		_, ids := e.Store.NextUnlabeled(model.KindNeighborhood, annotator, e.effectiveRedundancy(), limit)
		return ids, nil
	}

	var out []string
	for _, id := range e.Store.Dataset().NeighborhoodIDs() {
		if e.Store.AnnotatedBy(model.KindNeighborhood, model.EdgeKey{}, id, annotator) {
			continue
		}
		if mode == model.ModeCrossValidate && e.Store.DistinctAnnotators(model.KindNeighborhood, model.EdgeKey{}, id) < 1 {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// effectiveRedundancy is the coverage ceiling for the unlabeled queue: an
// item stays in it while below the redundancy threshold, or past it but
// still unresolved (a tie grows the effective redundancy up to the
// extra-annotator cap; the resolver settles the item at the cap, after which
// the store's resolved filter drops it).
func (e *Engine) effectiveRedundancy() int {
	return e.Resolver.Redundancy + e.Resolver.MaxExtraAnnotators
}
