// Package core ties the labeling components together: sessions, submission,
// consensus recomputation, scoreboard and export.
package core

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/geolabel/conflator/internal/core/agreement"
	"github.com/geolabel/conflator/internal/core/assign"
	"github.com/geolabel/conflator/internal/core/consensus"
	"github.com/geolabel/conflator/internal/core/model"
	"github.com/geolabel/conflator/internal/core/store"
	"github.com/geolabel/conflator/internal/driver"
)

var annotatorRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Session is the per-annotator labeling context. Identity is open: any id
// matching the allowed pattern is accepted, there is no registration step.
type Session struct {
	Annotator string
	Mode      model.Mode
}

type Engine struct {
	Store     *store.Store
	Assign    *assign.Engine
	Resolver  *consensus.Resolver
	Agreement *agreement.Engine
	Driver    driver.GraphDriver // optional mirror, may be nil
}

func NewEngine(s *store.Store, resolver *consensus.Resolver, d driver.GraphDriver) *Engine {
	return &Engine{
		Store:     s,
		Assign:    assign.NewEngine(s, resolver),
		Resolver:  resolver,
		Agreement: agreement.NewEngine(s),
		Driver:    d,
	}
}

// StartSession validates the annotator id and labeling mode.
func (e *Engine) StartSession(annotator string, mode model.Mode) (Session, error) {
	if !annotatorRe.MatchString(annotator) {
		return Session{}, fmt.Errorf("invalid annotator id '%s'", annotator)
	}
	if !model.ValidMode(mode) {
		return Session{}, fmt.Errorf("labeling mode '%s' is not supported", mode)
	}
	return Session{Annotator: annotator, Mode: mode}, nil
}

// NextPair returns the next candidate pair for the session, or
// assign.ErrNoMoreItems.
func (e *Engine) NextPair(sess Session) (model.EdgeKey, error) {
	return e.Assign.NextPair(sess.Mode, sess.Annotator)
}

// PairAfterNext is the lookahead the UI uses to pre-render the following
// map.
func (e *Engine) PairAfterNext(sess Session) (model.EdgeKey, bool) {
	return e.Assign.PairAfterNext(sess.Mode, sess.Annotator)
}

// NextNeighborhood returns the next neighborhood for the session, or
// assign.ErrNoMoreItems.
func (e *Engine) NextNeighborhood(sess Session) (string, error) {
	return e.Assign.NextNeighborhood(sess.Mode, sess.Annotator)
}

// NeighborhoodAfterNext is the neighborhood lookahead.
func (e *Engine) NeighborhoodAfterNext(sess Session) (string, bool) {
	return e.Assign.NeighborhoodAfterNext(sess.Mode, sess.Annotator)
}

// SubmitPairLabel records one pair-wise judgment, recomputes the pair's
// consensus and returns the session's next pair (ok is false when the queue
// is exhausted).
func (e *Engine) SubmitPairLabel(ctx context.Context, sess Session, k model.EdgeKey, label model.Label) (next model.EdgeKey, ok bool, err error) {
	if err := e.Store.RecordLabel(k, sess.Annotator, label); err != nil {
		return model.EdgeKey{}, false, err
	}
	e.recomputePair(ctx, k)

	next, nerr := e.Assign.NextPair(sess.Mode, sess.Annotator)
	if nerr != nil {
		return model.EdgeKey{}, false, nil
	}
	return next, true, nil
}

// SubmitNeighborhoodDiff applies one annotator's reconciled diff, recomputes
// consensus for the neighborhood and every touched pair, mirrors the new
// edge set, and returns the session's next neighborhood.
func (e *Engine) SubmitNeighborhoodDiff(ctx context.Context, sess Session, nbhID string, added, removed []model.EdgeKey) (next string, ok bool, err error) {
	if err := e.Store.RecordNeighborhoodDiff(nbhID, sess.Annotator, added, removed); err != nil {
		return "", false, err
	}

	nbh := e.Store.Dataset().NeighborhoodByID(nbhID)
	rec := e.Resolver.ResolveNeighborhood(nbh, e.Store.LatestNeighborhoodDiffs(nbhID))
	e.Store.SetResolved(model.KindNeighborhood, model.EdgeKey{}, nbhID, rec)

	for _, k := range nbh.InitialEdges {
		e.recomputePair(ctx, k)
	}
	for _, k := range added {
		e.recomputePair(ctx, k)
	}
	for _, k := range removed {
		e.recomputePair(ctx, k)
	}

	e.mirrorNeighborhood(ctx, nbhID)

	next, nerr := e.Assign.NextNeighborhood(sess.Mode, sess.Annotator)
	if nerr != nil {
		return "", false, nil
	}
	return next, true, nil
}

// recomputePair refreshes a pair's consensus projection. The first
// resolution sticks (the store cache is monotonic), so a resolved label
// never changes retroactively however many audit annotations land later.
func (e *Engine) recomputePair(ctx context.Context, k model.EdgeKey) {
	if _, done := e.Store.ResolvedRecord(model.KindPair, k, ""); done {
		return
	}
	rec := e.Resolver.ResolvePair(e.Store.LatestPairLabels(k))
	if rec.Status != model.StatusResolved {
		return
	}
	e.Store.SetResolved(model.KindPair, k, "", rec)
	e.mirrorResolvedPair(ctx, k, rec)
}

// Scoreboard returns the top five annotators by labeled count with their
// aggregated agreement score.
func (e *Engine) Scoreboard() []model.AnnotatorStats {
	counts := e.Store.LabeledCounts()

	stats := make([]model.AnnotatorStats, 0, len(counts))
	for annotator, n := range counts {
		kappa := e.Agreement.AggregatedKappa(annotator)
		stats = append(stats, model.AnnotatorStats{
			Annotator:    annotator,
			LabeledCount: n,
			Kappa:        kappa,
			Bucket:       model.BucketFor(kappa),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].LabeledCount != stats[j].LabeledCount {
			return stats[i].LabeledCount > stats[j].LabeledCount
		}
		return stats[i].Annotator < stats[j].Annotator
	})

	if len(stats) > 5 {
		stats = stats[:5]
	}
	return stats
}
