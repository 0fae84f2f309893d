// Package reconcile tracks edge add/remove toggles during a neighborhood
// review session and emits a minimal diff on submission.
//
// The reconciler is an explicit state machine over EdgeKey -> state, seeded
// with Initial for every edge of the neighborhood's presumed-match graph.
// It is single-annotator, single-session state: no locking, the server only
// ever sees the final diff.
package reconcile

import (
	"log"

	"github.com/geolabel/conflator/internal/core/model"
)

// EdgeState is the review state of one edge. Edges not tracked at all are
// absent: not part of the graph and not asserted by the annotator.
type EdgeState uint8

const (
	// StateInitial is a generator-presumed match the annotator has not
	// contradicted.
	StateInitial EdgeState = iota + 1
	// StateRemoved is an initial match the annotator rejected.
	StateRemoved
	// StateAdded is a match the annotator asserted that was not in the
	// initial graph.
	StateAdded
)

// Outcome reports what a completed building selection did.
type Outcome uint8

const (
	// OutcomePending means the selection is incomplete (one side chosen).
	OutcomePending Outcome = iota
	// OutcomeDeselected means the same building was clicked twice and its
	// pending selection was cancelled.
	OutcomeDeselected
	// OutcomeAdded means a new edge entered StateAdded.
	OutcomeAdded
	// OutcomeReinstated means a removed initial edge went back to
	// StateInitial. Undo, not a fresh assertion: the final diff carries
	// neither an add nor a remove for the edge.
	OutcomeReinstated
	// OutcomeSkipped means the edge already existed; duplicate adds are
	// no-ops, not errors.
	OutcomeSkipped
)

type Reconciler struct {
	states  map[model.EdgeKey]EdgeState
	initial map[model.EdgeKey]bool

	pendingExisting string
	pendingNew      string
}

// New seeds the state machine from the neighborhood's initial-match edges.
func New(initial []model.EdgeKey) *Reconciler {
	r := &Reconciler{
		states:  make(map[model.EdgeKey]EdgeState, len(initial)),
		initial: make(map[model.EdgeKey]bool, len(initial)),
	}
	for _, k := range initial {
		r.states[k] = StateInitial
		r.initial[k] = true
	}
	return r
}

// State returns the edge's current state; ok is false for absent edges.
func (r *Reconciler) State(k model.EdgeKey) (EdgeState, bool) {
	s, ok := r.states[k]
	return s, ok
}

// ToggleEdge handles a click on a drawn match line. An initial match is
// rejected; toggling it again reinstates it. A manually added match is
// retracted entirely (it was never part of the initial graph, so it does
// not pass through StateRemoved). Clicks on unknown edges are ignored.
func (r *Reconciler) ToggleEdge(k model.EdgeKey) {
	switch r.states[k] {
	case StateInitial:
		r.states[k] = StateRemoved
	case StateRemoved:
		r.states[k] = StateInitial
	case StateAdded:
		delete(r.states, k)
	default:
		log.Printf("Ignoring toggle of unknown edge %s", k)
	}
}

// SelectExisting registers a click on a building from the existing dataset.
// Clicking the currently selected building deselects it. Completing a pair
// (one building from each side) attempts exactly one transition and always
// clears the pending selection, whatever the outcome.
func (r *Reconciler) SelectExisting(id string) Outcome {
	if r.pendingExisting == id {
		r.pendingExisting = ""
		return OutcomeDeselected
	}
	r.pendingExisting = id
	return r.completeSelection()
}

// SelectNew registers a click on a building from the new dataset.
func (r *Reconciler) SelectNew(id string) Outcome {
	if r.pendingNew == id {
		r.pendingNew = ""
		return OutcomeDeselected
	}
	r.pendingNew = id
	return r.completeSelection()
}

func (r *Reconciler) completeSelection() Outcome {
	if r.pendingExisting == "" || r.pendingNew == "" {
		return OutcomePending
	}

	k := model.EdgeKey{IDExisting: r.pendingExisting, IDNew: r.pendingNew}
	r.pendingExisting = ""
	r.pendingNew = ""

	switch r.states[k] {
	case StateRemoved:
		// Re-adding a removed initial edge cancels the removal. No new
		// information was asserted beyond "undo".
		r.states[k] = StateInitial
		return OutcomeReinstated
	case StateInitial, StateAdded:
		log.Printf("Skipping duplicate match %s", k)
		return OutcomeSkipped
	default:
		r.states[k] = StateAdded
		return OutcomeAdded
	}
}

// PendingSelection returns the half-finished selection, empty strings when
// none.
func (r *Reconciler) PendingSelection() (existing, newSide string) {
	return r.pendingExisting, r.pendingNew
}

// Diff emits the minimal diff against the initial graph: added edges and
// removed initial edges, both ascending. The wire payload stays proportional
// to the number of changes, never the neighborhood size, and the two sets
// are disjoint by construction.
func (r *Reconciler) Diff() (added, removed []model.EdgeKey) {
	for k, s := range r.states {
		switch {
		case s == StateAdded:
			added = append(added, k)
		case s == StateRemoved && r.initial[k]:
			removed = append(removed, k)
		}
	}
	model.SortEdgeKeys(added)
	model.SortEdgeKeys(removed)
	return added, removed
}
