package core

import (
	"context"
	"log"
	"time"

	"github.com/geolabel/conflator/internal/core/model"
	"github.com/geolabel/conflator/internal/driver"
)

// Mirroring is best-effort: a submit never fails because Memgraph is down.
// Errors are logged and the next accepted diff re-syncs the whole edge set,
// so the mirror converges.

func (e *Engine) mirrorNeighborhood(ctx context.Context, nbhID string) {
	if e.Driver == nil {
		return
	}

	nbh := e.Store.Dataset().NeighborhoodByID(nbhID)
	for _, id := range nbh.ExistingIDs {
		e.mirrorBuilding(ctx, id, "existing")
	}
	for _, id := range nbh.NewIDs {
		e.mirrorBuilding(ctx, id, "new")
	}

	if _, err := e.Driver.ExecuteQuery(ctx, driver.ClearNeighborhoodMatchesQuery, map[string]interface{}{
		"neighborhood": nbhID,
	}); err != nil {
		log.Printf("Failed to clear mirrored matches for neighborhood %s: %v", nbhID, err)
		return
	}

	now := time.Now().UTC()
	for _, k := range e.Store.CurrentEdges(nbhID) {
		// An added edge may reach outside the neighborhood's building set;
		// make sure both endpoints exist before the MATCH.
		e.mirrorEdgeEndpoints(ctx, k)
		_, err := e.Driver.ExecuteQuery(ctx, driver.SaveMatchEdgeQuery, map[string]interface{}{
			"id_existing":  k.IDExisting,
			"id_new":       k.IDNew,
			"neighborhood": nbhID,
			"updated_at":   now,
		})
		if err != nil {
			log.Printf("Failed to mirror match %s: %v", k, err)
		}
	}
}

func (e *Engine) mirrorResolvedPair(ctx context.Context, k model.EdgeKey, rec model.ConsensusRecord) {
	if e.Driver == nil {
		return
	}

	e.mirrorEdgeEndpoints(ctx, k)
	_, err := e.Driver.ExecuteQuery(ctx, driver.SaveResolvedPairQuery, map[string]interface{}{
		"id_existing": k.IDExisting,
		"id_new":      k.IDNew,
		"label":       string(rec.Label),
		"annotators":  rec.Annotators,
		"resolved_at": time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Failed to mirror resolved pair %s: %v", k, err)
	}
}

func (e *Engine) mirrorEdgeEndpoints(ctx context.Context, k model.EdgeKey) {
	e.mirrorBuilding(ctx, k.IDExisting, "existing")
	e.mirrorBuilding(ctx, k.IDNew, "new")
}

func (e *Engine) mirrorBuilding(ctx context.Context, id, source string) {
	var b model.Building
	var ok bool
	if source == "existing" {
		b, ok = e.Store.Dataset().ExistingBuilding(id)
	} else {
		b, ok = e.Store.Dataset().NewBuilding(id)
	}
	if !ok {
		return
	}

	_, err := e.Driver.ExecuteQuery(ctx, driver.SaveBuildingQuery, map[string]interface{}{
		"id":           b.ID,
		"source":       source,
		"neighborhood": b.Neighborhood,
	})
	if err != nil {
		log.Printf("Failed to mirror building %s: %v", id, err)
	}
}
