package driver

import (
	"context"
	
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphDriver is the boundary to the optional Memgraph mirror of the match
// graph. A nil driver disables mirroring entirely.
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}
