package driver

// Cypher for mirroring the labeling state into Memgraph. Buildings from both
// datasets become :Building nodes (source 'existing' or 'new'); a
// neighborhood's materialized current-edge set becomes :MATCHES
// relationships, re-synced as a whole after every accepted diff; resolved
// pair labels become :RESOLVED relationships.
const (
	SaveBuildingQuery = `
		MERGE (b:Building {id: $id, source: $source})
		SET b.neighborhood = $neighborhood
		RETURN b.id AS id
	`

	ClearNeighborhoodMatchesQuery = `
		MATCH (:Building {source: 'existing'})-[m:MATCHES {neighborhood: $neighborhood}]->(:Building {source: 'new'})
		DELETE m
	`

	SaveMatchEdgeQuery = `
		MATCH (a:Building {id: $id_existing, source: 'existing'})
		MATCH (b:Building {id: $id_new, source: 'new'})
		MERGE (a)-[m:MATCHES {neighborhood: $neighborhood}]->(b)
		SET m.updated_at = $updated_at
	`

	SaveResolvedPairQuery = `
		MATCH (a:Building {id: $id_existing, source: 'existing'})
		MATCH (b:Building {id: $id_new, source: 'new'})
		MERGE (a)-[r:RESOLVED]->(b)
		SET r.label = $label,
			r.annotators = $annotators,
			r.resolved_at = $resolved_at
	`
)
