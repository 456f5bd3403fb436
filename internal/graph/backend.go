package graph

import "context"

// Backend owns persistence for exactly one scope. Implementations wrap storage
// and transport failures with ErrBackendUnavailable.
type Backend interface {
	PutNode(ctx context.Context, node Node) error
	PutEdge(ctx context.Context, edge Edge) error
	// GetNode returns nil, nil when the id is not stored.
	GetNode(ctx context.Context, id string) (*Node, error)
	// RawNeighbors returns at least every node and edge a traversal of depth hops
	// from id under filters could visit. Callers narrow the result with Traverse.
	RawNeighbors(ctx context.Context, id string, depth int, filters NeighborFilters) (*SubGraph, error)
	RawStats(ctx context.Context) (*Stats, error)
	// RawExport writes the whole scope to dest and returns the artifact size in bytes.
	RawExport(ctx context.Context, format ExportFormat, dest string) (int64, error)
}

// BackendProvider hands out the backend serving a scope.
type BackendProvider interface {
	Backend(ctx context.Context, scope Scope) (Backend, error)
}
