// Package graphrpc carries graph backend operations over the control plane so a
// process without its own store can use a peer's.
package graphrpc

import "github.com/francescomaiomascio/yai/internal/graph"

// Request types.
const (
	OpPutNode      = "graph.put_node"
	OpPutEdge      = "graph.put_edge"
	OpGetNode      = "graph.get_node"
	OpRawNeighbors = "graph.raw_neighbors"
	OpRawStats     = "graph.raw_stats"
	OpRawExport    = "graph.raw_export"
	OpRawDump      = "graph.raw_dump"
)

type ScopeArgs struct {
	Scope graph.Scope `json:"scope"`
}

type PutNodeArgs struct {
	Scope graph.Scope `json:"scope"`
	Node  graph.Node  `json:"node"`
}

type PutEdgeArgs struct {
	Scope graph.Scope `json:"scope"`
	Edge  graph.Edge  `json:"edge"`
}

type GetNodeArgs struct {
	Scope graph.Scope `json:"scope"`
	ID    string      `json:"id"`
}

type NeighborsArgs struct {
	Scope   graph.Scope           `json:"scope"`
	ID      string                `json:"id"`
	Depth   int                   `json:"depth"`
	Filters graph.NeighborFilters `json:"filters"`
}

// ExportArgs.Dest is a path on the serving side, or an s3:// url.
type ExportArgs struct {
	Scope  graph.Scope        `json:"scope"`
	Format graph.ExportFormat `json:"format"`
	Dest   string             `json:"dest"`
}

// Ack answers writes.
type Ack struct {
	ID string `json:"id"`
}

// GetNodeResult carries a null node when the id is not stored.
type GetNodeResult struct {
	Node *graph.Node `json:"node"`
}

type ExportResult struct {
	Bytes int64 `json:"bytes"`
}
