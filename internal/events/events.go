package events

import "context"

// Event subjects
const (
	TopicNodeUpserted = "yai.graph.node.upserted"
	TopicEdgeUpserted = "yai.graph.edge.upserted"
)

// Event types

type NodeUpserted struct {
	Scope    string `json:"scope"`
	NodeID   string `json:"node_id"`
	Kind     string `json:"kind"`
	LastSeen int64  `json:"last_seen"`
}

type EdgeUpserted struct {
	Scope  string  `json:"scope"`
	EdgeID string  `json:"edge_id"`
	Src    string  `json:"src"`
	Dst    string  `json:"dst"`
	Rel    string  `json:"rel"`
	Weight float64 `json:"weight"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
