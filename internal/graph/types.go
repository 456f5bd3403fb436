package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node is one stored memory item. Meta is an open JSON attribute bag.
type Node struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Meta     json.RawMessage `json:"meta"`
	LastSeen int64           `json:"last_seen"`
}

// Edge is a weighted, labeled association between two node ids.
// Endpoints are not required to exist.
type Edge struct {
	ID     string          `json:"id"`
	Src    string          `json:"src"`
	Dst    string          `json:"dst"`
	Rel    string          `json:"rel"`
	Weight float64         `json:"weight"`
	Meta   json.RawMessage `json:"meta"`
}

// EdgeID returns the deterministic identity of the (rel, src, dst) triple.
func EdgeID(rel, src, dst string) string {
	return "edge:" + rel + ":" + src + ":" + dst
}

// NeighborFilters restrict traversal. Empty sets let everything through.
type NeighborFilters struct {
	Rels     []string `json:"rels,omitempty"`
	Kinds    []string `json:"kinds,omitempty"`
	Directed bool     `json:"directed"`
}

func (f NeighborFilters) relSet() map[string]bool  { return toSet(f.Rels) }
func (f NeighborFilters) kindSet() map[string]bool { return toSet(f.Kinds) }

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Seed is a starting point for spreading activation.
type Seed struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

// ActivationPolicy controls propagation and truncation.
type ActivationPolicy struct {
	// TopN is the maximum number of nodes returned. Zero yields an empty result.
	TopN int `json:"top_n"`
	// MaxHops bounds propagation; <= 0 means DefaultMaxHops, values above
	// MaxActivationHops are clamped.
	MaxHops int `json:"max_hops"`
	// Decay multiplies contributions once per hop; <= 0 means 1.0.
	Decay float64 `json:"decay"`
	// MinActivation is the absolute score a node needs to propagate further.
	MinActivation float64 `json:"min_activation"`
	Directed      bool    `json:"directed"`
}

const (
	DefaultTopN       = 20
	DefaultMaxHops    = 3
	MaxActivationHops = 8
)

// DefaultActivationPolicy returns the policy used when callers supply none.
func DefaultActivationPolicy() ActivationPolicy {
	return ActivationPolicy{
		TopN:    DefaultTopN,
		MaxHops: DefaultMaxHops,
		Decay:   1.0,
	}
}

func (p ActivationPolicy) normalized() ActivationPolicy {
	if p.MaxHops <= 0 {
		p.MaxHops = DefaultMaxHops
	}
	if p.MaxHops > MaxActivationHops {
		p.MaxHops = MaxActivationHops
	}
	if p.Decay <= 0 {
		p.Decay = 1.0
	}
	if p.TopN < 0 {
		p.TopN = 0
	}
	return p
}

// Stats summarizes one scope.
type Stats struct {
	Scope   string         `json:"scope"`
	Backend string         `json:"backend"`
	Nodes   int            `json:"nodes"`
	Edges   int            `json:"edges"`
	Kinds   map[string]int `json:"kinds"`
}

// SubGraph is the result of traversal or activation. Scores is only set by activation.
type SubGraph struct {
	Nodes  []Node             `json:"nodes"`
	Edges  []Edge             `json:"edges"`
	Scores map[string]float64 `json:"scores,omitempty"`
}

// NewSubGraph returns an empty, non-nil result.
func NewSubGraph() *SubGraph {
	return &SubGraph{Nodes: []Node{}, Edges: []Edge{}}
}

// Merge adds nodes and edges from other that are not already present, by id.
func (s *SubGraph) Merge(other *SubGraph) {
	if other == nil {
		return
	}
	seenNodes := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		seenNodes[n.ID] = true
	}
	for _, n := range other.Nodes {
		if !seenNodes[n.ID] {
			seenNodes[n.ID] = true
			s.Nodes = append(s.Nodes, n)
		}
	}
	seenEdges := make(map[string]bool, len(s.Edges))
	for _, e := range s.Edges {
		seenEdges[e.ID] = true
	}
	for _, e := range other.Edges {
		if !seenEdges[e.ID] {
			seenEdges[e.ID] = true
			s.Edges = append(s.Edges, e)
		}
	}
}

// ExportFormat names a supported whole-scope serialization.
type ExportFormat string

const (
	ExportDot   ExportFormat = "dot"
	ExportJSONL ExportFormat = "jsonl"
)

// ParseExportFormat accepts "dot" or "jsonl" in any case.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case ExportDot:
		return ExportDot, nil
	case ExportJSONL:
		return ExportJSONL, nil
	}
	return "", fmt.Errorf("%w: %q (want dot or jsonl)", ErrUnsupportedExportFormat, s)
}

// NormalizeMeta checks that raw is a JSON document. Empty input becomes null.
func NormalizeMeta(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return json.RawMessage("null"), nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, ErrInvalidMeta
	}
	return json.RawMessage(trimmed), nil
}
