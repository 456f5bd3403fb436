package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/francescomaiomascio/yai/internal/graph"
)

// maxLine bounds a single JSONL record.
const maxLine = 8 << 20

// ReadJSONL parses a JSONL artifact back into nodes and edges.
func ReadJSONL(r io.Reader) (*graph.SubGraph, error) {
	sub := graph.NewSubGraph()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch head.Type {
		case RecordNode:
			var rec nodeRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			sub.Nodes = append(sub.Nodes, graph.Node{ID: rec.ID, Kind: rec.Kind, Meta: rec.Meta, LastSeen: rec.LastSeen})
		case RecordEdge:
			var rec edgeRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			sub.Edges = append(sub.Edges, graph.Edge{ID: rec.ID, Src: rec.Src, Dst: rec.Dst, Rel: rec.Rel, Weight: rec.Weight, Meta: rec.Meta})
		default:
			return nil, fmt.Errorf("line %d: unknown record type %q", line, head.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading jsonl: %w", err)
	}
	return sub, nil
}

// CountRecords returns the node and edge record counts of a JSONL artifact.
func CountRecords(r io.Reader) (nodes, edges int, err error) {
	sub, err := ReadJSONL(r)
	if err != nil {
		return 0, 0, err
	}
	return len(sub.Nodes), len(sub.Edges), nil
}
