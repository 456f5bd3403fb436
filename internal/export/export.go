// Package export serializes a whole scope to DOT or JSONL and ships the artifact.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/francescomaiomascio/yai/internal/graph"
)

// Record types in a JSONL artifact.
const (
	RecordNode = "node"
	RecordEdge = "edge"
)

type nodeRecord struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	Meta     json.RawMessage `json:"meta"`
	LastSeen int64           `json:"last_seen"`
}

type edgeRecord struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Src    string          `json:"src"`
	Dst    string          `json:"dst"`
	Rel    string          `json:"rel"`
	Weight float64         `json:"weight"`
	Meta   json.RawMessage `json:"meta"`
}

// Write renders nodes and edges in format and returns the number of bytes written.
func Write(w io.Writer, format graph.ExportFormat, scopeLabel string, nodes []graph.Node, edges []graph.Edge) (int64, error) {
	cw := &countingWriter{w: w}
	var err error
	switch format {
	case graph.ExportDot:
		err = writeDot(cw, scopeLabel, nodes, edges)
	case graph.ExportJSONL:
		err = writeJSONL(cw, nodes, edges)
	default:
		err = fmt.Errorf("%w: %q", graph.ErrUnsupportedExportFormat, format)
	}
	return cw.n, err
}

func writeJSONL(w io.Writer, nodes []graph.Node, edges []graph.Edge) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, n := range nodes {
		rec := nodeRecord{Type: RecordNode, ID: n.ID, Kind: n.Kind, Meta: metaOrNull(n.Meta), LastSeen: n.LastSeen}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding node %s: %w", n.ID, err)
		}
	}
	for _, e := range edges {
		rec := edgeRecord{Type: RecordEdge, ID: e.ID, Src: e.Src, Dst: e.Dst, Rel: e.Rel, Weight: e.Weight, Meta: metaOrNull(e.Meta)}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding edge %s: %w", e.ID, err)
		}
	}
	return nil
}

func writeDot(w io.Writer, scopeLabel string, nodes []graph.Node, edges []graph.Edge) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", dotQuote(scopeLabel))
	for _, n := range nodes {
		fmt.Fprintf(bw, "  %s [label=%s, kind=%s];\n", dotQuote(n.ID), dotQuote(n.ID), dotQuote(n.Kind))
	}
	for _, e := range edges {
		fmt.Fprintf(bw, "  %s -> %s [rel=%s, weight=%s];\n",
			dotQuote(e.Src), dotQuote(e.Dst), dotQuote(e.Rel), strconv.FormatFloat(e.Weight, 'g', -1, 64))
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")

func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

func metaOrNull(m json.RawMessage) json.RawMessage {
	if len(m) == 0 {
		return json.RawMessage("null")
	}
	return m
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
