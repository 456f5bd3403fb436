package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/francescomaiomascio/yai/internal/graph"
	"github.com/francescomaiomascio/yai/internal/ui"
)

var (
	nbDepth    int
	nbRels     []string
	nbKinds    []string
	nbDirected bool
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <id>",
	Short: "Walk the graph breadth-first from a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := ResolveScope()
		if err != nil {
			return err
		}
		facade, done := OpenFacade()
		defer done()

		sub, err := facade.Neighbors(cmd.Context(), scope, args[0], nbDepth, graph.NeighborFilters{
			Rels:     nbRels,
			Kinds:    nbKinds,
			Directed: nbDirected,
		})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), sub)
		}
		printSubGraph(cmd.OutOrStdout(), sub)
		return nil
	},
}

func init() {
	neighborsCmd.Flags().IntVar(&nbDepth, "depth", 1, fmt.Sprintf("Hops to walk (max %d)", graph.MaxTraversalDepth))
	neighborsCmd.Flags().StringSliceVar(&nbRels, "rels", nil, "Only follow these relations (comma-separated)")
	neighborsCmd.Flags().StringSliceVar(&nbKinds, "kinds", nil, "Only enter nodes of these kinds (comma-separated)")
	neighborsCmd.Flags().BoolVar(&nbDirected, "directed", false, "Follow edges from src to dst only")
	rootCmd.AddCommand(neighborsCmd)
}

// printSubGraph lists nodes (with scores when present) then edges.
func printSubGraph(w io.Writer, sub *graph.SubGraph) {
	st := ui.NewStyle()
	fmt.Fprintf(w, "nodes: %d\n", len(sub.Nodes))
	for _, n := range sub.Nodes {
		if score, ok := sub.Scores[n.ID]; ok {
			fmt.Fprintf(w, "node %s kind=%s score=%.4f\n", st.ID(n.ID), n.Kind, score)
			continue
		}
		fmt.Fprintf(w, "node %s kind=%s\n", st.ID(n.ID), n.Kind)
	}
	fmt.Fprintf(w, "edges: %d\n", len(sub.Edges))
	for _, e := range sub.Edges {
		fmt.Fprintf(w, "edge %s -> %s rel=%s w=%g\n", st.ID(e.Src), st.ID(e.Dst), e.Rel, e.Weight)
	}
}
