package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/francescomaiomascio/yai/internal/graph"
	"github.com/francescomaiomascio/yai/internal/ui"
)

var (
	edgeRel    string
	edgeWeight float64
	edgeMeta   string
)

var addEdgeCmd = &cobra.Command{
	Use:   "add-edge <src> <dst>",
	Short: "Store or replace the edge rel(src, dst)",
	Long: `Edges are identified by (rel, src, dst); adding the same triple again
replaces its weight and meta. Endpoints do not need to exist yet.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if edgeRel == "" {
			return fmt.Errorf("--rel is required")
		}
		scope, err := ResolveScope()
		if err != nil {
			return err
		}
		facade, done := OpenFacade()
		defer done()

		edge, err := facade.PutEdge(cmd.Context(), scope, graph.Edge{
			Src:    args[0],
			Dst:    args[1],
			Rel:    edgeRel,
			Weight: edgeWeight,
			Meta:   json.RawMessage(edgeMeta),
		})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), edge)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok edge id=%s\n", ui.NewStyle().ID(edge.ID))
		return nil
	},
}

func init() {
	addEdgeCmd.Flags().StringVar(&edgeRel, "rel", "", "Relation label")
	addEdgeCmd.Flags().Float64Var(&edgeWeight, "weight", 1.0, "Association strength used by activation")
	addEdgeCmd.Flags().StringVar(&edgeMeta, "meta", "", "Edge attributes as a JSON document (default null)")
	rootCmd.AddCommand(addEdgeCmd)
}
