package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/francescomaiomascio/yai/internal/graph"
	"github.com/francescomaiomascio/yai/internal/idgen"
	"github.com/francescomaiomascio/yai/internal/ui"
)

var (
	nodeKind  string
	nodeMeta  string
	nodeLimit int
)

var addNodeCmd = &cobra.Command{
	Use:   "add-node [id]",
	Short: "Store or replace a node (id generated when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := ResolveScope()
		if err != nil {
			return err
		}
		id := ""
		if len(args) == 1 {
			id = args[0]
		} else if id, err = idgen.ForKind(nodeKind); err != nil {
			return err
		}

		facade, done := OpenFacade()
		defer done()
		node, err := facade.PutNode(cmd.Context(), scope, graph.Node{
			ID:   id,
			Kind: nodeKind,
			Meta: json.RawMessage(nodeMeta),
		})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), node)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok node id=%s\n", ui.NewStyle().ID(node.ID))
		return nil
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node <id>",
	Short: "Show a node with its incoming and outgoing edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := ResolveScope()
		if err != nil {
			return err
		}
		facade, done := OpenFacade()
		defer done()

		detail, err := facade.NodeDetail(cmd.Context(), scope, args[0], nodeLimit)
		if err != nil {
			return err
		}
		if detail == nil {
			return fmt.Errorf("node not found: %s", args[0])
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), detail)
		}
		return printNodeDetail(cmd.OutOrStdout(), detail)
	},
}

func init() {
	addNodeCmd.Flags().StringVar(&nodeKind, "kind", "", "Node kind (category)")
	addNodeCmd.Flags().StringVar(&nodeMeta, "meta", "{}", "Node attributes as a JSON document")
	nodeCmd.Flags().IntVar(&nodeLimit, "limit", 20, "Max edges listed per direction (0 = all)")
	rootCmd.AddCommand(addNodeCmd, nodeCmd)
}

func printNodeDetail(w io.Writer, d *graph.NodeDetail) error {
	st := ui.NewStyle()
	if err := printJSON(w, d.Node); err != nil {
		return err
	}
	fmt.Fprintf(w, "in_edges: %d\n", len(d.Incoming))
	for _, e := range d.Incoming {
		fmt.Fprintf(w, "in  %s <- %s rel=%s w=%g\n", st.ID(e.Dst), st.ID(e.Src), e.Rel, e.Weight)
	}
	fmt.Fprintf(w, "out_edges: %d\n", len(d.Outgoing))
	for _, e := range d.Outgoing {
		fmt.Fprintf(w, "out %s -> %s rel=%s w=%g\n", st.ID(e.Src), st.ID(e.Dst), e.Rel, e.Weight)
	}
	return nil
}
