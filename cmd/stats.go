package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count nodes and edges in the scope",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := ResolveScope()
		if err != nil {
			return err
		}
		facade, done := OpenFacade()
		defer done()

		st, err := facade.Stats(cmd.Context(), scope)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), st)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "scope: %s\nbackend: %s\nnodes: %d\nedges: %d\n", st.Scope, st.Backend, st.Nodes, st.Edges)
		kinds := make([]string, 0, len(st.Kinds))
		for k := range st.Kinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "kind.%s: %d\n", k, st.Kinds[k])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
