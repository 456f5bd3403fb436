package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/francescomaiomascio/yai/internal/ui"
)

var queryK int

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Rank the memory around a node id by spreading activation",
	Long: `If text is a stored node id it is the only seed. Otherwise the nodes one
hop away from text are used as seeds, up to k of them. Activation then returns
the top 2k nodes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := ResolveScope()
		if err != nil {
			return err
		}
		facade, done := OpenFacade()
		defer done()

		res, err := facade.Query(cmd.Context(), scope, args[0], queryK)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), res)
		}
		w := cmd.OutOrStdout()
		if len(res.Seeds) == 0 {
			fmt.Fprintf(w, "nodes: 0\nedges: 0\n%s no direct seed match for text=%s; backend=%s\n",
				ui.NewStyle().Dim("note:"), args[0], res.Backend)
			return nil
		}
		printSubGraph(w, res.Result)
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryK, "k", 5, "Max seeds; the result holds up to 2k nodes")
	rootCmd.AddCommand(queryCmd)
}
