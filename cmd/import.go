package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/francescomaiomascio/yai/internal/export"
)

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl|->",
	Short: "Load a JSONL export into the scope",
	Long: `Reads records written by "export jsonl" and upserts them. Node last_seen
stamps are preserved. Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := ResolveScope()
		if err != nil {
			return err
		}

		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer f.Close()
			r = f
		}
		sub, err := export.ReadJSONL(r)
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		facade, done := OpenFacade()
		defer done()
		res, err := facade.Import(cmd.Context(), scope, sub)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d nodes, %d edges into %s\n", res.Nodes, res.Edges, scope)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
