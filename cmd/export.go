package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <dot|jsonl> <dest>",
	Short: "Write the whole scope to a file or s3://bucket/key",
	Long: `dest is a local path or an s3://bucket/key url. With the remote backend
the path is resolved on the serving side.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := ResolveScope()
		if err != nil {
			return err
		}
		facade, done := OpenFacade()
		defer done()

		n, err := facade.Export(cmd.Context(), scope, args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), map[string]any{"bytes": n, "dest": args[1], "format": args[0]})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d bytes to %s\n", n, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
