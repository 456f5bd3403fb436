package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/francescomaiomascio/yai/internal/controlplane"
	"github.com/francescomaiomascio/yai/internal/graphrpc"
)

var serveSocket string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local graph stores on the control-plane socket",
	Long: `Runs until interrupted. Other processes reach the stores by setting
graph.backend = "remote" with the same socket path.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		socket := cfg.Graph.Socket
		if serveSocket != "" {
			socket = serveSocket
		}
		pool := OpenPool()
		defer func() {
			if err := pool.Close(); err != nil {
				logger.Warn("closing stores", zap.Error(err))
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := controlplane.NewServer(graphrpc.NewHandler(pool, logger), logger)
		return srv.ListenAndServe(ctx, socket)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveSocket, "socket", "", "Socket path (default graph.socket from config)")
	rootCmd.AddCommand(serveCmd)
}
