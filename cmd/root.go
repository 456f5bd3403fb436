package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/francescomaiomascio/yai/internal/config"
	"github.com/francescomaiomascio/yai/internal/controlplane"
	"github.com/francescomaiomascio/yai/internal/db"
	"github.com/francescomaiomascio/yai/internal/events"
	"github.com/francescomaiomascio/yai/internal/export"
	"github.com/francescomaiomascio/yai/internal/graph"
	"github.com/francescomaiomascio/yai/internal/graphrpc"
	"github.com/francescomaiomascio/yai/internal/observability"
)

var (
	configPath string
	wsFlag     string
	globalFlag bool
	jsonOut    bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "yai",
	Short:         "Scoped graph memory: store, traverse and rank associations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		l, err := observability.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default <root>/config.toml)")
	rootCmd.PersistentFlags().StringVar(&wsFlag, "ws", "", "Workspace id (default from config)")
	rootCmd.PersistentFlags().BoolVar(&globalFlag, "global", false, "Use the global scope instead of a workspace")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")
}

// ResolveScope applies --ws/--global over the configured workspace.
func ResolveScope() (graph.Scope, error) {
	return graph.ResolveScope(wsFlag, globalFlag, cfg.Workspace)
}

// OpenFacade wires the configured backend, event publisher and logger into a
// facade. The returned func releases everything it opened.
func OpenFacade() (*graph.Facade, func()) {
	publisher, err := events.New(cfg.Events.NATSURL)
	if err != nil {
		logger.Warn("graph events disabled", zap.Error(err))
		publisher = &events.NoopPublisher{}
	}

	var provider graph.BackendProvider
	var closeProvider func() error
	switch cfg.Graph.Backend {
	case config.BackendRemote:
		client := controlplane.NewClient(cfg.Graph.Socket, cfg.Graph.RPCTimeout.Duration)
		provider = graphrpc.NewProvider(client)
		closeProvider = func() error { return nil }
	default:
		pool := OpenPool()
		provider = pool
		closeProvider = pool.Close
	}

	facade := graph.NewFacade(provider,
		graph.WithLogger(logger),
		graph.WithPublisher(publisher))
	cleanup := func() {
		if err := closeProvider(); err != nil {
			logger.Warn("closing graph backend", zap.Error(err))
		}
		if err := publisher.Close(); err != nil {
			logger.Warn("closing event publisher", zap.Error(err))
		}
	}
	return facade, cleanup
}

// OpenPool opens the local per-scope SQLite stores under the configured root.
func OpenPool() *db.Pool {
	return db.NewPool(cfg.Root,
		db.WithLogger(logger),
		db.WithS3(export.S3Options{Region: cfg.Export.S3Region, Endpoint: cfg.Export.S3Endpoint}))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
