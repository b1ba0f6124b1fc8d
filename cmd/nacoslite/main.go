package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nacoslite/nacoslite/pkg/api"
	"github.com/nacoslite/nacoslite/pkg/auth"
	"github.com/nacoslite/nacoslite/pkg/configstore"
	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/metrics"
	"github.com/nacoslite/nacoslite/pkg/notify"
	"github.com/nacoslite/nacoslite/pkg/registry"
	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/tenant"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nacoslite",
	Short: "Nacoslite - Standalone Nacos-protocol config and naming server",
	Long: `Nacoslite is a single-binary configuration store and service
registry that speaks the Nacos HTTP protocol, backed by one embedded
SQLite database. Existing Nacos SDKs connect to it unchanged.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Nacoslite version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8848, "HTTP listen port")
	serveCmd.Flags().String("data-dir", "./data", "Directory for the database file")
	serveCmd.Flags().String("context-path", api.DefaultContextPath, "HTTP context path prefix")
	serveCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().Bool("log-json", false, "Emit JSON logs instead of console output")
	serveCmd.Flags().Bool("auth-enabled", false, "Require a bearer token on console endpoints")
	serveCmd.Flags().Duration("subscriber-ttl", time.Minute, "Drop listener records idle longer than this")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the server",
	Long: `Run the config store and service registry in standalone mode.

All state lives in a single SQLite file under the data directory. The
server answers the Nacos v1 HTTP surface under the context path and
exposes Prometheus metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		contextPath, _ := cmd.Flags().GetString("context-path")
		logLevel, _ := cmd.Flags().GetString("log-level")
		logJSON, _ := cmd.Flags().GetBool("log-json")
		authEnabled, _ := cmd.Flags().GetBool("auth-enabled")
		subscriberTTL, _ := cmd.Flags().GetDuration("subscriber-ttl")

		log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
		logger := log.WithComponent("main")
		logger.Info().
			Str("version", Version).
			Str("dataDir", dataDir).
			Int("port", port).
			Msg("starting nacoslite")

		store, err := storage.Open(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open database: %v", err)
		}
		defer store.Close()

		broker := notify.NewBroker()
		poller := notify.NewPoller(store, broker)
		configs := configstore.NewStore(store, broker)
		reg := registry.NewManager(store)
		tenants := tenant.NewManager(store)

		authMgr := auth.NewManager(store)
		if err := authMgr.EnsureDefaultUser(context.Background()); err != nil {
			return fmt.Errorf("failed to seed default user: %v", err)
		}

		pruner := notify.NewPruner(store, subscriberTTL, subscriberTTL)
		pruner.Start()
		defer pruner.Stop()

		sweeper := registry.NewSweeper(store)
		sweeper.Start()
		defer sweeper.Stop()

		statsCtx, stopStats := context.WithCancel(context.Background())
		defer stopStats()
		go statsLoop(statsCtx, store)

		server := api.NewServer(api.Config{
			Store:       store,
			Configs:     configs,
			Registry:    reg,
			Tenants:     tenants,
			Auth:        authMgr,
			Poller:      poller,
			ContextPath: contextPath,
			AuthEnabled: authEnabled,
		})

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(fmt.Sprintf(":%d", port)); err != nil {
				errCh <- fmt.Errorf("http server error: %v", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		case err := <-errCh:
			return err
		}

		// Drain in-flight requests, long polls included.
		ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			return fmt.Errorf("failed to shutdown: %v", err)
		}
		logger.Info().Msg("shutdown complete")
		return nil
	},
}

// statsLoop refreshes the inventory gauges from the database
func statsLoop(ctx context.Context, store storage.Store) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := store.CountConfigs(ctx, ""); err == nil {
				metrics.ConfigsTotal.Set(float64(n))
			}
			if n, err := store.CountServices(ctx); err == nil {
				metrics.ServicesTotal.Set(float64(n))
			}
			if n, err := store.CountInstances(ctx); err == nil {
				metrics.InstancesTotal.Set(float64(n))
			}
		}
	}
}
