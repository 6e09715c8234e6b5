// Command swimd runs a single SWIM failure-detector participant: bind to
// an endpoint, optionally bootstrap against a seed, and probe the cluster
// until terminated.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/swimd/swimd/internal/addr"
	"github.com/swimd/swimd/internal/config"
	"github.com/swimd/swimd/internal/httpdebug"
	"github.com/swimd/swimd/internal/logging"
	"github.com/swimd/swimd/internal/metrics"
	"github.com/swimd/swimd/internal/snapshot"
	"github.com/swimd/swimd/internal/swimnode"
)

var (
	configPath     string
	metricsAddr    string
	snapshotDBPath string
	verbose        bool
)

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /members on this address (disabled if empty)")
	rootCmd.Flags().StringVar(&snapshotDBPath, "snapshot-db", "", "path to an optional sqlite diagnostic snapshot database")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:   "swimd <self-endpoint> [seed-endpoint]",
	Short: "A single-threaded SWIM crash-failure detector",
	Long: `swimd runs one SWIM participant: a single-threaded, poll-driven event
loop that probes peers directly and indirectly, tracks RTT, and marks
unresponsive members Suspect then Dead. There is no incarnation mechanism —
Dead is terminal within a process lifetime.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if snapshotDBPath != "" {
		cfg.Snapshot.DBPath = snapshotDBPath
	}
	if envLevel := os.Getenv("SWIMD_LOG_LEVEL"); envLevel != "" {
		cfg.Logging.Level = envLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	self, err := addr.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parse self endpoint: %w", err)
	}

	var seed *addr.Endpoint
	if len(args) == 2 {
		s, err := addr.Parse(args[1])
		if err != nil {
			return fmt.Errorf("parse seed endpoint: %w", err)
		}
		seed = &s
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level))
	runID := uuid.New().String()
	logger.Infof("starting swimd run=%s self=%s", runID, self)

	var exporter *metrics.Exporter
	var onTick func(swimnode.Snapshot)

	if cfg.Metrics.Addr != "" {
		exporter = metrics.NewExporter()
		cache := httpdebug.NewCache()
		onTick = cache.Store

		srv := httpdebug.NewServer(cache, exporter.Registry())
		httpServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: srv.Handler()}
		go func() {
			logger.Infof("debug http surface listening on %s", cfg.Metrics.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Infof("debug http server stopped: %v", err)
			}
		}()
		defer httpServer.Close()
	}

	var store *snapshot.Store
	if cfg.Snapshot.DBPath != "" {
		store, err = snapshot.Open(cfg.Snapshot.DBPath, runID)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer store.Close()
	}

	node, err := swimnode.New(swimnode.Config{
		Self:               self,
		Seed:               seed,
		TickInterval:       cfg.TickInterval(),
		ProbeTimeout:       cfg.ProbeTimeout(),
		SuspectTimeout:     cfg.SuspectTimeout(),
		IndirectProbeCount: cfg.Protocol.IndirectProbeCount,
		Logger:             logger,
		Metrics:            exporter,
		Snapshot:           store,
		OnTick:             onTick,
	})
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	defer node.Close()

	logger.Infof("bound to %s", node.LocalEndpoint())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infof("shutdown signal received, stopping")
		cancel()
	}()

	return node.Run(ctx)
}
