package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/netring-io/netring/pkg/config"
	"github.com/netring-io/netring/pkg/logging"
	netringolric "github.com/netring-io/netring/pkg/olric"
	"github.com/netring-io/netring/pkg/registry"
	"github.com/netring-io/netring/pkg/store"
	"github.com/netring-io/netring/pkg/supervisor"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "netring-registry",
	Short: "Run netring's membership registry",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the registry HTTP server and background tasks",
	RunE:  runRegistry,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the registry's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "config-check",
	Short: "Load and validate the registry configuration without starting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRegistry(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("configuration ok: store=%s:%d server=%s:%d\n",
			cfg.Store.Host, cfg.Store.Port, cfg.Server.Host, cfg.Server.Port)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to registry config YAML")
	rootCmd.AddCommand(runCmd, versionCmd, configCheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRegistry(cmd *cobra.Command, args []string) error {
	logger, err := logging.NewColoredLogger(logging.ComponentRegistry, true)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadRegistry(configPath)
	if err != nil {
		logger.ComponentError(logging.ComponentRegistry, "failed to load configuration", zap.Error(err))
		os.Exit(1)
	}

	olricClient, err := netringolric.NewClient(netringolric.Config{
		Servers: []string{fmt.Sprintf("%s:%d", cfg.Store.Host, cfg.Store.Port)},
	}, logger.Logger)
	if err != nil {
		logger.ComponentError(logging.ComponentRegistry, "failed to connect to store", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := olricClient.Close(closeCtx); err != nil {
			logger.ComponentError(logging.ComponentRegistry, "store connection close error", zap.Error(err))
		}
	}()

	s, err := store.NewOlric(olricClient, "netring")
	if err != nil {
		logger.ComponentError(logging.ComponentRegistry, "failed to open member directory dmap", zap.Error(err))
		os.Exit(1)
	}

	dir := registry.NewDirectory(
		s,
		logger.Logger,
		cfg.MemberTTL(),
		cfg.DeregisteredGraceDuration(),
		30*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := supervisor.New(ctx, logger.Logger)
	dir.StartCleanupTask(sup, cfg.CleanupIntervalDuration())

	expectedLocations, hasExpected := loadExpectedLocations(cfg, logger)
	if cfg.ExpectedMembers.EnableMissingDetection {
		startExpectedLocationAnalysisTask(ctx, sup, dir, cfg, logger)
	}

	srv := registry.NewServer(dir, logger.Logger, sup, cfg.AdminToken, func() (config.ExpectedLocationsFile, bool) {
		return expectedLocations, hasExpected
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.ComponentInfo(logging.ComponentRegistry, "registry HTTP server starting",
			zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.ComponentError(logging.ComponentRegistry, "HTTP server error", zap.Error(err))
		cancel()
		return err
	case <-quit:
		logger.ComponentInfo(logging.ComponentRegistry, "shutting down registry")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.ComponentError(logging.ComponentRegistry, "HTTP server shutdown error", zap.Error(err))
	}

	cancel()
	sup.Stop()
	logger.ComponentInfo(logging.ComponentRegistry, "registry shutdown complete")
	return nil
}

func loadExpectedLocations(cfg config.Registry, logger *logging.ColoredLogger) (config.ExpectedLocationsFile, bool) {
	if !cfg.ExpectedMembers.EnableMissingDetection {
		return config.ExpectedLocationsFile{}, false
	}
	locations, err := config.LoadExpectedLocations(cfg.ExpectedMembers.ConfigFile)
	if err != nil {
		logger.ComponentError(logging.ComponentRegistry, "failed to load expected-locations config", zap.Error(err))
		os.Exit(1)
	}
	return locations, true
}

// startExpectedLocationAnalysisTask runs the expected-location analysis
// on its own interval, purely to keep the location-grace tracker warm;
// the analysis itself is also computed on demand by
// /members_with_analysis.
func startExpectedLocationAnalysisTask(ctx context.Context, sup *supervisor.Supervisor, dir *registry.Directory, cfg config.Registry, logger *logging.ColoredLogger) {
	interval := time.Duration(cfg.ExpectedMembers.MissingCheckInterval) * time.Second
	expected, err := config.LoadExpectedLocations(cfg.ExpectedMembers.ConfigFile)
	if err != nil {
		logger.ComponentError(logging.ComponentRegistry, "failed to load expected-locations config for analysis task", zap.Error(err))
		os.Exit(1)
	}

	sup.Go("expected-location-analysis", func(ctx context.Context, tick func()) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				members, err := dir.Members(ctx)
				if err != nil {
					return err
				}
				dir.Analyze(members, expected, time.Now())
				tick()
			}
		}
	})
}
