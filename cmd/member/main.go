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
	"github.com/netring-io/netring/pkg/member"
	"github.com/netring-io/netring/pkg/supervisor"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	stateDir   string
)

var rootCmd = &cobra.Command{
	Use:   "netring-member",
	Short: "Run a netring member process",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the member's background tasks and local HTTP server",
	RunE:  runMember,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the member's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "config-check",
	Short: "Load and validate the member configuration without starting the process",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadMember(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("configuration ok: location=%s registry=%s server=%s:%d\n",
			cfg.Location, cfg.Registry.URL, cfg.Server.Host, cfg.Server.Port)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to member config YAML")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", ".", "directory holding the persisted instance id file")
	rootCmd.AddCommand(runCmd, versionCmd, configCheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMember(cmd *cobra.Command, args []string) error {
	logger, err := logging.NewColoredLogger(logging.ComponentMember, true)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadMember(configPath)
	if err != nil {
		logger.ComponentError(logging.ComponentMember, "failed to load configuration", zap.Error(err))
		os.Exit(1)
	}

	agent, err := member.NewAgent(cfg, stateDir, version, logger.Logger)
	if err != nil {
		logger.ComponentError(logging.ComponentMember, "failed to build agent", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := supervisor.New(ctx, logger.Logger)
	agent.Start(ctx, sup)

	srv := member.NewServer(agent)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.ComponentInfo(logging.ComponentMember, "member HTTP server starting",
			zap.String("addr", httpServer.Addr),
			zap.String("instance_id", agent.InstanceID()),
			zap.String("location", cfg.Location),
			zap.String("host_ip", agent.HostIP()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.ComponentError(logging.ComponentMember, "HTTP server error", zap.Error(err))
		cancel()
		return err
	case <-quit:
		logger.ComponentInfo(logging.ComponentMember, "shutting down member")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.ComponentError(logging.ComponentMember, "HTTP server shutdown error", zap.Error(err))
	}

	agent.Shutdown(context.Background())
	cancel()
	logger.ComponentInfo(logging.ComponentMember, "member shutdown complete")
	return nil
}
