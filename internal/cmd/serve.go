package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/depthls/internal/config"
	"github.com/3leaps/depthls/internal/observability"
	"github.com/3leaps/depthls/internal/server"
	"github.com/3leaps/depthls/internal/server/handlers"
	"github.com/3leaps/depthls/internal/source"
	"github.com/3leaps/depthls/pkg/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve depth-limited listings over HTTP",
	Long: `Start an HTTP server exposing GET /v1/list alongside health and version
endpoints.

  GET /v1/list?uri=s3://bucket/data/&depth=2&sort=true
  GET /v1/list?uri=file:///srv/archive&depth=1&source=snapshot

Examples:
  depthls serve
  depthls serve --host 0.0.0.0 --port 9000 --snapshot /var/lib/depthls/snapshots.db`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost     string
	servePort     int
	serveSnapshot string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default: server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default: server.port)")
	serveCmd.Flags().StringVar(&serveSnapshot, "snapshot", "", "Snapshot database enabling source=snapshot")
}

// signalHealthChecker reports healthy while the process is not shutting down.
type signalHealthChecker struct{}

func (signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil
}

// identityHealthChecker verifies the binary's identity constants are set.
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case c.binaryName == "":
		return errors.New("identity check failed: missing binary name")
	case c.envPrefix == "":
		return errors.New("identity check failed: missing env prefix")
	case c.configName == "":
		return errors.New("identity check failed: missing config name")
	}
	return nil
}

// snapshotHealthChecker verifies the snapshot database answers queries.
type snapshotHealthChecker struct {
	path string
}

func (c snapshotHealthChecker) CheckHealth(ctx context.Context) error {
	store, err := snapshot.Open(ctx, snapshot.Config{Path: c.path})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	_, err = snapshot.Version(ctx, store.DB())
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	if cfg == nil {
		return exitError(exitInvalidArgument, "Configuration not loaded", errors.New("config.Load was not called"))
	}

	host, port := cfg.Server.Host, cfg.Server.Port
	if cmd.Flags().Changed("host") {
		host = serveHost
	}
	if cmd.Flags().Changed("port") {
		port = servePort
	}
	if port < 0 || port > 65535 {
		return exitError(exitInvalidArgument, "Invalid --port value", fmt.Errorf("port out of range: %d", port))
	}
	snapshotPath := cfg.Snapshot.Path
	if serveSnapshot != "" {
		snapshotPath = serveSnapshot
	}

	handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()
	hm.RegisterChecker("signal", signalHealthChecker{})
	hm.RegisterChecker("identity", identityHealthChecker{
		binaryName: binaryName,
		envPrefix:  config.EnvPrefix,
		configName: configName,
	})
	if snapshotPath != "" {
		hm.RegisterChecker("snapshot", snapshotHealthChecker{path: snapshotPath})
	}

	srv := server.New(host, port,
		server.WithServerConfig(cfg.Server),
		server.WithListConfig(handlers.ListConfig{
			Options: source.Options{
				Region:     cfg.S3.Region,
				Endpoint:   cfg.S3.Endpoint,
				Profile:    cfg.S3.Profile,
				PageSize:   cfg.Expand.PageSize,
				SnapshotDB: snapshotPath,
			},
			MaxDepth:    cfg.Server.MaxDepth,
			MaxInFlight: cfg.Expand.MaxInFlight,
			RateLimit:   cfg.Expand.RateLimit,
			PageSize:    cfg.Expand.PageSize,
			MaxPages:    cfg.Expand.MaxPages,
			Timeout:     cfg.Expand.Timeout,
		}),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.CLILogger.Info("Starting server",
		zap.String("host", host),
		zap.Int("port", port),
		zap.String("version", versionInfo.Version),
		zap.Bool("snapshot", snapshotPath != ""),
	)
	if err := srv.Start(ctx); err != nil {
		return exitError(exitServiceError, "Server failed", err)
	}
	return nil
}
