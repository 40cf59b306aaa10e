package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/depthls/internal/config"
	"github.com/3leaps/depthls/internal/observability"
	"github.com/3leaps/depthls/internal/source"
	"github.com/3leaps/depthls/pkg/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <uri>",
	Short: "Record a namespace listing for offline depth listings",
	Long: `Record every object under <uri> into a SQLite snapshot database.

The snapshot is keyed by the namespace root (s3://bucket/, file:///dir, ...).
'depthls list --snapshot <db>' and the server's source=snapshot mode then
expand against the latest completed snapshot without touching the backend.

Examples:
  depthls snapshot s3://bucket/
  depthls snapshot s3://bucket/data/ --db ./data.db
  depthls snapshot file:///srv/archive --db /tmp/archive.db`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshotCmd,
}

var (
	snapshotDB       string
	snapshotPageSize int
	snapshotRegion   string
	snapshotProfile  string
	snapshotEndpoint string
	snapshotInsecure bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	f := snapshotCmd.Flags()
	f.StringVar(&snapshotDB, "db", "", "Snapshot database (default: snapshot.path or the per-user data dir)")
	f.IntVar(&snapshotPageSize, "page-size", 1000, "Keys requested per listing page")
	f.StringVarP(&snapshotRegion, "region", "r", "", "AWS region")
	f.StringVarP(&snapshotProfile, "profile", "p", "", "AWS profile")
	f.StringVar(&snapshotEndpoint, "endpoint", "", "Custom S3 endpoint, or the MinIO server for minio:// URIs")
	f.BoolVar(&snapshotInsecure, "insecure", false, "Use plain HTTP towards the MinIO endpoint")
}

// snapshotDBPath picks the database: flag, then config, then the default.
func snapshotDBPath(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg != nil && cfg.Snapshot.Path != "" {
		return cfg.Snapshot.Path
	}
	return source.DefaultSnapshotPath()
}

func runSnapshotCmd(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	opts := source.Options{PageSize: snapshotPageSize, MinIOInsecure: snapshotInsecure}
	if cfg != nil {
		opts.Region, opts.Endpoint, opts.Profile = cfg.S3.Region, cfg.S3.Endpoint, cfg.S3.Profile
	}
	if cmd.Flags().Changed("region") {
		opts.Region = snapshotRegion
	}
	if cmd.Flags().Changed("profile") {
		opts.Profile = snapshotProfile
	}
	if cmd.Flags().Changed("endpoint") {
		opts.Endpoint = snapshotEndpoint
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSnapshot(ctx, args[0], snapshotDBPath(snapshotDB, cfg), opts, cmd.OutOrStdout())
}

func runSnapshot(ctx context.Context, rawURI, dbPath string, opts source.Options, out io.Writer) error {
	log := observability.CLILogger

	u, err := source.ParseURI(rawURI)
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid URI", err)
	}

	src, err := source.Open(ctx, u, opts)
	if err != nil {
		return exitError(openExitCode(err), "Failed to open "+u.String(), err)
	}
	defer func() { _ = src.Close() }()

	store, err := snapshot.Open(ctx, snapshot.Config{Path: dbPath})
	if err != nil {
		return exitError(exitFileWriteError, "Failed to open snapshot database", err)
	}
	defer func() { _ = store.Close() }()

	prefix := ""
	if !src.Prefix().IsRoot() {
		prefix = src.Prefix().ListPrefix()
	}

	start := time.Now()
	lastLog := start
	snap, err := store.Capture(ctx, src.Provider, snapshot.CaptureOptions{
		BaseURI:      u.Root(),
		ProviderName: src.Kind.String(),
		Prefix:       prefix,
		PageSize:     opts.PageSize,
		OnPage: func(recorded int64) {
			if time.Since(lastLog) > 10*time.Second {
				lastLog = time.Now()
				log.Info("Snapshot progress", zap.Int64("objects", recorded))
			}
		},
	})
	if err != nil {
		log.Error("Snapshot failed", zap.String("uri", u.String()), zap.Error(err))
		return expandFailed(err)
	}

	log.Info("Snapshot complete",
		zap.String("snapshot_id", snap.ID),
		zap.String("db", dbPath),
		zap.Int64("objects", snap.ObjectCount),
		zap.Duration("duration", time.Since(start)),
	)
	_, err = fmt.Fprintf(out, "snapshot %s: %d objects under %s recorded in %s\n", snap.ID, snap.ObjectCount, u.String(), dbPath)
	return err
}
