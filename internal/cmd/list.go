package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/depthls/internal/config"
	"github.com/3leaps/depthls/internal/observability"
	"github.com/3leaps/depthls/internal/source"
	"github.com/3leaps/depthls/pkg/expand"
	"github.com/3leaps/depthls/pkg/listing"
	"github.com/3leaps/depthls/pkg/match"
	"github.com/3leaps/depthls/pkg/output"
	"github.com/3leaps/depthls/pkg/provider"
)

// Output formats.
const (
	formatJSONL = "jsonl"
	formatTable = "table"
	formatYAML  = "yaml"
)

var listCmd = &cobra.Command{
	Use:   "list <uri>",
	Short: "List the entries exactly N levels below a prefix",
	Long: `List the objects and common prefixes found exactly --depth levels below
the prefix named by <uri>. Depth 0 is a plain one-level listing.

Only the terminal level is reported; intermediate levels are descended
through and not printed. Output is unordered unless --sort is given.

Examples:
  depthls list s3://bucket/data/ --depth 2
  depthls list minio://bucket/logs --endpoint http://localhost:9000 --depth 1
  depthls list file:///srv/archive --depth 3 --output table --sort
  depthls list s3://bucket/ --depth 2 --snapshot ~/.local/share/depthls/snapshots.db`,
	Args: cobra.ExactArgs(1),
	RunE: runListCmd,
}

// listOptions are the resolved settings of one list run.
type listOptions struct {
	Depth         int
	Parallel      int
	RateLimit     float64
	PageSize      int
	MaxPages      int
	Timeout       time.Duration
	Sort          bool
	Output        string
	Includes      []string
	Excludes      []string
	IncludeHidden bool
	Filter        *match.FilterConfig
	Source        source.Options
}

var (
	listDepth         int
	listParallel      int
	listRateLimit     float64
	listPageSize      int
	listMaxPages      int
	listTimeout       time.Duration
	listSort          bool
	listOutput        string
	listIncludes      []string
	listExcludes      []string
	listIncludeHidden bool
	listMinSize       string
	listMaxSize       string
	listAfter         string
	listBefore        string
	listKeyRegex      string
	listSnapshot      string
	listRegion        string
	listProfile       string
	listEndpoint      string
	listInsecure      bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	f := listCmd.Flags()
	f.IntVarP(&listDepth, "depth", "d", 0, "Levels to descend below the prefix (0 = one-level listing)")
	f.IntVar(&listParallel, "parallel", expand.DefaultMaxInFlight, "Max concurrent one-level listings")
	f.Float64Var(&listRateLimit, "rate-limit", 0, "Max one-level listings per second (0 = unlimited)")
	f.IntVar(&listPageSize, "page-size", 1000, "Keys requested per listing page")
	f.IntVar(&listMaxPages, "max-pages", 10_000, "Max pages for a single prefix before failing")
	f.DurationVar(&listTimeout, "timeout", 10*time.Minute, "Overall timeout (0 = none)")
	f.BoolVar(&listSort, "sort", false, "Sort entries by path (buffers the whole result)")
	f.StringVarP(&listOutput, "output", "o", formatJSONL, "Output format (jsonl|table|yaml)")
	f.StringArrayVar(&listIncludes, "include", nil, "Report only entries matching this glob (repeatable)")
	f.StringArrayVar(&listExcludes, "exclude", nil, "Drop entries matching this glob (repeatable)")
	f.BoolVar(&listIncludeHidden, "include-hidden", true, "Report entries with a path segment starting with '.'")
	f.StringVar(&listMinSize, "min-size", "", "Report only objects at least this large (e.g. 1KB, 10MiB)")
	f.StringVar(&listMaxSize, "max-size", "", "Report only objects at most this large")
	f.StringVar(&listAfter, "modified-after", "", "Report only objects modified at or after this time (ISO 8601)")
	f.StringVar(&listBefore, "modified-before", "", "Report only objects modified before this time (ISO 8601)")
	f.StringVar(&listKeyRegex, "key-regex", "", "Report only objects whose key matches this regex")
	f.StringVar(&listSnapshot, "snapshot", "", "Serve listings from the latest snapshot in this database")
	f.StringVarP(&listRegion, "region", "r", "", "AWS region")
	f.StringVarP(&listProfile, "profile", "p", "", "AWS profile")
	f.StringVar(&listEndpoint, "endpoint", "", "Custom S3 endpoint, or the MinIO server for minio:// URIs")
	f.BoolVar(&listInsecure, "insecure", false, "Use plain HTTP towards the MinIO endpoint")
}

// resolveListOptions merges flags over the loaded configuration. A flag wins
// only when it was set explicitly.
func resolveListOptions(cmd *cobra.Command, cfg *config.Config) (listOptions, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	changed := cmd.Flags().Changed

	opts := listOptions{
		Depth:         cfg.Expand.Depth,
		Parallel:      cfg.Expand.MaxInFlight,
		RateLimit:     cfg.Expand.RateLimit,
		PageSize:      cfg.Expand.PageSize,
		MaxPages:      cfg.Expand.MaxPages,
		Timeout:       cfg.Expand.Timeout,
		Sort:          cfg.Expand.Sort,
		Output:        listOutput,
		Includes:      listIncludes,
		Excludes:      listExcludes,
		IncludeHidden: listIncludeHidden,
		Source: source.Options{
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			Profile:       cfg.S3.Profile,
			MinIOInsecure: listInsecure,
			SnapshotDB:    listSnapshot,
		},
	}
	if changed("depth") {
		opts.Depth = listDepth
	}
	if changed("parallel") {
		opts.Parallel = listParallel
	}
	if changed("rate-limit") {
		opts.RateLimit = listRateLimit
	}
	if changed("page-size") {
		opts.PageSize = listPageSize
	}
	if changed("max-pages") {
		opts.MaxPages = listMaxPages
	}
	if changed("timeout") {
		opts.Timeout = listTimeout
	}
	if changed("sort") {
		opts.Sort = listSort
	}
	if changed("region") {
		opts.Source.Region = listRegion
	}
	if changed("profile") {
		opts.Source.Profile = listProfile
	}
	if changed("endpoint") {
		opts.Source.Endpoint = listEndpoint
	}
	opts.Source.PageSize = opts.PageSize

	if listMinSize != "" || listMaxSize != "" || listAfter != "" || listBefore != "" || listKeyRegex != "" {
		opts.Filter = &match.FilterConfig{KeyRegex: listKeyRegex}
		if listMinSize != "" || listMaxSize != "" {
			opts.Filter.Size = &match.SizeFilterConfig{Min: listMinSize, Max: listMaxSize}
		}
		if listAfter != "" || listBefore != "" {
			opts.Filter.Modified = &match.DateFilterConfig{After: listAfter, Before: listBefore}
		}
	}

	if opts.Depth < 0 {
		return opts, fmt.Errorf("depth must be >= 0, got %d", opts.Depth)
	}
	if opts.Parallel < 1 {
		return opts, fmt.Errorf("parallel must be >= 1, got %d", opts.Parallel)
	}
	if opts.RateLimit < 0 {
		return opts, fmt.Errorf("rate-limit must be >= 0")
	}
	switch opts.Output {
	case formatJSONL, formatTable, formatYAML:
	default:
		return opts, fmt.Errorf("output must be one of jsonl, table, yaml; got %q", opts.Output)
	}
	return opts, nil
}

func runListCmd(cmd *cobra.Command, args []string) error {
	opts, err := resolveListOptions(cmd, config.GetConfig())
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid flags", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runList(ctx, args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// runList expands uri and writes the terminal level to out.
func runList(ctx context.Context, rawURI string, opts listOptions, out, errOut io.Writer) error {
	log := observability.CLILogger

	u, err := source.ParseURI(rawURI)
	if err != nil {
		log.Error("Invalid URI", zap.String("uri", rawURI), zap.Error(err))
		return exitError(exitInvalidArgument, "Invalid URI", err)
	}

	scope, err := match.New(match.Config{
		Includes:      opts.Includes,
		Excludes:      opts.Excludes,
		IncludeHidden: opts.IncludeHidden,
		Filter:        opts.Filter,
	})
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid include/exclude/filter", err)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	src, err := source.Open(ctx, u, opts.Source)
	if err != nil {
		log.Error("Failed to open source", zap.String("uri", u.String()), zap.Error(err))
		return exitError(openExitCode(err), "Failed to open "+u.String(), err)
	}
	defer func() { _ = src.Close() }()
	if src.Snapshot != nil {
		log.Info("Serving from snapshot",
			zap.String("snapshot_id", src.Snapshot.ID),
			zap.Time("created_at", src.Snapshot.CreatedAt),
		)
	}

	adapter := listing.NewDelimiterAdapter(src.Provider)
	adapter.PageSize = opts.PageSize
	adapter.MaxPages = opts.MaxPages

	e := expand.New(adapter, expand.Config{
		MaxInFlight: opts.Parallel,
		RateLimit:   opts.RateLimit,
		Logger:      log,
	})

	log.Debug("Starting expansion",
		zap.String("uri", u.String()),
		zap.Int("depth", opts.Depth),
		zap.Int("parallel", opts.Parallel),
		zap.String("provider", src.Kind.String()),
	)

	start := time.Now()
	if opts.Output == formatJSONL && !opts.Sort {
		return streamJSONL(ctx, e, src, scope, opts, out, start)
	}

	res, err := e.Expand(ctx, src.Prefix(), opts.Depth)
	if err != nil {
		if opts.Output == formatJSONL {
			w := output.NewJSONLWriter(out, uuid.New().String(), src.Kind.String())
			return finishJSONL(w, src, opts, e.Stats(), 0, start, err)
		}
		return expandFailed(err)
	}
	if !scope.IsZero() {
		res = scope.Apply(res)
	}
	if opts.Sort {
		res.Sort()
	}

	switch opts.Output {
	case formatTable:
		if err := writeTable(out, res); err != nil {
			return exitError(exitFileWriteError, "Failed to write output", err)
		}
		stats := e.Stats()
		_, _ = fmt.Fprintf(errOut, "list: depth=%d objects=%d prefixes=%d listings=%d duration=%s\n",
			opts.Depth, len(res.Objects), len(res.CommonPrefixes), stats.Listings,
			time.Since(start).Round(time.Millisecond))
		return nil
	case formatYAML:
		if err := writeYAML(out, u, src, opts.Depth, res, e.Stats()); err != nil {
			return exitError(exitFileWriteError, "Failed to write output", err)
		}
		return nil
	}

	w := output.NewJSONLWriter(out, uuid.New().String(), src.Kind.String())
	bytesTotal, err := output.WriteResult(ctx, w, res, opts.Depth)
	if err != nil {
		return exitError(exitFileWriteError, "Failed to write output", err)
	}
	return finishJSONL(w, src, opts, e.Stats(), bytesTotal, start, nil)
}

// streamJSONL writes each terminal subtree as soon as it is listed.
func streamJSONL(ctx context.Context, e *expand.Expander, src *source.Source, scope *match.Scope, opts listOptions, out io.Writer, start time.Time) error {
	w := output.NewJSONLWriter(out, uuid.New().String(), src.Kind.String())

	var bytesTotal int64
	err := e.Walk(ctx, src.Prefix(), opts.Depth, func(res *listing.Result) error {
		if !scope.IsZero() {
			res = scope.Apply(res)
		}
		n, err := output.WriteResult(ctx, w, res, opts.Depth)
		bytesTotal += n
		return err
	})
	var writeErr *output.WriteError
	if errors.As(err, &writeErr) {
		return exitError(exitFileWriteError, "Failed to write output", err)
	}
	return finishJSONL(w, src, opts, e.Stats(), bytesTotal, start, err)
}

// finishJSONL writes the trailing error and summary records. Writes use a
// fresh context so they still land after cancellation.
func finishJSONL(w *output.JSONLWriter, src *source.Source, opts listOptions, stats expand.Stats, bytesTotal int64, start time.Time, runErr error) error {
	ctx := context.Background()
	sum := output.NewSummaryRecord(src.Prefix(), opts.Depth, stats, bytesTotal, time.Since(start))
	if runErr != nil {
		sum.Errors = 1
		if err := w.WriteError(ctx, output.NewErrorRecord(runErr)); err != nil {
			observability.CLILogger.Debug("Failed to emit error record", zap.Error(err))
		}
	}
	if err := w.WriteSummary(ctx, sum); err != nil {
		if runErr == nil {
			return exitError(exitFileWriteError, "Failed to write summary", err)
		}
		observability.CLILogger.Debug("Failed to emit summary record", zap.Error(err))
	}
	if runErr != nil {
		return expandFailed(runErr)
	}
	return nil
}

func expandFailed(err error) error {
	observability.CLILogger.Error("Listing failed", zap.Error(err))
	switch {
	case errors.Is(err, context.Canceled):
		return exitError(exitSignalInterrupt, "Listing cancelled", err)
	case errors.Is(err, expand.ErrInvalidDepth):
		return exitError(exitInvalidArgument, "Invalid depth", err)
	}
	return exitError(exitServiceError, "Listing failed", err)
}

func openExitCode(err error) int {
	switch provider.Classify(err) {
	case "NOT_FOUND":
		return exitFileNotFound
	case "INVALID_ARGUMENT":
		return exitInvalidArgument
	}
	if errors.Is(err, source.ErrUnsupportedProvider) {
		return exitInvalidArgument
	}
	return exitServiceError
}

func writeTable(out io.Writer, res *listing.Result) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "TYPE\tPATH\tSIZE\tLAST_MODIFIED"); err != nil {
		return err
	}
	for _, obj := range res.Objects {
		modified := "-"
		if !obj.LastModified.IsZero() {
			modified = obj.LastModified.UTC().Format(time.RFC3339)
		}
		if _, err := fmt.Fprintf(tw, "OBJ\t%s\t%s\t%s\n", obj.Path, match.FormatSize(obj.Size), modified); err != nil {
			return err
		}
	}
	for _, cp := range res.CommonPrefixes {
		if _, err := fmt.Fprintf(tw, "PRE\t%s\t-\t-\n", cp.ListPrefix()); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// yamlListing is the document written by --output yaml.
type yamlListing struct {
	URI      string          `yaml:"uri"`
	Depth    int             `yaml:"depth"`
	Provider string          `yaml:"provider"`
	Snapshot string          `yaml:"snapshot_id,omitempty"`
	Stats    yamlStats       `yaml:"stats"`
	Result   *listing.Result `yaml:"result"`
}

type yamlStats struct {
	Listings         int64 `yaml:"listings"`
	PrefixesExpanded int64 `yaml:"prefixes_expanded"`
	Objects          int64 `yaml:"objects"`
	CommonPrefixes   int64 `yaml:"common_prefixes"`
}

func writeYAML(out io.Writer, u *source.ObjectURI, src *source.Source, depth int, res *listing.Result, stats expand.Stats) error {
	doc := yamlListing{
		URI:      u.String(),
		Depth:    depth,
		Provider: src.Kind.String(),
		Stats: yamlStats{
			Listings:         stats.Listings,
			PrefixesExpanded: stats.PrefixesExpanded,
			Objects:          stats.Objects,
			CommonPrefixes:   stats.CommonPrefixes,
		},
		Result: res,
	}
	if src.Snapshot != nil {
		doc.Snapshot = src.Snapshot.ID
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
