package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/depthls/internal/config"
	"github.com/3leaps/depthls/internal/observability"
)

var (
	doctorProvider string
	doctorDB       string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Check the environment depthls runs in and suggest fixes.

Examples:
  depthls doctor                 # Runtime, config and snapshot database
  depthls doctor --provider s3   # Also check AWS credentials`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorProvider, "provider", "", "Run provider-specific checks (s3)")
	doctorCmd.Flags().StringVar(&doctorDB, "db", "", "Snapshot database to check (default: snapshot.path or the per-user data dir)")
}

// doctorCheck is one diagnostic. run returns a short detail on success.
type doctorCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	checks := []doctorCheck{
		{"Go runtime", func(ctx context.Context) (string, error) {
			return fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH), nil
		}},
		{"configuration", func(ctx context.Context) (string, error) {
			cfg := config.GetConfig()
			if cfg == nil {
				return "", fmt.Errorf("configuration not loaded")
			}
			return fmt.Sprintf("log level %s, parallel %d", cfg.Logging.Level, cfg.Expand.MaxInFlight), nil
		}},
		{"snapshot database", func(ctx context.Context) (string, error) {
			path := snapshotDBPath(doctorDB, config.GetConfig())
			if err := (snapshotHealthChecker{path: path}).CheckHealth(ctx); err != nil {
				return "", fmt.Errorf("%s: %w", path, err)
			}
			return filepath.Clean(path), nil
		}},
	}
	switch doctorProvider {
	case "":
	case "s3":
		checks = append(checks, doctorCheck{"AWS credentials", checkAWSCredentials})
	default:
		return exitError(exitInvalidArgument, "Invalid --provider value", fmt.Errorf("expected s3, got %q", doctorProvider))
	}

	failed := runDoctorChecks(cmd.Context(), checks, cmd.OutOrStdout())
	if failed > 0 {
		if doctorProvider == "s3" {
			printAWSCredentialsHelp(cmd.OutOrStdout())
		}
		return exitError(exitServiceError, "Diagnostics failed", fmt.Errorf("%d of %d checks failed", failed, len(checks)))
	}
	return nil
}

// runDoctorChecks prints one line per check and returns the failure count.
func runDoctorChecks(ctx context.Context, checks []doctorCheck, out io.Writer) int {
	failed := 0
	for i, c := range checks {
		detail, err := c.run(ctx)
		if err != nil {
			failed++
			observability.CLILogger.Debug("Check failed", zap.String("check", c.name), zap.Error(err))
			_, _ = fmt.Fprintf(out, "[%d/%d] %s... FAIL: %v\n", i+1, len(checks), c.name, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "[%d/%d] %s... ok (%s)\n", i+1, len(checks), c.name, detail)
	}
	return failed
}

func checkAWSCredentials(ctx context.Context) (string, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg := config.GetConfig(); cfg != nil {
		if cfg.S3.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.S3.Region))
		}
		if cfg.S3.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.S3.Profile))
		}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("retrieve credentials: %w", err)
	}
	src := creds.Source
	if src == "" {
		src = "unknown"
	}
	return fmt.Sprintf("%s from %s", maskAccessKey(creds.AccessKeyID), src), nil
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func printAWSCredentialsHelp(out io.Writer) {
	_, _ = fmt.Fprint(out, `
To configure AWS credentials:
  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, or
  2. Run 'aws configure' to set up a profile and pass --profile, or
  3. Use an IAM role when running on AWS infrastructure

For S3-compatible storage set s3.endpoint (DEPTHLS_S3_ENDPOINT) or pass --endpoint.
`)
}
