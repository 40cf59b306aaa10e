// Package cmd implements the depthls command line.
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/depthls/internal/config"
	"github.com/3leaps/depthls/internal/observability"
)

// Identity of the binary, also checked by the serve health probe.
const (
	binaryName = "depthls"
	configName = "depthls"
)

// Process exit codes.
var (
	exitInvalidArgument = int(foundry.ExitInvalidArgument)
	exitServiceError    = int(foundry.ExitExternalServiceUnavailable)
	exitFileWriteError  = int(foundry.ExitFileWriteError)
	exitFileNotFound    = int(foundry.ExitFileNotFound)
	exitSignalInterrupt = int(foundry.ExitSignalInt)
	exitGenericFailure  = 1
)

type buildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = buildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo = buildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Depth-limited listing of object stores and directory trees",
	Long: `depthls lists a namespace (S3, MinIO, a local directory or an in-memory
fixture) exactly N levels below a prefix, using nothing but one-level
delimiter listings. Sibling prefixes are listed concurrently.

Configuration is read from --config, DEPTHLS_* environment variables and
flags, flags winning.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRuntime,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console|json)")
}

// initRuntime loads configuration and installs the CLI logger.
func initRuntime(cmd *cobra.Command, args []string) error {
	config.SetConfigFile(cfgFile)

	logging := map[string]any{}
	if cmd.Flags().Changed("log-level") {
		logging["level"] = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		logging["format"] = logFormat
	}
	var overrides []map[string]any
	if len(logging) > 0 {
		overrides = append(overrides, map[string]any{"logging": logging})
	}

	cfg, err := config.Load(cmd.Context(), overrides...)
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid configuration", err)
	}
	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return exitError(exitInvalidArgument, "Invalid logging configuration", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// commandError carries the process exit code of a failed command.
type commandError struct {
	code    int
	message string
	err     error
}

func (e *commandError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s (exit code %d)", e.message, e.code)
	}
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *commandError) Unwrap() error { return e.err }

func exitError(code int, message string, err error) error {
	return &commandError{code: code, message: message, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *commandError
	if errors.As(err, &ce) {
		return ce.code
	}
	// Flag and argument errors raised by cobra itself.
	msg := err.Error()
	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "arg(s)") || strings.Contains(msg, "unknown command") {
		return exitInvalidArgument
	}
	return exitGenericFailure
}
