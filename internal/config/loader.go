// Package config loads depthls configuration from defaults, an optional
// config file, DEPTHLS_* environment variables and runtime overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "DEPTHLS"

// Config is the effective configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Expand   ExpandConfig   `mapstructure:"expand"`
	S3       S3Config       `mapstructure:"s3"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxDepth caps the depth accepted by GET /v1/list.
	MaxDepth int `mapstructure:"max_depth"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ExpandConfig holds expansion defaults shared by the CLI and the server.
type ExpandConfig struct {
	Depth       int           `mapstructure:"depth"`
	MaxInFlight int           `mapstructure:"max_in_flight"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	PageSize    int           `mapstructure:"page_size"`
	MaxPages    int           `mapstructure:"max_pages"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Sort        bool          `mapstructure:"sort"`
}

type S3Config struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Profile  string `mapstructure:"profile"`
}

type SnapshotConfig struct {
	// Path is the default snapshot database. Empty means the per-user data dir.
	Path string `mapstructure:"path"`
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("server.max_depth must be >= 0"))
	}
	if c.Expand.Depth < 0 {
		errs = append(errs, fmt.Errorf("expand.depth must be >= 0"))
	}
	if c.Expand.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("expand.max_in_flight must be >= 0"))
	}
	if c.Expand.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("expand.rate_limit must be >= 0"))
	}
	if c.Expand.PageSize < 0 || c.Expand.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("expand.page_size and expand.max_pages must be >= 0"))
	}
	return errors.Join(errs...)
}

// envSpec maps a short environment variable onto a config path.
type envSpec struct {
	Name string
	Path string
}

var (
	configMu   sync.RWMutex
	appConfig  *Config
	configFile string
)

// SetConfigFile sets the config file read by subsequent Load calls. An empty
// path disables file loading.
func SetConfigFile(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	configFile = strings.TrimSpace(path)
}

// Load builds the configuration. Precedence, highest first: overrides,
// environment, config file, defaults. The result is also kept for GetConfig.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	configMu.RLock()
	file := configFile
	configMu.RUnlock()

	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configMu.Lock()
	appConfig = cfg
	configMu.Unlock()
	return cfg, nil
}

// GetConfig returns the configuration from the last successful Load, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_depth", 8)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("expand.depth", 0)
	v.SetDefault("expand.max_in_flight", 256)
	v.SetDefault("expand.rate_limit", 0.0)
	v.SetDefault("expand.page_size", 1000)
	v.SetDefault("expand.max_pages", 10_000)
	v.SetDefault("expand.timeout", "10m")
	v.SetDefault("expand.sort", false)

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.profile", "")

	v.SetDefault("snapshot.path", "")
}

// getEnvSpecs lists the short variable names accepted next to the automatic
// DEPTHLS_<SECTION>_<KEY> form.
func getEnvSpecs() []envSpec {
	specs := []envSpec{
		{Name: "HOST", Path: "server.host"},
		{Name: "PORT", Path: "server.port"},
		{Name: "READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: "WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: "SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: "LOG_LEVEL", Path: "logging.level"},
		{Name: "LOG_FORMAT", Path: "logging.format"},
		{Name: "PARALLEL", Path: "expand.max_in_flight"},
		{Name: "RATE_LIMIT", Path: "expand.rate_limit"},
		{Name: "SNAPSHOT_DB", Path: "snapshot.path"},
	}
	for i := range specs {
		specs[i].Name = EnvPrefix + "_" + specs[i].Name
	}
	return specs
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}
