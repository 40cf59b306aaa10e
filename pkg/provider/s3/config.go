// Package s3 lists AWS S3 and S3-compatible buckets with ListObjectsV2.
package s3

import (
	"fmt"
	"strings"
)

const (
	// DefaultMaxKeys is the page size used when none is configured.
	DefaultMaxKeys = 1000

	// MaxAllowedKeys is the largest page S3 returns.
	MaxAllowedKeys = 1000

	// DefaultAWSRegion applies to AWS endpoints when nothing else resolves a region.
	DefaultAWSRegion = "us-east-1"
)

// Config configures a Provider.
//
// Credentials come from the SDK default chain (environment, shared files
// with Profile, instance or task roles) unless AccessKeyID and
// SecretAccessKey are both set.
type Config struct {
	Bucket string

	// Region is optional; see resolveRegion for the fallback.
	Region string

	// Endpoint addresses an S3-compatible store (MinIO, moto, Wasabi).
	// Setting it switches to path-style addressing.
	Endpoint string

	Profile string

	AccessKeyID     string
	SecretAccessKey string

	ForcePathStyle bool

	// MaxKeys is the page size. Zero means DefaultMaxKeys; larger values
	// are capped at MaxAllowedKeys.
	MaxKeys int
}

// Normalize trims user input and enables path-style addressing for custom endpoints.
func (c *Config) Normalize() {
	c.Bucket = strings.TrimSpace(c.Bucket)
	c.Region = strings.TrimSpace(c.Region)
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	c.Profile = strings.TrimSpace(c.Profile)
	if c.Endpoint != "" {
		c.ForcePathStyle = true
	}
}

// Validate reports the first unusable field.
func (c *Config) Validate() error {
	switch {
	case c.Bucket == "":
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	case (c.AccessKeyID == "") != (c.SecretAccessKey == ""):
		return &ConfigError{Field: "AccessKeyID/SecretAccessKey", Message: "both access key ID and secret access key must be provided together"}
	case c.MaxKeys < 0:
		return &ConfigError{Field: "MaxKeys", Message: "must be >= 0"}
	}
	return nil
}

// ConfigError is returned by Validate.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("s3 config: %s: %s", e.Field, e.Message)
}
