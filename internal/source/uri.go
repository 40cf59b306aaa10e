// Package source resolves a namespace URI to an opened storage backend and
// the prefix to expand under it.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/3leaps/depthls/pkg/listing"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedProvider indicates the URI scheme is not supported.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingBucket indicates the URI is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")
)

// Supported URI schemes.
const (
	SchemeS3    = "s3"
	SchemeMinIO = "minio"
	SchemeFile  = "file"
	SchemeMem   = "mem"
)

// ObjectURI is a parsed namespace URI.
//
// Example URIs:
//   - s3://bucket/prefix/
//   - minio://bucket/prefix
//   - file:///srv/data
//   - mem://localhost/fixtures/
type ObjectURI struct {
	// Scheme is one of the Scheme* constants.
	Scheme string

	// Bucket is the bucket (s3, minio) or host (mem). Empty for file.
	Bucket string

	// Key is the prefix inside the bucket. For file URIs it is the absolute
	// directory that becomes the namespace root.
	Key string
}

// String returns the URI in canonical form.
func (u *ObjectURI) String() string {
	if u.Scheme == SchemeFile {
		return "file://" + u.Key
	}
	if u.Key != "" {
		return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Bucket, u.Key)
	}
	return fmt.Sprintf("%s://%s/", u.Scheme, u.Bucket)
}

// Root returns the URI of the namespace root the prefix lives in. Snapshots
// are keyed by it.
func (u *ObjectURI) Root() string {
	if u.Scheme == SchemeFile {
		return "file://" + u.Key
	}
	return fmt.Sprintf("%s://%s/", u.Scheme, u.Bucket)
}

// Prefix returns the path to expand, relative to Root.
func (u *ObjectURI) Prefix() listing.Path {
	if u.Scheme == SchemeFile {
		return listing.Root
	}
	return listing.ParsePath(u.Key)
}

// ParseURI parses a namespace URI.
//
// Glob characters are rejected; scoping belongs to --include/--exclude.
func ParseURI(raw string) (*ObjectURI, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	// Split manually: url.Parse treats '?' and '#' specially, and object keys may contain both.
	schemeEnd := strings.Index(raw, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected s3://, minio://, file:// or mem://)", ErrInvalidURI)
	}
	scheme := strings.ToLower(raw[:schemeEnd])
	remainder := raw[schemeEnd+3:]

	switch scheme {
	case SchemeFile:
		return parseFileURI(remainder)
	case SchemeS3, SchemeMinIO, SchemeMem:
	default:
		return nil, fmt.Errorf("%w: %s (supported: s3, minio, file, mem)", ErrUnsupportedProvider, scheme)
	}

	bucket, key, _ := strings.Cut(remainder, "/")
	if bucket == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, raw)
	}
	if _, err := url.Parse(scheme + "://" + bucket + "/"); err != nil || strings.ContainsAny(bucket, " \\") {
		return nil, fmt.Errorf("%w: invalid bucket name %q", ErrInvalidURI, bucket)
	}
	if err := rejectGlob(key); err != nil {
		return nil, err
	}

	return &ObjectURI{
		Scheme: scheme,
		Bucket: bucket,
		Key:    listing.ParsePath(key).String(),
	}, nil
}

func parseFileURI(remainder string) (*ObjectURI, error) {
	// file:///abs/path has an empty host; file://localhost/abs/path is accepted too.
	if strings.HasPrefix(remainder, "localhost/") {
		remainder = strings.TrimPrefix(remainder, "localhost")
	}
	if !strings.HasPrefix(remainder, "/") {
		return nil, fmt.Errorf("%w: file URIs need an absolute path (file:///dir)", ErrInvalidURI)
	}
	if err := rejectGlob(remainder); err != nil {
		return nil, err
	}
	return &ObjectURI{Scheme: SchemeFile, Key: path.Clean(remainder)}, nil
}

func rejectGlob(key string) error {
	if strings.ContainsAny(key, "*?[{") {
		return fmt.Errorf("%w: glob patterns are not supported in the URI; list the prefix and use --include/--exclude", ErrInvalidURI)
	}
	return nil
}
