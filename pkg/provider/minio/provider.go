// Package minio implements the provider interfaces for MinIO servers using
// minio-go.
package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/3leaps/depthls/pkg/provider"
)

// DefaultMaxKeys is the page size used when a request does not set MaxKeys.
const DefaultMaxKeys = 1000

// Config configures a MinIO provider.
type Config struct {
	// Endpoint is host[:port] of the MinIO server (no scheme).
	Endpoint string

	// Bucket is the bucket to list.
	Bucket string

	// AccessKeyID and SecretAccessKey are static credentials. When both are
	// empty, MINIO_ROOT_USER / MINIO_ACCESS_KEY style environment variables are used.
	AccessKeyID     string
	SecretAccessKey string

	Region string
	UseSSL bool

	// MaxKeys is the default page size. Zero uses DefaultMaxKeys.
	MaxKeys int
}

// Validate checks required fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must be host[:port] without scheme, got %q", c.Endpoint)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("bucket is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("access key and secret key must be set together")
	}
	return nil
}

// api is the subset of *miniogo.Client used here.
type api interface {
	ListObjects(ctx context.Context, bucket string, opts miniogo.ListObjectsOptions) <-chan miniogo.ObjectInfo
	StatObject(ctx context.Context, bucket, key string, opts miniogo.StatObjectOptions) (miniogo.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// Provider lists a single MinIO bucket.
type Provider struct {
	client  api
	bucket  string
	maxKeys int
}

var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.DelimiterLister   = (*Provider)(nil)
	_ provider.DelimiterProvider = (*Provider)(nil)
)

// New creates a MinIO provider. No request is made until the first listing.
func New(_ context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderMinIO, Bucket: cfg.Bucket, Err: err}
	}

	creds := credentials.NewEnvMinio()
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderMinIO, Bucket: cfg.Bucket, Err: err}
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Provider{client: client, bucket: cfg.Bucket, maxKeys: maxKeys}, nil
}

// Close is a no-op; the SDK client holds no persistent connections.
func (p *Provider) Close() error { return nil }

// Ping reports whether the bucket is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	ok, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return p.wrapError("Ping", "", err)
	}
	if !ok {
		return p.wrapError("Ping", "", provider.ErrBucketNotFound)
	}
	return nil
}

func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	objects, _, token, truncated, err := p.page(ctx, opts.Prefix, true, opts.ContinuationToken, opts.MaxKeys)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}
	return &provider.ListResult{Objects: objects, ContinuationToken: token, IsTruncated: truncated}, nil
}

// ListWithDelimiter lists one level under opts.Prefix.
//
// minio-go reports common prefixes as entries whose key ends in "/"; those
// are returned as CommonPrefixes. Only "/" is supported as delimiter.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if opts.Delimiter != "" && opts.Delimiter != provider.DefaultDelimiter {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, fmt.Errorf("%w: unsupported delimiter %q", provider.ErrInvalidKey, opts.Delimiter))
	}
	objects, prefixes, token, truncated, err := p.page(ctx, opts.Prefix, false, opts.ContinuationToken, opts.MaxKeys)
	if err != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
	}
	return &provider.ListWithDelimiterResult{
		Objects:           objects,
		CommonPrefixes:    prefixes,
		ContinuationToken: token,
		IsTruncated:       truncated,
	}, nil
}

// page reads at most maxKeys entries starting after token. The SDK paginates
// internally, so one extra entry is peeked to detect truncation and the
// producer is stopped by cancelling its context.
func (p *Provider) page(ctx context.Context, prefix string, recursive bool, token string, maxKeys int) (objects []provider.ObjectSummary, prefixes []string, next string, truncated bool, err error) {
	if maxKeys <= 0 {
		maxKeys = p.maxKeys
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	count := 0
	for info := range p.client.ListObjects(ctx, p.bucket, miniogo.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  recursive,
		StartAfter: token,
	}) {
		if info.Err != nil {
			return nil, nil, "", false, info.Err
		}
		// A non-recursive listing may repeat the common prefix the token points at.
		if token != "" && info.Key <= token {
			continue
		}
		if count == maxKeys {
			truncated = true
			break
		}
		count++
		next = info.Key

		if !recursive && info.Key != prefix && strings.HasSuffix(info.Key, provider.DefaultDelimiter) {
			prefixes = append(prefixes, info.Key)
			continue
		}
		objects = append(objects, provider.ObjectSummary{
			Key:          info.Key,
			Size:         info.Size,
			ETag:         strings.Trim(info.ETag, `"`),
			LastModified: info.LastModified,
		})
	}
	if !truncated {
		next = ""
	}
	return objects, prefixes, next, truncated, nil
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	info, err := p.client.StatObject(ctx, p.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}

	meta := make(map[string]string, len(info.UserMetadata))
	for k, v := range info.UserMetadata {
		meta[k] = v
	}
	return &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          info.Key,
			Size:         info.Size,
			ETag:         strings.Trim(info.ETag, `"`),
			LastModified: info.LastModified,
		},
		ContentType: info.ContentType,
		Metadata:    meta,
	}, nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	return &provider.ProviderError{Op: op, Provider: provider.ProviderMinIO, Bucket: p.bucket, Key: key, Err: mapError(err)}
}

// mapError translates a minio-go error into the provider sentinels, keeping
// the original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var resp miniogo.ErrorResponse
	if !errors.As(err, &resp) {
		return err
	}

	switch resp.Code {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %v", provider.ErrBucketNotFound, err)
	case "NoSuchKey":
		return fmt.Errorf("%w: %v", provider.ErrNotFound, err)
	case "AccessDenied":
		return fmt.Errorf("%w: %v", provider.ErrAccessDenied, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %v", provider.ErrInvalidCredentials, err)
	case "SlowDown", "RequestTimeout":
		return fmt.Errorf("%w: %v", provider.ErrThrottled, err)
	case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError":
		return fmt.Errorf("%w: %v", provider.ErrInvalidKey, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %v", provider.ErrNotFound, err)
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", provider.ErrAccessDenied, err)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", provider.ErrThrottled, err)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err)
	}
	return err
}
