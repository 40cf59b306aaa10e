package s3

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/depthls/pkg/provider"
)

// api is the slice of the S3 client depthls calls.
type api interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Provider lists an S3 bucket. Every call is a single ListObjectsV2 or
// HeadObject request; paging is left to the caller.
type Provider struct {
	client  api
	bucket  string
	maxKeys int
}

var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.DelimiterProvider = (*Provider)(nil)
)

// New builds a client from cfg and the AWS default credential chain.
// No request is sent.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderS3, Bucket: cfg.Bucket, Err: err}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Provider{
		client:  client,
		bucket:  cfg.Bucket,
		maxKeys: clampMaxKeys(cfg.MaxKeys, DefaultMaxKeys),
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	awsCfg.Region = resolveRegion(cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

// page is one ListObjectsV2 response in provider terms.
type page struct {
	objects  []provider.ObjectSummary
	prefixes []string
	next     string
	more     bool
}

func (p *Provider) listPage(ctx context.Context, op, prefix, delimiter, token string, maxKeys int) (*page, error) {
	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(clampMaxKeys(maxKeys, p.maxKeys))),
	}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	if delimiter != "" {
		in.Delimiter = aws.String(delimiter)
	}
	if token != "" {
		in.ContinuationToken = aws.String(token)
	}

	out, err := p.client.ListObjectsV2(ctx, in)
	if err != nil {
		return nil, p.wrapError(op, prefix, err)
	}

	pg := &page{
		objects: make([]provider.ObjectSummary, 0, len(out.Contents)),
		next:    aws.ToString(out.NextContinuationToken),
		more:    aws.ToBool(out.IsTruncated),
	}
	for _, obj := range out.Contents {
		pg.objects = append(pg.objects, toSummary(obj))
	}
	for _, cp := range out.CommonPrefixes {
		if s := aws.ToString(cp.Prefix); s != "" {
			pg.prefixes = append(pg.prefixes, s)
		}
	}
	return pg, nil
}

// List returns one page of a flat listing under opts.Prefix.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	pg, err := p.listPage(ctx, "List", opts.Prefix, "", opts.ContinuationToken, opts.MaxKeys)
	if err != nil {
		return nil, err
	}
	return &provider.ListResult{Objects: pg.objects, ContinuationToken: pg.next, IsTruncated: pg.more}, nil
}

// ListWithDelimiter returns one page of a delimiter listing. Common prefixes
// keep the trailing delimiter, as S3 returns them.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = provider.DefaultDelimiter
	}
	pg, err := p.listPage(ctx, "ListWithDelimiter", opts.Prefix, delimiter, opts.ContinuationToken, opts.MaxKeys)
	if err != nil {
		return nil, err
	}
	prefixes := pg.prefixes
	if prefixes == nil {
		prefixes = []string{}
	}
	return &provider.ListWithDelimiterResult{
		Objects:           pg.objects,
		CommonPrefixes:    prefixes,
		ContinuationToken: pg.next,
		IsTruncated:       pg.more,
	}, nil
}

// Head returns metadata for key.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	return &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          key,
			Size:         aws.ToInt64(out.ContentLength),
			ETag:         cleanETag(aws.ToString(out.ETag)),
			LastModified: aws.ToTime(out.LastModified),
		},
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
	}, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (p *Provider) Close() error { return nil }

func toSummary(obj types.Object) provider.ObjectSummary {
	return provider.ObjectSummary{
		Key:          aws.ToString(obj.Key),
		Size:         aws.ToInt64(obj.Size),
		ETag:         cleanETag(aws.ToString(obj.ETag)),
		LastModified: aws.ToTime(obj.LastModified),
	}
}

// codeSentinels maps S3 API error codes onto provider sentinels.
var codeSentinels = map[string]error{
	"NoSuchKey":             provider.ErrNotFound,
	"NotFound":              provider.ErrNotFound,
	"NoSuchBucket":          provider.ErrBucketNotFound,
	"AccessDenied":          provider.ErrAccessDenied,
	"Forbidden":             provider.ErrAccessDenied,
	"InvalidAccessKeyId":    provider.ErrInvalidCredentials,
	"SignatureDoesNotMatch": provider.ErrInvalidCredentials,
	"ExpiredToken":          provider.ErrInvalidCredentials,
	"SlowDown":              provider.ErrThrottled,
	"Throttling":            provider.ErrThrottled,
	"RequestLimitExceeded":  provider.ErrThrottled,
	"ServiceUnavailable":    provider.ErrProviderUnavailable,
	"InternalError":         provider.ErrProviderUnavailable,
}

// statusSentinels covers responses without a usable error code (HEAD has no body).
var statusSentinels = map[int]error{
	403: provider.ErrAccessDenied,
	404: provider.ErrNotFound,
	429: provider.ErrThrottled,
	500: provider.ErrProviderUnavailable,
	502: provider.ErrProviderUnavailable,
	503: provider.ErrProviderUnavailable,
}

// messageHints is the last resort for errors that lost their structure,
// checked in order.
var messageHints = []struct {
	needles  []string
	sentinel error
}{
	{[]string{"NoSuchBucket"}, provider.ErrBucketNotFound},
	{[]string{"NoSuchKey", "NotFound", "StatusCode: 404"}, provider.ErrNotFound},
	{[]string{"AccessDenied", "Forbidden", "StatusCode: 403"}, provider.ErrAccessDenied},
	{[]string{"InvalidAccessKeyId", "SignatureDoesNotMatch"}, provider.ErrInvalidCredentials},
	{[]string{"SlowDown", "Throttling", "StatusCode: 429"}, provider.ErrThrottled},
	{[]string{"ServiceUnavailable", "StatusCode: 503"}, provider.ErrProviderUnavailable},
}

// classify returns the provider sentinel for an SDK error, or nil.
func classify(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &noSuchBucket):
		return provider.ErrBucketNotFound
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		return provider.ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if s, ok := codeSentinels[apiErr.ErrorCode()]; ok {
			return s
		}
	}

	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		if s, ok := statusSentinels[status.HTTPStatusCode()]; ok {
			return s
		}
	}

	msg := err.Error()
	for _, h := range messageHints {
		for _, n := range h.needles {
			if strings.Contains(msg, n) {
				return h.sentinel
			}
		}
	}
	return nil
}

// wrapError attaches operation context and, when recognised, replaces the SDK
// error with a provider sentinel.
func (p *Provider) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderS3, Bucket: p.bucket, Key: key, Err: err}
	if s := classify(err); s != nil {
		wrapped.Err = s
	}
	return wrapped
}

func cleanETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// clampMaxKeys falls back to def for non-positive values and caps at MaxAllowedKeys.
func clampMaxKeys(requested, def int) int {
	if requested <= 0 {
		requested = def
	}
	return min(requested, MaxAllowedKeys)
}

// resolveRegion applies the us-east-1 fallback for AWS proper once the SDK
// has had its chance (explicit region, environment, profile). Custom
// endpoints get no default.
func resolveRegion(endpoint, sdkRegion string) string {
	if sdkRegion != "" || endpoint != "" {
		return sdkRegion
	}
	return DefaultAWSRegion
}
