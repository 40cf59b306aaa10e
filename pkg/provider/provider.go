// Package provider defines the read-only storage backends depthls lists.
//
// Every backend offers a flat listing (List), a one-level delimiter listing
// (ListWithDelimiter, see delimiter.go) and a metadata lookup (Head).
// Backends never write, and all methods must be safe for concurrent use:
// the expander calls them from many goroutines at once.
package provider

import (
	"context"
	"time"
)

// Provider is the flat, paginated surface of a backend.
type Provider interface {
	// List returns one page of every key under opts.Prefix, descending
	// through delimiters. Snapshot capture walks a namespace with it.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Head returns ErrNotFound for a missing key.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	Close() error
}

// ListOptions select one page of a flat listing.
type ListOptions struct {
	Prefix            string
	ContinuationToken string

	// MaxKeys of zero lets the backend choose.
	MaxKeys int
}

// ListResult is one page of a flat listing. An empty ContinuationToken ends it.
type ListResult struct {
	Objects           []ObjectSummary
	ContinuationToken string
	IsTruncated       bool
}

// ObjectSummary is what a listing reports about one object.
type ObjectSummary struct {
	// Key is relative to the bucket or base directory.
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ObjectMeta adds Head-only fields to an ObjectSummary.
type ObjectMeta struct {
	ObjectSummary

	ContentType string
	Metadata    map[string]string
}

// ProviderType names a backend in logs, records and errors.
type ProviderType string

const (
	ProviderS3       ProviderType = "s3"
	ProviderMinIO    ProviderType = "minio"
	ProviderFile     ProviderType = "file"
	ProviderMemory   ProviderType = "memory"
	ProviderAFS      ProviderType = "afs"
	ProviderSnapshot ProviderType = "snapshot"
)

func (p ProviderType) String() string {
	return string(p)
}
