package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	gfconfig "github.com/fulmenhq/gofulmen/config"

	"github.com/3leaps/depthls/pkg/listing"
	"github.com/3leaps/depthls/pkg/provider"
	afsprovider "github.com/3leaps/depthls/pkg/provider/afs"
	"github.com/3leaps/depthls/pkg/provider/file"
	"github.com/3leaps/depthls/pkg/provider/minio"
	"github.com/3leaps/depthls/pkg/provider/s3"
	"github.com/3leaps/depthls/pkg/snapshot"
)

// AppName names the per-user data directory.
const AppName = "depthls"

// Options carry backend settings that do not fit in a URI.
type Options struct {
	// S3 settings. Endpoint also addresses the MinIO server for minio:// URIs.
	Region   string
	Endpoint string
	Profile  string

	// MinIOInsecure disables TLS towards the MinIO endpoint.
	MinIOInsecure bool

	// PageSize is the default page size handed to the backend.
	PageSize int

	// SnapshotDB, when set, serves listings from the latest completed
	// snapshot of the URI's root instead of the live backend.
	SnapshotDB string
}

// Source is an opened namespace.
type Source struct {
	URI      *ObjectURI
	Provider provider.DelimiterProvider

	// Kind is the backend actually serving listings.
	Kind provider.ProviderType

	// Snapshot is set when listings come from a snapshot.
	Snapshot *snapshot.Snapshot

	store *snapshot.Store
}

// Prefix is the path to expand.
func (s *Source) Prefix() listing.Path { return s.URI.Prefix() }

// Close releases the backend and any snapshot store.
func (s *Source) Close() error {
	var errs []error
	if s.Provider != nil {
		errs = append(errs, s.Provider.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

// Open resolves u to a backend. No listing is performed.
func Open(ctx context.Context, u *ObjectURI, opts Options) (*Source, error) {
	if opts.SnapshotDB != "" {
		return openSnapshot(ctx, u, opts.SnapshotDB)
	}

	p, kind, err := openLive(ctx, u, opts)
	if err != nil {
		return nil, err
	}
	return &Source{URI: u, Provider: p, Kind: kind}, nil
}

func openLive(ctx context.Context, u *ObjectURI, opts Options) (provider.DelimiterProvider, provider.ProviderType, error) {
	switch u.Scheme {
	case SchemeS3:
		p, err := s3.New(ctx, s3.Config{
			Bucket:   u.Bucket,
			Region:   opts.Region,
			Endpoint: opts.Endpoint,
			Profile:  opts.Profile,
			MaxKeys:  opts.PageSize,
		})
		return p, provider.ProviderS3, err

	case SchemeMinIO:
		endpoint := opts.Endpoint
		secure := !opts.MinIOInsecure
		// Accept a full URL for convenience; the scheme decides TLS.
		switch {
		case strings.HasPrefix(endpoint, "https://"):
			endpoint, secure = strings.TrimPrefix(endpoint, "https://"), true
		case strings.HasPrefix(endpoint, "http://"):
			endpoint, secure = strings.TrimPrefix(endpoint, "http://"), false
		}
		p, err := minio.New(ctx, minio.Config{
			Endpoint: strings.TrimRight(endpoint, "/"),
			Bucket:   u.Bucket,
			Region:   opts.Region,
			UseSSL:   secure,
			MaxKeys:  opts.PageSize,
		})
		return p, provider.ProviderMinIO, err

	case SchemeFile:
		p, err := file.New(file.Config{BaseDir: filepath.FromSlash(u.Key)})
		return p, provider.ProviderFile, err

	case SchemeMem:
		p, err := afsprovider.New(afsprovider.Config{BaseURL: "mem://" + u.Bucket})
		return p, provider.ProviderAFS, err
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, u.Scheme)
}

func openSnapshot(ctx context.Context, u *ObjectURI, dbPath string) (*Source, error) {
	store, err := snapshot.Open(ctx, snapshot.Config{Path: dbPath})
	if err != nil {
		return nil, err
	}
	snap, err := store.Latest(ctx, u.Root())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("snapshot of %s: %w", u.Root(), err)
	}
	return &Source{
		URI:      u,
		Provider: store.Provider(snap.ID),
		Kind:     provider.ProviderSnapshot,
		Snapshot: snap,
		store:    store,
	}, nil
}

// DefaultSnapshotPath is the snapshot database used when none is configured.
func DefaultSnapshotPath() string {
	return filepath.Join(gfconfig.GetAppDataDir(AppName), "snapshots.db")
}
