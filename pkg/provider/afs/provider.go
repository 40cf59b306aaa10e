// Package afs implements the provider interfaces over any namespace reachable
// through github.com/viant/afs (file://, mem://, and other registered schemes).
//
// Keys are paths relative to the base URL. afs directories play the role of
// common prefixes.
package afs

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"github.com/3leaps/depthls/pkg/provider"
)

// Config configures an afs-backed provider.
type Config struct {
	// BaseURL is the namespace root, e.g. "mem://localhost/data" or "file:///srv/data".
	// A bare absolute path is converted to a file:// URL.
	BaseURL string
}

// Provider lists an afs location.
type Provider struct {
	svc  afs.Service
	base string
}

var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.DelimiterLister   = (*Provider)(nil)
	_ provider.DelimiterProvider = (*Provider)(nil)
)

// New creates a provider using the default afs service.
func New(cfg Config) (*Provider, error) {
	return NewWithService(afs.New(), cfg)
}

// NewWithService creates a provider on an existing afs service.
func NewWithService(svc afs.Service, cfg Config) (*Provider, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderAFS, Err: fmt.Errorf("base URL is required")}
	}
	if url.Scheme(base, "") == "" {
		if url.IsRelative(base) {
			return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderAFS, Key: base, Err: fmt.Errorf("base URL must be absolute")}
		}
		base = url.ToFileURL(base)
	}
	return &Provider{svc: svc, base: strings.TrimSuffix(base, "/")}, nil
}

// BaseURL returns the normalized namespace root.
func (p *Provider) BaseURL() string { return p.base }

func (p *Provider) Close() error { return nil }

// locate maps a key to a URL under the base. Cleaning is rooted, so ".."
// cannot climb above the base.
func (p *Provider) locate(key string) string {
	clean := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(key, "/")), "/")
	if clean == "" {
		return p.base
	}
	return url.Join(p.base, clean)
}

// ListWithDelimiter lists one afs directory and pages it by key.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if opts.Delimiter != "" && opts.Delimiter != provider.DefaultDelimiter {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, fmt.Errorf("%w: unsupported delimiter %q", provider.ErrInvalidKey, opts.Delimiter))
	}

	dirKey, fragment := provider.SplitListPrefix(opts.Prefix)
	objects, err := p.listDir(ctx, dirKey)
	if err != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	items := make([]provider.DirEntry, 0, len(objects))
	for _, obj := range objects {
		name := obj.Name()
		if !strings.HasPrefix(name, fragment) {
			continue
		}
		if obj.IsDir() {
			items = append(items, provider.DirEntry{Key: dirKey + name + "/", IsDir: true})
			continue
		}
		items = append(items, provider.DirEntry{
			Key:    dirKey + name,
			Object: provider.ObjectSummary{Size: obj.Size(), LastModified: obj.ModTime()},
		})
	}
	return provider.PageDirEntries(items, opts.ContinuationToken, opts.MaxKeys), nil
}

// listDir returns the children of dirKey. A missing directory has no children.
func (p *Provider) listDir(ctx context.Context, dirKey string) ([]storage.Object, error) {
	loc := p.locate(dirKey)
	ok, err := p.svc.Exists(ctx, loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	objects, err := p.svc.List(ctx, loc)
	if err != nil {
		return nil, err
	}

	// afs reports the listed location itself as a directory entry.
	self := strings.TrimSuffix(url.Path(loc), "/")
	children := objects[:0]
	for i, obj := range objects {
		if obj.IsDir() && (strings.TrimSuffix(url.Path(obj.URL()), "/") == self || (i == 0 && obj.Name() == path.Base(self))) {
			continue
		}
		children = append(children, obj)
	}
	return children, nil
}

// List walks the tree under the prefix's directory and pages files by key.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	dirKey, _ := provider.SplitListPrefix(opts.Prefix)

	var files []provider.DirEntry
	var walk func(dir string) error
	walk = func(dir string) error {
		objects, err := p.listDir(ctx, dir)
		if err != nil {
			return err
		}
		for _, obj := range objects {
			key := dir + obj.Name()
			if obj.IsDir() {
				if err := walk(key + "/"); err != nil {
					return err
				}
				continue
			}
			if strings.HasPrefix(key, strings.TrimPrefix(opts.Prefix, "/")) {
				files = append(files, provider.DirEntry{Key: key, Object: provider.ObjectSummary{Size: obj.Size(), LastModified: obj.ModTime()}})
			}
		}
		return nil
	}
	if err := walk(dirKey); err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}

	page := provider.PageDirEntries(files, opts.ContinuationToken, opts.MaxKeys)
	return &provider.ListResult{Objects: page.Objects, ContinuationToken: page.ContinuationToken, IsTruncated: page.IsTruncated}, nil
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	loc := p.locate(key)
	ok, err := p.svc.Exists(ctx, loc)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	if !ok {
		return nil, p.wrapError("Head", key, provider.ErrNotFound)
	}
	obj, err := p.svc.Object(ctx, loc)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	if obj.IsDir() {
		return nil, p.wrapError("Head", key, provider.ErrNotFound)
	}
	return &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{Key: strings.TrimPrefix(key, "/"), Size: obj.Size(), LastModified: obj.ModTime()},
	}, nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	return &provider.ProviderError{Op: op, Provider: provider.ProviderAFS, Bucket: p.base, Key: key, Err: err}
}
