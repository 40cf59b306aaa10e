// Package file serves a local directory as a namespace. Keys are
// slash-separated paths relative to the base directory and subdirectories
// are the common prefixes.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/depthls/pkg/provider"
)

// Provider reads through an fs.FS rooted at the base directory, so keys can
// never resolve outside it.
type Provider struct {
	baseDir string
	fsys    fs.FS
}

var _ provider.DelimiterProvider = (*Provider)(nil)

type Config struct {
	BaseDir string
}

// New checks that BaseDir is an existing directory.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base dir is required")
	}
	base := filepath.Clean(cfg.BaseDir)
	st, err := os.Stat(base)
	if err != nil {
		return nil, wrapError("New", base, err)
	}
	if !st.IsDir() {
		return nil, &provider.ProviderError{Op: "New", Provider: provider.ProviderFile, Key: base, Err: fmt.Errorf("not a directory")}
	}
	return &Provider{baseDir: base, fsys: os.DirFS(base)}, nil
}

func (p *Provider) Close() error { return nil }

// ListWithDelimiter reads one directory.
//
// A prefix ending in "/" lists that directory. Otherwise the parent is read
// and entries are kept when their name starts with the trailing fragment,
// the way an object store matches a partial key. A missing directory lists
// as empty.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	const op = "ListWithDelimiter"
	if err := ctx.Err(); err != nil {
		return nil, wrapError(op, opts.Prefix, err)
	}
	if opts.Delimiter != "" && opts.Delimiter != provider.DefaultDelimiter {
		return nil, wrapError(op, opts.Prefix, fmt.Errorf("%w: unsupported delimiter %q", provider.ErrInvalidKey, opts.Delimiter))
	}

	dirKey, fragment := provider.SplitListPrefix(opts.Prefix)
	dir, err := fsPath(dirKey)
	if err != nil {
		return nil, wrapError(op, opts.Prefix, err)
	}

	entries, err := fs.ReadDir(p.fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return &provider.ListWithDelimiterResult{}, nil
	}
	if err != nil {
		return nil, wrapError(op, opts.Prefix, err)
	}

	items := make([]provider.DirEntry, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), fragment) {
			continue
		}
		key := dirKey + e.Name()
		if e.IsDir() {
			items = append(items, provider.DirEntry{Key: key + "/", IsDir: true})
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed since ReadDir
		}
		items = append(items, provider.DirEntry{Key: key, Object: summary(key, info)})
	}
	return provider.PageDirEntries(items, opts.ContinuationToken, opts.MaxKeys), nil
}

// List walks every file under opts.Prefix in key order.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapError("List", opts.Prefix, err)
	}
	prefix := strings.TrimPrefix(opts.Prefix, "/")
	dirKey, _ := provider.SplitListPrefix(prefix)
	root, err := fsPath(dirKey)
	if err != nil {
		return nil, wrapError("List", opts.Prefix, err)
	}

	var all []provider.ObjectSummary
	err = fs.WalkDir(p.fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasPrefix(path, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		all = append(all, summary(path, info))
		return ctx.Err()
	})
	if err != nil {
		return nil, wrapError("List", opts.Prefix, err)
	}

	// WalkDir orders by name within a directory, which is not key order
	// ("a-b" sorts before "a/c").
	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })

	start := 0
	if opts.ContinuationToken != "" {
		start = sort.Search(len(all), func(i int) bool { return all[i].Key > opts.ContinuationToken })
	}
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	end := min(start+maxKeys, len(all))

	res := &provider.ListResult{Objects: all[start:end]}
	if end < len(all) {
		res.IsTruncated = true
		res.ContinuationToken = all[end-1].Key
	}
	return res, nil
}

// Head stats one file. Directories are not objects.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapError("Head", key, err)
	}
	name, err := fsPath(key)
	if err != nil {
		return nil, wrapError("Head", key, err)
	}
	info, err := fs.Stat(p.fsys, name)
	if err != nil {
		return nil, wrapError("Head", key, err)
	}
	if info.IsDir() {
		return nil, wrapError("Head", key, provider.ErrNotFound)
	}
	return &provider.ObjectMeta{ObjectSummary: summary(name, info)}, nil
}

// fsPath turns a key or directory key into an fs.FS name. The root is ".".
func fsPath(key string) (string, error) {
	name := strings.Trim(strings.TrimSpace(key), "/")
	if name == "" {
		return ".", nil
	}
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("%w: %q", provider.ErrInvalidKey, key)
	}
	return name, nil
}

func summary(key string, info fs.FileInfo) provider.ObjectSummary {
	return provider.ObjectSummary{Key: key, Size: info.Size(), LastModified: info.ModTime()}
}

func wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Key: key, Err: err}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		wrapped.Err = provider.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
