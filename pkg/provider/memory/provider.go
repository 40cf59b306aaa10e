// Package memory implements an in-process object store over an ordered B-tree.
//
// It backs tests, fixtures and the HTTP server's demo namespace. Keys are kept
// sorted, so delimiter listing is an ordered ascent from the prefix that rolls
// contiguous key ranges up into common prefixes.
package memory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/btree"

	"github.com/3leaps/depthls/pkg/provider"
)

// DefaultMaxKeys is the page size used when a request does not set MaxKeys.
const DefaultMaxKeys = 1000

// Provider is an in-memory object store.
//
// Provider is safe for concurrent use. Writes (Put, Delete, FailOn) may
// interleave with listings; each listing observes a consistent snapshot of the
// keys under its read lock.
type Provider struct {
	mu       sync.RWMutex
	objects  *btree.Map[string, provider.ObjectSummary]
	failures map[string]error
	latency  time.Duration
	maxKeys  int

	listCalls   atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.DelimiterLister   = (*Provider)(nil)
	_ provider.DelimiterProvider = (*Provider)(nil)
)

// New creates an empty store. Each key in keys is added as an empty object.
func New(keys ...string) *Provider {
	p := &Provider{
		objects:  btree.NewMap[string, provider.ObjectSummary](0),
		failures: make(map[string]error),
		maxKeys:  DefaultMaxKeys,
	}
	for _, k := range keys {
		p.Put(k, 0)
	}
	return p
}

// Put stores (or replaces) an object with the given size.
func (p *Provider) Put(key string, size int64) {
	p.PutObject(provider.ObjectSummary{Key: key, Size: size, LastModified: time.Now().UTC()})
}

// PutObject stores (or replaces) an object summary as-is.
func (p *Provider) PutObject(obj provider.ObjectSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects.Set(obj.Key, obj)
}

// Delete removes an object. Deleting a missing key is a no-op.
func (p *Provider) Delete(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects.Delete(key)
}

// Len returns the number of stored objects.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.objects.Len()
}

// FailOn makes delimiter listings of exactly prefix fail with err.
// A nil err clears the failure.
func (p *Provider) FailOn(prefix string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, prefix)
		return
	}
	p.failures[prefix] = err
}

// SetLatency delays every delimiter listing by d (honouring cancellation).
func (p *Provider) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

// SetMaxKeys overrides the default page size.
func (p *Provider) SetMaxKeys(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 {
		n = DefaultMaxKeys
	}
	p.maxKeys = n
}

// ListCalls returns how many delimiter listings have been served.
func (p *Provider) ListCalls() int64 {
	return p.listCalls.Load()
}

// MaxInFlight returns the highest number of concurrently running delimiter listings observed.
func (p *Provider) MaxInFlight() int64 {
	return p.maxInFlight.Load()
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// List returns a page of objects whose keys start with opts.Prefix.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &provider.ProviderError{Op: "List", Provider: provider.ProviderMemory, Key: opts.Prefix, Err: err}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	maxKeys := p.pageSize(opts.MaxKeys)
	start := opts.Prefix
	if opts.ContinuationToken > start {
		start = opts.ContinuationToken
	}

	res := &provider.ListResult{}
	p.objects.Ascend(start, func(key string, obj provider.ObjectSummary) bool {
		if !strings.HasPrefix(key, opts.Prefix) {
			return false
		}
		if opts.ContinuationToken != "" && key <= opts.ContinuationToken {
			return true
		}
		if len(res.Objects) == maxKeys {
			res.IsTruncated = true
			return false
		}
		res.Objects = append(res.Objects, obj)
		return true
	})
	if res.IsTruncated {
		res.ContinuationToken = res.Objects[len(res.Objects)-1].Key
	}
	return res, nil
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderMemory, Key: key, Err: err}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	obj, ok := p.objects.Get(key)
	if !ok {
		return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderMemory, Key: key, Err: provider.ErrNotFound}
	}
	return &provider.ObjectMeta{ObjectSummary: obj}, nil
}

// ListWithDelimiter returns one page of a delimiter listing.
//
// The continuation token is the last key or common prefix emitted; the next
// page resumes strictly after it, skipping the whole range of a common prefix.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	p.listCalls.Add(1)
	cur := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		prev := p.maxInFlight.Load()
		if cur <= prev || p.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	p.mu.RLock()
	latency := p.latency
	failure := p.failures[opts.Prefix]
	p.mu.RUnlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, p.wrapError(opts.Prefix, ctx.Err())
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, p.wrapError(opts.Prefix, err)
	}
	if failure != nil {
		return nil, p.wrapError(opts.Prefix, failure)
	}

	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = provider.DefaultDelimiter
	}
	token := opts.ContinuationToken
	skipRange := len(token) > len(opts.Prefix) && strings.HasSuffix(token, delimiter)

	p.mu.RLock()
	defer p.mu.RUnlock()

	maxKeys := p.pageSize(opts.MaxKeys)
	start := opts.Prefix
	if token > start {
		start = token
	}

	var (
		res     = &provider.ListWithDelimiterResult{}
		count   int
		last    string
		lastCP  string
		stopped bool
	)
	p.objects.Ascend(start, func(key string, obj provider.ObjectSummary) bool {
		if !strings.HasPrefix(key, opts.Prefix) {
			return false
		}
		if token != "" && (key <= token || (skipRange && strings.HasPrefix(key, token))) {
			return true
		}

		if cp, ok := provider.CommonPrefixOf(opts.Prefix, delimiter, key); ok {
			if cp == lastCP {
				return true
			}
			if count == maxKeys {
				stopped = true
				return false
			}
			res.CommonPrefixes = append(res.CommonPrefixes, cp)
			lastCP, last = cp, cp
			count++
			return true
		}

		if count == maxKeys {
			stopped = true
			return false
		}
		res.Objects = append(res.Objects, obj)
		last = key
		count++
		return true
	})

	if stopped {
		res.IsTruncated = true
		res.ContinuationToken = last
	}
	return res, nil
}

func (p *Provider) pageSize(requested int) int {
	if requested > 0 {
		return requested
	}
	return p.maxKeys
}

func (p *Provider) wrapError(prefix string, err error) error {
	return &provider.ProviderError{Op: "ListWithDelimiter", Provider: provider.ProviderMemory, Key: prefix, Err: err}
}
