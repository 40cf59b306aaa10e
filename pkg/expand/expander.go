// Package expand implements depth-limited recursive listing on top of a
// one-level listing primitive.
//
// Expand(prefix, N) lists prefix, then descends into every common prefix
// found, N times. Only the terminal level is returned: the objects and common
// prefixes that exist exactly N hops below prefix. Intermediate levels are
// consumed by the descent and never surfaced.
//
// Sibling subtrees are listed concurrently. The number of one-level listings
// in flight at any moment is bounded by Config.MaxInFlight, and the first
// failing subtree cancels its siblings and fails the whole call.
package expand

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/3leaps/depthls/pkg/listing"
)

// DefaultMaxInFlight is the default bound on concurrent one-level listings.
const DefaultMaxInFlight = 256

var (
	// ErrInvalidDepth is returned for a negative depth.
	ErrInvalidDepth = errors.New("invalid depth")

	// ErrTaskAborted is returned when an expansion task terminates abnormally
	// (panics) without producing a result or an error.
	ErrTaskAborted = errors.New("expansion task aborted")
)

// ExpandError reports the subtree whose listing failed.
type ExpandError struct {
	// Prefix is the prefix being listed when the failure happened.
	Prefix listing.Path

	// Level is the descent level of Prefix relative to the expansion root (root = 0).
	Level int

	Err error
}

func (e *ExpandError) Error() string {
	prefix := string(e.Prefix)
	if prefix == "" {
		prefix = "<root>"
	}
	return fmt.Sprintf("expand %s (level %d): %v", prefix, e.Level, e.Err)
}

func (e *ExpandError) Unwrap() error { return e.Err }

// Config tunes an Expander.
type Config struct {
	// MaxInFlight bounds concurrently running one-level listings.
	// Zero or negative uses DefaultMaxInFlight.
	MaxInFlight int

	// RateLimit caps one-level listings per second. Zero means unlimited.
	RateLimit float64

	// Logger receives debug logs per listing. Nil uses a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{MaxInFlight: DefaultMaxInFlight}
}

// Stats are cumulative counters over every call made on an Expander.
type Stats struct {
	// Listings is the number of one-level listings performed.
	Listings int64 `json:"listings"`

	// PrefixesExpanded counts prefixes whose common prefixes were descended into.
	PrefixesExpanded int64 `json:"prefixes_expanded"`

	// Objects and CommonPrefixes count entries found at the terminal level.
	Objects        int64 `json:"objects"`
	CommonPrefixes int64 `json:"common_prefixes"`
}

// Expander performs depth-limited expansion. It is safe for concurrent use.
type Expander struct {
	lister  listing.Lister
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	log     *zap.Logger

	listings       atomic.Int64
	expanded       atomic.Int64
	objects        atomic.Int64
	commonPrefixes atomic.Int64
}

// New returns an Expander listing through l.
func New(l listing.Lister, cfg Config) *Expander {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	e := &Expander{
		lister: l,
		sem:    semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		log:    cfg.Logger,
	}
	if cfg.RateLimit > 0 {
		burst := max(1, int(cfg.RateLimit))
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return e
}

// ListWithDepth expands prefix with the default configuration.
func ListWithDepth(ctx context.Context, l listing.Lister, prefix listing.Path, depth int) (*listing.Result, error) {
	return New(l, DefaultConfig()).Expand(ctx, prefix, depth)
}

// Stats returns a snapshot of the counters.
func (e *Expander) Stats() Stats {
	return Stats{
		Listings:         e.listings.Load(),
		PrefixesExpanded: e.expanded.Load(),
		Objects:          e.objects.Load(),
		CommonPrefixes:   e.commonPrefixes.Load(),
	}
}

// Expand returns the objects and common prefixes found exactly depth levels
// below prefix.
//
// Depth 0 returns the one-level listing of prefix unchanged. A depth beyond
// the bottom of the namespace yields an empty result. Any failed listing fails
// the whole call; no partial result is returned. If ctx is cancelled the
// context error is returned as-is.
//
// The order of the returned entries is unspecified; call Result.Sort when a
// deterministic order is needed.
func (e *Expander) Expand(ctx context.Context, prefix listing.Path, depth int) (res *listing.Result, err error) {
	if depth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	defer e.recoverTask(prefix, 0, &err)

	res, err = e.expand(ctx, prefix, depth, 0)
	if err != nil {
		return nil, callerError(ctx, err)
	}
	return res, nil
}

// callerError reports ctx's own error when err stems from the caller
// cancelling. A listing failure that merely races with cancellation keeps
// its prefix.
func callerError(ctx context.Context, err error) error {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ctxErr
	}
	return err
}

func (e *Expander) expand(ctx context.Context, prefix listing.Path, remaining, level int) (*listing.Result, error) {
	res, err := e.listOne(ctx, prefix, level)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		e.countTerminal(res)
		return res, nil
	}
	if len(res.CommonPrefixes) == 0 {
		return listing.NewResult(), nil
	}
	e.expanded.Add(1)

	// Each child owns its slot until the join below.
	children := make([]*listing.Result, len(res.CommonPrefixes))
	err = e.fanOut(ctx, res.CommonPrefixes, level+1, func(ctx context.Context, i int, child listing.Path) error {
		r, err := e.expand(ctx, child, remaining-1, level+1)
		if err != nil {
			return err
		}
		children[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing.NewResult().Merge(children...), nil
}

// Walk streams the terminal-level listings of an expansion to fn instead of
// merging them.
//
// fn is called once per terminal subtree listing, never concurrently. A
// non-nil error from fn aborts the walk and is returned unchanged.
func (e *Expander) Walk(ctx context.Context, prefix listing.Path, depth int, fn func(*listing.Result) error) (err error) {
	if depth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	defer e.recoverTask(prefix, 0, &err)

	var mu sync.Mutex
	emit := func(r *listing.Result) error {
		mu.Lock()
		defer mu.Unlock()
		return fn(r)
	}

	if err = e.walk(ctx, prefix, depth, 0, emit); err != nil {
		return callerError(ctx, err)
	}
	return nil
}

func (e *Expander) walk(ctx context.Context, prefix listing.Path, remaining, level int, emit func(*listing.Result) error) error {
	res, err := e.listOne(ctx, prefix, level)
	if err != nil {
		return err
	}
	if remaining == 0 {
		e.countTerminal(res)
		return emit(res)
	}
	if len(res.CommonPrefixes) == 0 {
		return nil
	}
	e.expanded.Add(1)

	return e.fanOut(ctx, res.CommonPrefixes, level+1, func(ctx context.Context, _ int, child listing.Path) error {
		return e.walk(ctx, child, remaining-1, level+1, emit)
	})
}

// fanOut runs fn for every child concurrently and waits for all of them.
// The first error cancels the context handed to the remaining children.
func (e *Expander) fanOut(ctx context.Context, children []listing.Path, level int, fn func(context.Context, int, listing.Path) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range children {
		g.Go(func() (err error) {
			defer e.recoverTask(child, level, &err)
			return fn(gctx, i, child)
		})
	}
	return g.Wait()
}

// listOne performs one bounded, rate-limited one-level listing. The in-flight
// slot is held only for the listing call itself, never while children run.
func (e *Expander) listOne(ctx context.Context, prefix listing.Path, level int) (*listing.Result, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &ExpandError{Prefix: prefix, Level: level, Err: err}
		}
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, &ExpandError{Prefix: prefix, Level: level, Err: err}
	}

	start := time.Now()
	res, err := func() (*listing.Result, error) {
		defer e.sem.Release(1)
		return e.lister.ListOneLevel(ctx, prefix)
	}()
	e.listings.Add(1)

	if err != nil {
		e.log.Debug("Listing failed",
			zap.String("prefix", string(prefix)),
			zap.Int("level", level),
			zap.Error(err))
		return nil, &ExpandError{Prefix: prefix, Level: level, Err: err}
	}
	if res == nil {
		res = listing.NewResult()
	}

	e.log.Debug("Listed prefix",
		zap.String("prefix", string(prefix)),
		zap.Int("level", level),
		zap.Int("objects", len(res.Objects)),
		zap.Int("common_prefixes", len(res.CommonPrefixes)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (e *Expander) countTerminal(res *listing.Result) {
	e.objects.Add(int64(len(res.Objects)))
	e.commonPrefixes.Add(int64(len(res.CommonPrefixes)))
}

func (e *Expander) recoverTask(prefix listing.Path, level int, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	e.log.Error("Expansion task panicked",
		zap.String("prefix", string(prefix)),
		zap.Int("level", level),
		zap.Any("panic", r))
	*errp = &ExpandError{Prefix: prefix, Level: level, Err: fmt.Errorf("%w: %v", ErrTaskAborted, r)}
}
