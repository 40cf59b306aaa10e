package listing

import (
	"context"
	"fmt"
)

// Lister performs a single one-level listing.
//
// ListOneLevel returns the objects that are immediate children of prefix and
// the immediate child common prefixes. Implementations must have no side
// effects and be safe for concurrent use with overlapping prefixes.
type Lister interface {
	ListOneLevel(ctx context.Context, prefix Path) (*Result, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context, prefix Path) (*Result, error)

func (f ListerFunc) ListOneLevel(ctx context.Context, prefix Path) (*Result, error) {
	return f(ctx, prefix)
}

// ListError reports a failed one-level listing.
type ListError struct {
	Prefix Path
	Err    error
}

func (e *ListError) Error() string {
	prefix := string(e.Prefix)
	if prefix == "" {
		prefix = "<root>"
	}
	return fmt.Sprintf("list %s: %v", prefix, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }
