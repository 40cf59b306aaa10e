package snapshot

import (
	"context"
	"fmt"

	"github.com/3leaps/depthls/pkg/provider"
)

// CaptureOptions configures Capture.
type CaptureOptions struct {
	// BaseURI identifies the namespace root; keys are stored relative to it.
	BaseURI string

	// ProviderName is recorded for display only.
	ProviderName string

	// Prefix restricts the capture to keys starting with it.
	Prefix string

	// PageSize is passed as MaxKeys on each List call (0 = backend default).
	PageSize int

	// OnPage is called after each recorded page with the running total.
	OnPage func(recorded int64)
}

// Capture records every object src lists under opts.Prefix into a new
// snapshot and completes it. A failed capture leaves an incomplete snapshot
// that Latest never returns.
func (s *Store) Capture(ctx context.Context, src provider.Provider, opts CaptureOptions) (*Snapshot, error) {
	snap, err := s.Create(ctx, opts.BaseURI, opts.ProviderName)
	if err != nil {
		return nil, err
	}

	var (
		token    string
		recorded int64
	)
	for {
		page, err := src.List(ctx, provider.ListOptions{
			Prefix:            opts.Prefix,
			ContinuationToken: token,
			MaxKeys:           opts.PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", opts.BaseURI, err)
		}
		if err := s.Record(ctx, snap.ID, page.Objects); err != nil {
			return nil, err
		}
		recorded += int64(len(page.Objects))
		if opts.OnPage != nil {
			opts.OnPage(recorded)
		}
		if !page.IsTruncated {
			break
		}
		if page.ContinuationToken == "" || page.ContinuationToken == token {
			return nil, fmt.Errorf("capture %s: truncated page without a new continuation token", opts.BaseURI)
		}
		token = page.ContinuationToken
	}

	return s.Complete(ctx, snap.ID)
}
