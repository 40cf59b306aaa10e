package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/depthls/pkg/provider"
)

// ErrPageLimit is returned when a one-level listing needs more pages than the
// adapter allows.
var ErrPageLimit = errors.New("page limit exceeded")

// DelimiterAdapter turns a paginated provider.DelimiterLister into a Lister.
type DelimiterAdapter struct {
	Source provider.DelimiterLister

	// PageSize is passed as MaxKeys on every page request (0 = backend default).
	PageSize int

	// MaxPages bounds the pages fetched for one prefix (0 = unlimited).
	MaxPages int
}

var _ Lister = (*DelimiterAdapter)(nil)

// NewDelimiterAdapter wraps src with backend-default paging.
func NewDelimiterAdapter(src provider.DelimiterLister) *DelimiterAdapter {
	return &DelimiterAdapter{Source: src}
}

// ListOneLevel drains every page of a delimiter listing under prefix.
//
// Objects whose key equals the listed prefix or ends in the delimiter are
// directory markers and are skipped.
func (a *DelimiterAdapter) ListOneLevel(ctx context.Context, prefix Path) (*Result, error) {
	listPrefix := prefix.ListPrefix()
	res := NewResult()

	var token string
	for page := 1; ; page++ {
		if a.MaxPages > 0 && page > a.MaxPages {
			return nil, &ListError{Prefix: prefix, Err: fmt.Errorf("%w: more than %d pages", ErrPageLimit, a.MaxPages)}
		}

		out, err := a.Source.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
			Prefix:            listPrefix,
			Delimiter:         Delimiter,
			ContinuationToken: token,
			MaxKeys:           a.PageSize,
		})
		if err != nil {
			return nil, &ListError{Prefix: prefix, Err: err}
		}

		for _, obj := range out.Objects {
			if obj.Key == listPrefix || strings.HasSuffix(obj.Key, Delimiter) {
				continue
			}
			res.Objects = append(res.Objects, ObjectEntry{
				Path:         Path(obj.Key),
				Size:         obj.Size,
				ETag:         obj.ETag,
				LastModified: obj.LastModified,
			})
		}
		for _, cp := range out.CommonPrefixes {
			res.CommonPrefixes = append(res.CommonPrefixes, Path(strings.TrimSuffix(cp, Delimiter)))
		}

		if !out.IsTruncated {
			return res, nil
		}
		if out.ContinuationToken == "" || out.ContinuationToken == token {
			return nil, &ListError{Prefix: prefix, Err: fmt.Errorf("truncated page without a new continuation token")}
		}
		token = out.ContinuationToken
	}
}
