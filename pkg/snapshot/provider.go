package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/depthls/pkg/provider"
)

// scanBatch is the number of rows read per seek.
const scanBatch = 256

// Provider serves listings of one recorded snapshot.
type Provider struct {
	store *Store
	id    string
}

var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.DelimiterLister   = (*Provider)(nil)
	_ provider.DelimiterProvider = (*Provider)(nil)
)

// Provider returns a read-only provider over snapshot id.
func (s *Store) Provider(id string) *Provider {
	return &Provider{store: s, id: id}
}

// SnapshotID returns the snapshot being served.
func (p *Provider) SnapshotID() string { return p.id }

// Close does not close the underlying store.
func (p *Provider) Close() error { return nil }

// scan reads up to limit rows with key after lower (or at lower when inclusive).
func (p *Provider) scan(ctx context.Context, lower string, inclusive bool, limit int) ([]provider.ObjectSummary, error) {
	op := ">"
	if inclusive {
		op = ">="
	}
	rows, err := p.store.db.QueryContext(ctx,
		`SELECT key, size_bytes, last_modified, etag FROM objects
		 WHERE snapshot_id = ? AND key `+op+` ?
		 ORDER BY key LIMIT ?`, p.id, lower, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []provider.ObjectSummary
	for rows.Next() {
		var (
			obj          provider.ObjectSummary
			lastModified sql.NullString
			etag         sql.NullString
		)
		if err := rows.Scan(&obj.Key, &obj.Size, &lastModified, &etag); err != nil {
			return nil, err
		}
		if lastModified.Valid {
			t, err := parseTime(lastModified.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_modified for %s: %w", obj.Key, err)
			}
			obj.LastModified = t
		}
		obj.ETag = etag.String
		out = append(out, obj)
	}
	return out, rows.Err()
}

// ListWithDelimiter lists one level by seeking through the ordered key index.
//
// Once a key rolls up into a common prefix, the scan jumps straight past
// every key under that prefix, so a listing costs one seek per child rather
// than one row per descendant.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = provider.DefaultDelimiter
	}
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	lower, inclusive := opts.Prefix, true
	if token := opts.ContinuationToken; token != "" && token >= opts.Prefix {
		lower, inclusive = token, false
		if len(token) > len(opts.Prefix) && strings.HasSuffix(token, delimiter) {
			lower, inclusive = successor(token), true
		}
	}

	res := &provider.ListWithDelimiterResult{}
	count := 0
	for {
		batch, err := p.scan(ctx, lower, inclusive, scanBatch)
		if err != nil {
			return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
		}

		reseek := false
		for _, obj := range batch {
			if !strings.HasPrefix(obj.Key, opts.Prefix) {
				return res, nil
			}
			if count == maxKeys {
				res.IsTruncated = true
				return res, nil
			}
			count++

			if cp, ok := provider.CommonPrefixOf(opts.Prefix, delimiter, obj.Key); ok {
				res.CommonPrefixes = append(res.CommonPrefixes, cp)
				res.ContinuationToken = cp
				lower, inclusive = successor(cp), true
				reseek = true
				break
			}
			res.Objects = append(res.Objects, obj)
			res.ContinuationToken = obj.Key
			lower, inclusive = obj.Key, false
		}
		if !reseek && len(batch) < scanBatch {
			res.ContinuationToken = ""
			return res, nil
		}
	}
}

// successor returns the smallest string greater than every string prefixed
// by s. s must be non-empty and end in a byte below 0xff, which holds for
// delimiter-terminated prefixes.
func successor(s string) string {
	b := []byte(s)
	b[len(b)-1]++
	return string(b)
}

func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	lower, inclusive := opts.Prefix, true
	if opts.ContinuationToken != "" && opts.ContinuationToken >= opts.Prefix {
		lower, inclusive = opts.ContinuationToken, false
	}

	batch, err := p.scan(ctx, lower, inclusive, maxKeys+1)
	if err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}

	res := &provider.ListResult{}
	for _, obj := range batch {
		if !strings.HasPrefix(obj.Key, opts.Prefix) {
			break
		}
		if len(res.Objects) == maxKeys {
			res.IsTruncated = true
			res.ContinuationToken = res.Objects[len(res.Objects)-1].Key
			break
		}
		res.Objects = append(res.Objects, obj)
	}
	return res, nil
}

func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	batch, err := p.scan(ctx, key, true, 1)
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	if len(batch) == 0 || batch[0].Key != key {
		return nil, p.wrapError("Head", key, provider.ErrNotFound)
	}
	return &provider.ObjectMeta{ObjectSummary: batch[0]}, nil
}

func (p *Provider) wrapError(op, key string, err error) error {
	if errors.Is(err, sql.ErrConnDone) {
		err = fmt.Errorf("%w: %v", provider.ErrProviderUnavailable, err)
	}
	return &provider.ProviderError{Op: op, Provider: provider.ProviderSnapshot, Bucket: p.id, Key: key, Err: err}
}
