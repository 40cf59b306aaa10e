//go:build cloudintegration

package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/depthls/pkg/expand"
	"github.com/3leaps/depthls/pkg/listing"
	"github.com/3leaps/depthls/test/cloudtest"
)

func TestProvider_ExpandAgainstEndpoint(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	cloudtest.PutKeys(t, ctx, bucket,
		"foo/bar/c.txt",
		"foo/bar/d.txt",
		"foo/baz/e.txt",
		"foo/baz/bleh/f.txt",
		"top.txt",
	)

	p, err := New(ctx, Config{
		Bucket:          bucket,
		Region:          cloudtest.Region,
		Endpoint:        cloudtest.Endpoint,
		AccessKeyID:     cloudtest.AccessKeyID,
		SecretAccessKey: cloudtest.SecretAccessKey,
		MaxKeys:         2,
	})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	adapter := listing.NewDelimiterAdapter(p)
	adapter.PageSize = 2

	res, err := expand.ListWithDepth(ctx, adapter, listing.ParsePath("foo"), 1)
	require.NoError(t, err)
	res.Sort()
	assert.Equal(t, []listing.Path{"foo/bar/c.txt", "foo/bar/d.txt", "foo/baz/e.txt"}, res.ObjectPaths())
	assert.Equal(t, []listing.Path{"foo/baz/bleh"}, res.CommonPrefixes)

	res, err = expand.ListWithDepth(ctx, adapter, listing.Root, 0)
	require.NoError(t, err)
	assert.Equal(t, []listing.Path{"top.txt"}, res.ObjectPaths())
	assert.Equal(t, []listing.Path{"foo"}, res.CommonPrefixes)
}
