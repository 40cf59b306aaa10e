package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/depthls/pkg/provider"
)

func fixture() *Provider {
	return New("a.txt", "foo/b.txt", "foo/bar/c.txt", "foo/bar/d.txt", "foo/bar_baz/x.txt")
}

func keys(objs []provider.ObjectSummary) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Key)
	}
	return out
}

func TestListWithDelimiter_Root(t *testing.T) {
	p := fixture()

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, keys(res.Objects))
	assert.Equal(t, []string{"foo/"}, res.CommonPrefixes)
	assert.False(t, res.IsTruncated)
}

func TestListWithDelimiter_Nested(t *testing.T) {
	p := fixture()

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "foo/", Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo/b.txt"}, keys(res.Objects))
	assert.Equal(t, []string{"foo/bar/", "foo/bar_baz/"}, res.CommonPrefixes)

	res, err = p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "foo/bar/", Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo/bar/c.txt", "foo/bar/d.txt"}, keys(res.Objects))
	assert.Empty(t, res.CommonPrefixes)
}

func TestListWithDelimiter_Pagination(t *testing.T) {
	p := New("p/1", "p/a/x", "p/a/y", "p/a/z", "p/b/x", "p/c", "p/d/q")

	var (
		objects  []string
		prefixes []string
		token    string
		pages    int
	)
	for {
		res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{
			Prefix: "p/", Delimiter: "/", MaxKeys: 2, ContinuationToken: token,
		})
		require.NoError(t, err)
		pages++
		objects = append(objects, keys(res.Objects)...)
		prefixes = append(prefixes, res.CommonPrefixes...)
		if !res.IsTruncated {
			break
		}
		token = res.ContinuationToken
	}

	assert.Equal(t, []string{"p/1", "p/c"}, objects)
	assert.Equal(t, []string{"p/a/", "p/b/", "p/d/"}, prefixes)
	assert.Equal(t, 3, pages)
}

func TestListWithDelimiter_FailOn(t *testing.T) {
	p := fixture()
	boom := errors.New("boom")
	p.FailOn("foo/", boom)

	_, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "foo/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var provErr *provider.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "foo/", provErr.Key)
	assert.Equal(t, provider.ProviderMemory, provErr.Provider)

	p.FailOn("foo/", nil)
	_, err = p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "foo/"})
	require.NoError(t, err)
}

func TestListWithDelimiter_LatencyHonoursCancel(t *testing.T) {
	p := fixture()
	p.SetLatency(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), p.ListCalls())
}

func TestList_FlatPagination(t *testing.T) {
	p := fixture()

	res, err := p.List(context.Background(), provider.ListOptions{Prefix: "foo/", MaxKeys: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo/b.txt", "foo/bar/c.txt"}, keys(res.Objects))
	require.True(t, res.IsTruncated)

	res, err = p.List(context.Background(), provider.ListOptions{Prefix: "foo/", MaxKeys: 2, ContinuationToken: res.ContinuationToken})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo/bar/d.txt", "foo/bar_baz/x.txt"}, keys(res.Objects))
	assert.False(t, res.IsTruncated)
}

func TestHeadAndDelete(t *testing.T) {
	p := New()
	p.Put("k", 42)
	assert.Equal(t, 1, p.Len())

	meta, err := p.Head(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(42), meta.Size)

	p.Delete("k")
	_, err = p.Head(context.Background(), "k")
	assert.True(t, provider.IsNotFound(err))
}
