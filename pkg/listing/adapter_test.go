package listing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/depthls/pkg/provider"
	"github.com/3leaps/depthls/pkg/provider/memory"
)

type pagedLister struct {
	pages []*provider.ListWithDelimiterResult
	seen  []provider.ListWithDelimiterOptions
}

func (p *pagedLister) ListWithDelimiter(_ context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	idx := len(p.seen)
	p.seen = append(p.seen, opts)
	if idx >= len(p.pages) {
		return &provider.ListWithDelimiterResult{}, nil
	}
	return p.pages[idx], nil
}

func TestDelimiterAdapter_SegmentPrefix(t *testing.T) {
	src := memory.New("foo/bar/c.txt", "foo/bar_baz/x.txt", "foo/barn.txt")
	a := NewDelimiterAdapter(src)

	res, err := a.ListOneLevel(context.Background(), "foo/bar")
	require.NoError(t, err)
	assert.Equal(t, []Path{"foo/bar/c.txt"}, res.ObjectPaths())
	assert.Empty(t, res.CommonPrefixes)

	res, err = a.ListOneLevel(context.Background(), Root)
	require.NoError(t, err)
	assert.Empty(t, res.Objects)
	assert.Equal(t, []Path{"foo"}, res.CommonPrefixes)
}

func TestDelimiterAdapter_DrainsPages(t *testing.T) {
	src := &pagedLister{pages: []*provider.ListWithDelimiterResult{
		{Objects: []provider.ObjectSummary{{Key: "d/1", Size: 3}}, CommonPrefixes: []string{"d/a/"}, IsTruncated: true, ContinuationToken: "t1"},
		{Objects: []provider.ObjectSummary{{Key: "d/2"}}, CommonPrefixes: []string{"d/b/"}},
	}}
	a := &DelimiterAdapter{Source: src, PageSize: 50}

	res, err := a.ListOneLevel(context.Background(), "d")
	require.NoError(t, err)
	assert.Equal(t, []Path{"d/1", "d/2"}, res.ObjectPaths())
	assert.Equal(t, int64(3), res.Objects[0].Size)
	assert.Equal(t, []Path{"d/a", "d/b"}, res.CommonPrefixes)

	require.Len(t, src.seen, 2)
	assert.Equal(t, "d/", src.seen[0].Prefix)
	assert.Equal(t, "/", src.seen[0].Delimiter)
	assert.Equal(t, 50, src.seen[0].MaxKeys)
	assert.Equal(t, "", src.seen[0].ContinuationToken)
	assert.Equal(t, "t1", src.seen[1].ContinuationToken)
}

func TestDelimiterAdapter_SkipsDirectoryMarkers(t *testing.T) {
	src := memory.New("d/", "d/sub/", "d/file.txt")
	a := NewDelimiterAdapter(src)

	res, err := a.ListOneLevel(context.Background(), "d")
	require.NoError(t, err)
	assert.Equal(t, []Path{"d/file.txt"}, res.ObjectPaths())
	assert.Equal(t, []Path{"d/sub"}, res.CommonPrefixes)
}

func TestDelimiterAdapter_PageLimit(t *testing.T) {
	src := &pagedLister{pages: []*provider.ListWithDelimiterResult{
		{IsTruncated: true, ContinuationToken: "t1"},
		{IsTruncated: true, ContinuationToken: "t2"},
	}}
	a := &DelimiterAdapter{Source: src, MaxPages: 1}

	_, err := a.ListOneLevel(context.Background(), "d")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPageLimit)

	var listErr *ListError
	require.ErrorAs(t, err, &listErr)
	assert.Equal(t, Path("d"), listErr.Prefix)
}

func TestDelimiterAdapter_StuckToken(t *testing.T) {
	src := &pagedLister{pages: []*provider.ListWithDelimiterResult{
		{IsTruncated: true},
	}}
	_, err := NewDelimiterAdapter(src).ListOneLevel(context.Background(), Root)
	require.Error(t, err)
}

func TestDelimiterAdapter_WrapsSourceError(t *testing.T) {
	src := memory.New("foo/a")
	src.FailOn("foo/", provider.ErrAccessDenied)

	_, err := NewDelimiterAdapter(src).ListOneLevel(context.Background(), "foo")
	require.Error(t, err)
	assert.True(t, provider.IsAccessDenied(err))
	assert.Contains(t, err.Error(), "list foo:")

	var listErr *ListError
	require.True(t, errors.As(err, &listErr))
}

func TestListError_RootMessage(t *testing.T) {
	err := &ListError{Prefix: Root, Err: errors.New("boom")}
	assert.Equal(t, "list <root>: boom", err.Error())
}
