package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageDirEntries(t *testing.T) {
	entries := []DirEntry{
		{Key: "d/c"},
		{Key: "d/a/", IsDir: true},
		{Key: "d/1", Object: ObjectSummary{Size: 5}},
		{Key: "d/b/", IsDir: true},
	}

	page := PageDirEntries(entries, "", 3)
	assert.True(t, page.IsTruncated)
	assert.Equal(t, "d/b/", page.ContinuationToken)
	assert.Len(t, page.Objects, 1)
	assert.Equal(t, "d/1", page.Objects[0].Key)
	assert.Equal(t, int64(5), page.Objects[0].Size)
	assert.Equal(t, []string{"d/a/", "d/b/"}, page.CommonPrefixes)

	page = PageDirEntries(entries, page.ContinuationToken, 3)
	assert.False(t, page.IsTruncated)
	assert.Empty(t, page.ContinuationToken)
	assert.Len(t, page.Objects, 1)
	assert.Equal(t, "d/c", page.Objects[0].Key)
	assert.Empty(t, page.CommonPrefixes)
}

func TestSplitListPrefix(t *testing.T) {
	tests := []struct{ in, dir, frag string }{
		{"", "", ""},
		{"a/b/", "a/b/", ""},
		{"a/b/c", "a/b/", "c"},
		{"/abc", "", "abc"},
	}
	for _, tt := range tests {
		dir, frag := SplitListPrefix(tt.in)
		assert.Equal(t, tt.dir, dir, tt.in)
		assert.Equal(t, tt.frag, frag, tt.in)
	}
}

func TestCommonPrefixOf(t *testing.T) {
	cp, ok := CommonPrefixOf("foo/", "/", "foo/bar/c.txt")
	assert.True(t, ok)
	assert.Equal(t, "foo/bar/", cp)

	_, ok = CommonPrefixOf("foo/", "/", "foo/b.txt")
	assert.False(t, ok)

	_, ok = CommonPrefixOf("foo/", "/", "other/x")
	assert.False(t, ok)
}
