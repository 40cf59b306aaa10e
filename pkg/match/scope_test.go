package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/depthls/pkg/listing"
)

func sample() *listing.Result {
	return &listing.Result{
		Objects: []listing.ObjectEntry{
			{Path: "foo/bar/c.txt", Size: 10},
			{Path: "foo/bar/d.csv", Size: 2000},
			{Path: "foo/baz/e.txt", Size: 3000},
			{Path: "foo/.git/config", Size: 1},
		},
		CommonPrefixes: []listing.Path{"foo/baz/bleh", "foo/tmp", "foo/.cache"},
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(Config{Includes: []string{"foo/[abc"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	var patErr *PatternError
	require.ErrorAs(t, err, &patErr)
	assert.Equal(t, "foo/[abc", patErr.Pattern)
}

func TestScope_EmptyIncludesSelectVisible(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)

	out := s.Apply(sample())
	assert.Equal(t, []listing.Path{"foo/bar/c.txt", "foo/bar/d.csv", "foo/baz/e.txt"}, out.ObjectPaths())
	assert.Equal(t, []listing.Path{"foo/baz/bleh", "foo/tmp"}, out.CommonPrefixes)
}

func TestScope_IncludeExclude(t *testing.T) {
	s, err := New(Config{
		Includes: []string{"**/*.txt", "foo/baz/**"},
		Excludes: []string{"foo/bar/**"},
	})
	require.NoError(t, err)

	out := s.Apply(sample())
	assert.Equal(t, []listing.Path{"foo/baz/e.txt"}, out.ObjectPaths())
	assert.Equal(t, []listing.Path{"foo/baz/bleh"}, out.CommonPrefixes)
}

func TestScope_IncludeHidden(t *testing.T) {
	s, err := New(Config{IncludeHidden: true, Includes: []string{"**/.*", "**/.*/**"}})
	require.NoError(t, err)

	out := s.Apply(sample())
	assert.Equal(t, []listing.Path{"foo/.git/config"}, out.ObjectPaths())
	assert.Equal(t, []listing.Path{"foo/.cache"}, out.CommonPrefixes)
}

func TestScope_Filter(t *testing.T) {
	s, err := New(Config{Filter: &FilterConfig{Size: &SizeFilterConfig{Min: "1KB"}}})
	require.NoError(t, err)

	out := s.Apply(sample())
	assert.Equal(t, []listing.Path{"foo/bar/d.csv", "foo/baz/e.txt"}, out.ObjectPaths())
	// Metadata filters never drop prefixes.
	assert.Len(t, out.CommonPrefixes, 2)
}

func TestScope_IsZero(t *testing.T) {
	var nilScope *Scope
	assert.True(t, nilScope.IsZero())

	s, err := New(Config{IncludeHidden: true})
	require.NoError(t, err)
	assert.True(t, s.IsZero())

	s, err = New(Config{})
	require.NoError(t, err)
	assert.False(t, s.IsZero())
}

func TestScope_ApplyNil(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.True(t, s.Apply(nil).IsEmpty())
}

func TestNormalizePattern(t *testing.T) {
	assert.Equal(t, "data/2024/a.txt", NormalizePattern(`data\2024\a.txt`))
	assert.Equal(t, `data/file\*.txt`, NormalizePattern(`data/file\*.txt`))
	assert.Equal(t, "", NormalizePattern(""))
}

func TestIsHidden(t *testing.T) {
	assert.False(t, IsHidden("path/to/file.txt"))
	assert.True(t, IsHidden(".hidden/file.txt"))
	assert.True(t, IsHidden("path/to/.gitignore"))
	assert.False(t, IsHidden("path/to/file.txt."))
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1024", 1024},
		{"1KB", 1000},
		{"1kib", 1024},
		{"1.5MiB", 1572864},
		{" 2 GB ", 2_000_000_000},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "-1", "1XB", "abc", "99999999999TB"} {
		_, err := ParseSize(bad)
		assert.ErrorIs(t, err, ErrInvalidSize, bad)
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "1.5 MiB", FormatSize(1572864))
}

func TestCompileFilter_Date(t *testing.T) {
	f, err := CompileFilter(&FilterConfig{Modified: &DateFilterConfig{After: "2024-01-01", Before: "2024-02-01T00:00:00Z"}})
	require.NoError(t, err)

	in := &listing.ObjectEntry{LastModified: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}
	edge := &listing.ObjectEntry{LastModified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	out := &listing.ObjectEntry{LastModified: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	assert.True(t, f.Match(in))
	assert.True(t, f.Match(edge))
	assert.False(t, f.Match(out))
	assert.Equal(t, "modified: 2024-01-01 to 2024-02-01", f.String())

	_, err = CompileFilter(&FilterConfig{Modified: &DateFilterConfig{After: "2024-02-01", Before: "2024-01-01"}})
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = CompileFilter(&FilterConfig{Modified: &DateFilterConfig{After: "last week"}})
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestCompileFilter_Size(t *testing.T) {
	f, err := CompileFilter(&FilterConfig{Size: &SizeFilterConfig{Min: "1KiB", Max: "2KiB"}})
	require.NoError(t, err)
	assert.False(t, f.Match(&listing.ObjectEntry{Size: 1023}))
	assert.True(t, f.Match(&listing.ObjectEntry{Size: 1024}))
	assert.True(t, f.Match(&listing.ObjectEntry{Size: 2048}))
	assert.False(t, f.Match(&listing.ObjectEntry{Size: 2049}))

	_, err = CompileFilter(&FilterConfig{Size: &SizeFilterConfig{Min: "2KB", Max: "1KB"}})
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestCompileFilter_Regex(t *testing.T) {
	f, err := CompileFilter(&FilterConfig{KeyRegex: `\.csv$`})
	require.NoError(t, err)
	assert.True(t, f.Match(&listing.ObjectEntry{Path: "a/b.csv"}))
	assert.False(t, f.Match(&listing.ObjectEntry{Path: "a/b.txt"}))

	_, err = CompileFilter(&FilterConfig{KeyRegex: "("})
	assert.ErrorIs(t, err, ErrInvalidRegex)
}

func TestCompileFilter_Combined(t *testing.T) {
	f, err := CompileFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, f.Match(&listing.ObjectEntry{Path: "anything"}))
	assert.Equal(t, "no filters", f.String())

	f, err = CompileFilter(&FilterConfig{Size: &SizeFilterConfig{}, Modified: &DateFilterConfig{}})
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = CompileFilter(&FilterConfig{Size: &SizeFilterConfig{Max: "1KB"}, KeyRegex: "^x"})
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, "size: <= 1000 B, key_regex: ^x", f.String())
	assert.True(t, f.Match(&listing.ObjectEntry{Path: "x.txt", Size: 1000}))
	assert.False(t, f.Match(&listing.ObjectEntry{Path: "y.txt", Size: 10}), "regex must reject")
	assert.False(t, f.Match(&listing.ObjectEntry{Path: "x.txt", Size: 1001}), "size must reject")
}
