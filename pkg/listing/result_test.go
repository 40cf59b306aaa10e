package listing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_Merge(t *testing.T) {
	a := &Result{Objects: []ObjectEntry{{Path: "x/1"}}, CommonPrefixes: []Path{"x/a"}}
	b := &Result{Objects: []ObjectEntry{{Path: "y/1"}, {Path: "y/2"}}}

	r := NewResult().Merge(a, nil, b)
	assert.Equal(t, []Path{"x/1", "y/1", "y/2"}, r.ObjectPaths())
	assert.Equal(t, []Path{"x/a"}, r.CommonPrefixes)
	assert.Equal(t, 4, r.Len())

	// Merging does not alias the inputs.
	r.Objects[0].Path = "changed"
	assert.Equal(t, Path("x/1"), a.Objects[0].Path)
}

func TestResult_Sort(t *testing.T) {
	r := &Result{
		Objects:        []ObjectEntry{{Path: "foo/baz/e.txt"}, {Path: "foo/bar/d.txt"}, {Path: "foo/bar/c.txt"}},
		CommonPrefixes: []Path{"z", "a"},
	}
	r.Sort()
	assert.Equal(t, []Path{"foo/bar/c.txt", "foo/bar/d.txt", "foo/baz/e.txt"}, r.ObjectPaths())
	assert.Equal(t, []Path{"a", "z"}, r.CommonPrefixes)
}

func TestResult_IsEmpty(t *testing.T) {
	var nilResult *Result
	assert.True(t, nilResult.IsEmpty())
	assert.Equal(t, 0, nilResult.Len())
	assert.True(t, NewResult().IsEmpty())
	assert.False(t, (&Result{CommonPrefixes: []Path{"a"}}).IsEmpty())
}

func TestResult_JSONEmptyArrays(t *testing.T) {
	b, err := json.Marshal(NewResult())
	require.NoError(t, err)
	assert.JSONEq(t, `{"objects":[],"common_prefixes":[]}`, string(b))
}
