package listing

import (
	"sort"
	"time"
)

// ObjectEntry identifies a discovered object.
type ObjectEntry struct {
	Path         Path      `json:"path" yaml:"path"`
	Size         int64     `json:"size" yaml:"size"`
	ETag         string    `json:"etag,omitempty" yaml:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero" yaml:"last_modified,omitempty"`
}

// Result is the objects and common prefixes found at one level of one subtree.
//
// Both slices are unordered unless Sort has been called.
type Result struct {
	Objects        []ObjectEntry `json:"objects" yaml:"objects"`
	CommonPrefixes []Path        `json:"common_prefixes" yaml:"common_prefixes"`
}

// NewResult returns an empty result with non-nil slices, so it encodes as
// empty JSON arrays.
func NewResult() *Result {
	return &Result{Objects: []ObjectEntry{}, CommonPrefixes: []Path{}}
}

// Merge appends the objects and common prefixes of every non-nil result in
// others into r. No deduplication is done.
func (r *Result) Merge(others ...*Result) *Result {
	nObj, nCP := 0, 0
	for _, o := range others {
		if o != nil {
			nObj += len(o.Objects)
			nCP += len(o.CommonPrefixes)
		}
	}
	r.Objects = grow(r.Objects, nObj)
	r.CommonPrefixes = grow(r.CommonPrefixes, nCP)
	for _, o := range others {
		if o == nil {
			continue
		}
		r.Objects = append(r.Objects, o.Objects...)
		r.CommonPrefixes = append(r.CommonPrefixes, o.CommonPrefixes...)
	}
	return r
}

func grow[T any](s []T, n int) []T {
	if s == nil {
		return make([]T, 0, n)
	}
	if cap(s)-len(s) >= n {
		return s
	}
	out := make([]T, len(s), len(s)+n)
	copy(out, s)
	return out
}

// Sort orders objects and common prefixes by Path, in place.
func (r *Result) Sort() *Result {
	sort.Slice(r.Objects, func(i, j int) bool { return r.Objects[i].Path < r.Objects[j].Path })
	sort.Slice(r.CommonPrefixes, func(i, j int) bool { return r.CommonPrefixes[i] < r.CommonPrefixes[j] })
	return r
}

// IsEmpty reports whether r holds neither objects nor common prefixes.
func (r *Result) IsEmpty() bool {
	return r == nil || (len(r.Objects) == 0 && len(r.CommonPrefixes) == 0)
}

// Len is the total number of entries.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Objects) + len(r.CommonPrefixes)
}

// ObjectPaths returns the paths of all objects, in result order.
func (r *Result) ObjectPaths() []Path {
	out := make([]Path, 0, len(r.Objects))
	for _, o := range r.Objects {
		out = append(out, o.Path)
	}
	return out
}
