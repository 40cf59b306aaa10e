// Package listing holds the data model shared by one-level listers and the
// depth-limited expander: paths, object entries and listing results.
package listing

import "strings"

// Delimiter separates path segments.
const Delimiter = "/"

// Path is a slash-segmented location in a namespace.
//
// A Path never carries a leading or trailing delimiter. Root is the empty path.
type Path string

// Root is the namespace root.
const Root Path = ""

// ParsePath normalizes s into a Path, dropping leading, trailing and repeated
// delimiters.
func ParsePath(s string) Path {
	if s == "" {
		return Root
	}
	parts := strings.Split(s, Delimiter)
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return Path(strings.Join(kept, Delimiter))
}

func (p Path) String() string { return string(p) }

// IsRoot reports whether p is the namespace root.
func (p Path) IsRoot() bool { return p == Root }

// Segments returns the path segments, or nil for the root.
func (p Path) Segments() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(string(p), Delimiter)
}

// Depth is the number of segments in p.
func (p Path) Depth() int {
	if p.IsRoot() {
		return 0
	}
	return strings.Count(string(p), Delimiter) + 1
}

// Child appends one segment. Delimiters inside name are kept, so Child can
// also join a relative path.
func (p Path) Child(name string) Path {
	if p.IsRoot() {
		return ParsePath(name)
	}
	return ParsePath(string(p) + Delimiter + name)
}

// Parent drops the last segment. The parent of a single-segment path and of
// the root is Root.
func (p Path) Parent() Path {
	idx := strings.LastIndex(string(p), Delimiter)
	if idx < 0 {
		return Root
	}
	return p[:idx]
}

// Base returns the last segment.
func (p Path) Base() string {
	return string(p[strings.LastIndex(string(p), Delimiter)+1:])
}

// IsPrefixOf reports whether p is a segment-wise prefix of other.
// Every path is a prefix of itself, and Root is a prefix of every path.
//
//	foo/bar  IsPrefixOf  foo/bar/x      -> true
//	foo/bar  IsPrefixOf  foo/bar_baz/x  -> false
func (p Path) IsPrefixOf(other Path) bool {
	switch {
	case p.IsRoot():
		return true
	case len(other) < len(p):
		return false
	case len(other) == len(p):
		return other == p
	}
	return strings.HasPrefix(string(other), string(p)) && other[len(p)] == '/'
}

// ListPrefix returns the raw key prefix a delimiter listing of p uses:
// "" for the root, otherwise p followed by the delimiter.
func (p Path) ListPrefix() string {
	if p.IsRoot() {
		return ""
	}
	return string(p) + Delimiter
}
