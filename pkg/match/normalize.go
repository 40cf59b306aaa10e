// Package match scopes expanded listings with doublestar include/exclude
// globs and object metadata filters.
package match

import (
	"strings"
)

// NormalizePattern rewrites path separators in a user pattern to "/".
//
// A backslash followed by a glob metacharacter is an escape and is kept;
// any other backslash is a Windows separator.
//
//	`data\2024\a.txt` -> "data/2024/a.txt"
//	`data/file\*.txt` -> `data/file\*.txt`
func NormalizePattern(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c != '\\':
			b.WriteByte(c)
		case i+1 < len(pattern) && strings.IndexByte(`*?[]{}\`, pattern[i+1]) >= 0:
			b.WriteByte(c)
			b.WriteByte(pattern[i+1])
			i++
		default:
			b.WriteByte('/')
		}
	}
	return b.String()
}

// IsHidden reports whether a segment of key starts with a dot.
func IsHidden(key string) bool {
	return strings.HasPrefix(key, ".") || strings.Contains(key, "/.")
}
