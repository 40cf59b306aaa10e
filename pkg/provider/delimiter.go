package provider

import (
	"context"
	"strings"
)

// DefaultDelimiter separates path segments in every backend.
const DefaultDelimiter = "/"

// DelimiterLister returns one page of a one-level listing: the objects whose
// key has no delimiter after Prefix, and the distinct child prefixes
// (delimiter included) that deeper keys roll up into.
//
// This is the primitive listing.DelimiterAdapter drains page by page and the
// expander descends with. Backends map it onto their native call (S3
// ListObjectsV2 with Delimiter, minio non-recursive ListObjects, ReadDir).
type DelimiterLister interface {
	ListWithDelimiter(ctx context.Context, opts ListWithDelimiterOptions) (*ListWithDelimiterResult, error)
}

// ListWithDelimiterOptions select one page. An empty Delimiter means
// DefaultDelimiter and MaxKeys of zero lets the backend choose.
type ListWithDelimiterOptions struct {
	Prefix            string
	Delimiter         string
	ContinuationToken string
	MaxKeys           int
}

// ListWithDelimiterResult is one page. Objects and CommonPrefixes together
// count towards MaxKeys; an empty ContinuationToken ends the listing.
type ListWithDelimiterResult struct {
	Objects           []ObjectSummary
	CommonPrefixes    []string
	ContinuationToken string
	IsTruncated       bool
}

// DelimiterProvider is what internal/source hands to the expander.
type DelimiterProvider interface {
	Provider
	DelimiterLister
}

// CommonPrefixOf returns the child prefix key rolls up into under prefix,
// or false when key is a direct child. key must start with prefix.
//
//	CommonPrefixOf("foo/", "/", "foo/bar/c.txt") = "foo/bar/", true
//	CommonPrefixOf("foo/", "/", "foo/b.txt")     = "", false
func CommonPrefixOf(prefix, delimiter, key string) (string, bool) {
	if delimiter == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return "", false
	}
	head, _, found := strings.Cut(rest, delimiter)
	if !found {
		return "", false
	}
	return prefix + head + delimiter, true
}
