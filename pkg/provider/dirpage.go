package provider

import (
	"sort"
	"strings"
)

// DirEntry is one entry of a directory-style backend listing.
type DirEntry struct {
	// Key is the full key; directory keys end with the delimiter.
	Key   string
	IsDir bool

	// Object holds size and timestamps for files.
	Object ObjectSummary
}

// PageDirEntries turns one directory's entries into a delimiter-listing page.
//
// Entries are ordered by key, those at or before token are dropped, and at
// most maxKeys entries are returned. Directory entries become common prefixes.
func PageDirEntries(entries []DirEntry, token string, maxKeys int) *ListWithDelimiterResult {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	res := &ListWithDelimiterResult{}
	count := 0
	for _, e := range entries {
		if token != "" && e.Key <= token {
			continue
		}
		if count == maxKeys {
			res.IsTruncated = true
			break
		}
		count++
		res.ContinuationToken = e.Key
		if e.IsDir {
			res.CommonPrefixes = append(res.CommonPrefixes, e.Key)
			continue
		}
		obj := e.Object
		obj.Key = e.Key
		res.Objects = append(res.Objects, obj)
	}
	if !res.IsTruncated {
		res.ContinuationToken = ""
	}
	return res
}

// SplitListPrefix splits a listing prefix into the directory key it lives in
// and the trailing name fragment: "a/b/c" -> ("a/b/", "c").
func SplitListPrefix(prefix string) (dir, fragment string) {
	prefix = strings.TrimPrefix(prefix, "/")
	idx := strings.LastIndex(prefix, DefaultDelimiter) + 1
	return prefix[:idx], prefix[idx:]
}
