package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Backends translate their native failures into these sentinels so the
// expander, the JSONL writer and the HTTP layer can classify them uniformly.
var (
	ErrNotFound            = errors.New("object not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrBucketNotFound      = errors.New("bucket not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrThrottled           = errors.New("request throttled")

	// ErrInvalidKey is returned for a key or prefix the backend refuses to
	// address, such as a path escaping the base directory.
	ErrInvalidKey = errors.New("invalid key")
)

// ProviderError records which backend call failed and on what.
type ProviderError struct {
	// Op is the method name, e.g. "ListWithDelimiter".
	Op       string
	Provider ProviderType
	Bucket   string

	// Key is the object key or listing prefix.
	Key string
	Err error
}

// Error renders "<provider> <op>: [bucket[/key]]: cause".
func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: ", e.Provider, e.Op)
	switch {
	case e.Bucket != "" && e.Key != "":
		b.WriteString(e.Bucket + "/" + e.Key + ": ")
	case e.Bucket != "":
		b.WriteString(e.Bucket + ": ")
	case e.Key != "":
		b.WriteString(e.Key + ": ")
	}
	fmt.Fprintf(&b, "%v", e.Err)
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsAccessDenied(err error) bool        { return errors.Is(err, ErrAccessDenied) }
func IsBucketNotFound(err error) bool      { return errors.Is(err, ErrBucketNotFound) }
func IsInvalidCredentials(err error) bool  { return errors.Is(err, ErrInvalidCredentials) }
func IsProviderUnavailable(err error) bool { return errors.Is(err, ErrProviderUnavailable) }
func IsThrottled(err error) bool           { return errors.Is(err, ErrThrottled) }

// errorCodes is checked in order; the first sentinel found in the chain wins.
var errorCodes = []struct {
	sentinel error
	code     string
}{
	{ErrNotFound, "NOT_FOUND"},
	{ErrBucketNotFound, "NOT_FOUND"},
	{ErrAccessDenied, "ACCESS_DENIED"},
	{ErrInvalidCredentials, "ACCESS_DENIED"},
	{ErrThrottled, "THROTTLED"},
	{ErrProviderUnavailable, "UNAVAILABLE"},
	{ErrInvalidKey, "INVALID_ARGUMENT"},
}

// Classify maps err to the code used in JSONL error records and HTTP error
// bodies. Unrecognised errors are "INTERNAL"; nil is "".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.sentinel) {
			return c.code
		}
	}
	return "INTERNAL"
}
