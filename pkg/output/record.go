// Package output provides JSONL output for expansion results.
//
// Output is a stream of typed record envelopes: one record per object or
// common prefix found at the terminal level, error records, and a closing
// summary. Each line is a self-contained JSON object.
package output

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/depthls/pkg/expand"
	"github.com/3leaps/depthls/pkg/listing"
	"github.com/3leaps/depthls/pkg/provider"
)

// Record type constants follow the pattern depthls.<type>.v<version>.
const (
	// TypeObject identifies object records.
	TypeObject = "depthls.object.v1"

	// TypePrefix identifies common prefix records.
	TypePrefix = "depthls.prefix.v1"

	// TypeError identifies error records.
	TypeError = "depthls.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "depthls.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "depthls.object.v1").
	Type string `json:"type"`

	// TS is the time the record was written.
	TS time.Time `json:"ts"`

	// JobID correlates every record of one run.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "s3", "file").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ObjectRecord is the data payload for one object found at the terminal level.
type ObjectRecord struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero"`

	// Depth is the expansion depth the object was found at.
	Depth int `json:"depth"`
}

// NewObjectRecord converts a listing entry.
func NewObjectRecord(obj listing.ObjectEntry, depth int) *ObjectRecord {
	return &ObjectRecord{
		Key:          obj.Path.String(),
		Size:         obj.Size,
		ETag:         obj.ETag,
		LastModified: obj.LastModified,
		Depth:        depth,
	}
}

// PrefixRecord is the data payload for one common prefix found at the
// terminal level.
type PrefixRecord struct {
	Prefix string `json:"prefix"`
	Depth  int    `json:"depth"`
}

// ErrorRecord is the data payload for errors.
type ErrorRecord struct {
	// Code is a machine-readable error code (see provider.Classify).
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Prefix is the prefix being listed when the error occurred.
	Prefix string `json:"prefix,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord. Provider failures use the codes returned by
// provider.Classify.
const (
	ErrCodeAccessDenied = "ACCESS_DENIED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeThrottled    = "THROTTLED"
	ErrCodeCanceled     = "CANCELED"
	ErrCodeInternal     = "INTERNAL"
)

// NewErrorRecord builds an error record from an expansion failure, pulling
// the failing prefix out of expand.ExpandError or listing.ListError.
func NewErrorRecord(err error) *ErrorRecord {
	rec := &ErrorRecord{Code: errorCode(err), Message: err.Error()}

	var listErr *listing.ListError
	if errors.As(err, &listErr) {
		rec.Prefix = listErr.Prefix.String()
	}
	var expErr *expand.ExpandError
	if errors.As(err, &expErr) {
		if rec.Prefix == "" {
			rec.Prefix = expErr.Prefix.String()
		}
		rec.Details = map[string]any{"level": expErr.Level}
	}
	return rec
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled
	}
	return provider.Classify(err)
}

// SummaryRecord closes a run with aggregate statistics.
type SummaryRecord struct {
	// Root is the prefix the expansion started from.
	Root string `json:"root"`

	// Depth is the requested expansion depth.
	Depth int `json:"depth"`

	Objects        int64 `json:"objects"`
	CommonPrefixes int64 `json:"common_prefixes"`
	BytesTotal     int64 `json:"bytes_total"`

	// Listings is the number of one-level listings performed.
	Listings         int64 `json:"listings"`
	PrefixesExpanded int64 `json:"prefixes_expanded"`

	Duration      time.Duration `json:"duration_ns"`
	DurationHuman string        `json:"duration"`

	// Errors is the count of errors encountered.
	Errors int64 `json:"errors"`
}

// NewSummaryRecord builds a summary from expander stats and the total bytes
// of the reported objects.
func NewSummaryRecord(root listing.Path, depth int, stats expand.Stats, bytesTotal int64, elapsed time.Duration) *SummaryRecord {
	return &SummaryRecord{
		Root:             root.String(),
		Depth:            depth,
		Objects:          stats.Objects,
		CommonPrefixes:   stats.CommonPrefixes,
		BytesTotal:       bytesTotal,
		Listings:         stats.Listings,
		PrefixesExpanded: stats.PrefixesExpanded,
		Duration:         elapsed,
		DurationHuman:    elapsed.Round(time.Millisecond).String(),
	}
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // "marshal" or "write"
	Err error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
