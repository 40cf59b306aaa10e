package output

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/3leaps/depthls/pkg/listing"
)

// Writer receives expansion output one record at a time. Implementations
// must be safe for concurrent use, since Expander.Walk callers may write
// from the goroutine that finished a subtree.
type Writer interface {
	WriteObject(ctx context.Context, obj *ObjectRecord) error
	WritePrefix(ctx context.Context, prefix *PrefixRecord) error
	WriteError(ctx context.Context, err *ErrorRecord) error
	WriteSummary(ctx context.Context, sum *SummaryRecord) error
	Close() error
}

var _ Writer = (*JSONLWriter)(nil)

// JSONLWriter writes one envelope per line. Lines are encoded before the
// lock is taken and written whole under it, so concurrent writers never
// interleave.
type JSONLWriter struct {
	jobID    string
	provider string

	mu     sync.Mutex
	out    io.Writer
	closed bool
}

// NewJSONLWriter stamps jobID and provider on every envelope written to w.
func NewJSONLWriter(w io.Writer, jobID, provider string) *JSONLWriter {
	return &JSONLWriter{out: w, jobID: jobID, provider: provider}
}

func (jw *JSONLWriter) WriteObject(ctx context.Context, obj *ObjectRecord) error {
	return jw.write(ctx, TypeObject, obj)
}

func (jw *JSONLWriter) WritePrefix(ctx context.Context, prefix *PrefixRecord) error {
	return jw.write(ctx, TypePrefix, prefix)
}

func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.write(ctx, TypeError, err)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.write(ctx, TypeSummary, sum)
}

// Close rejects further writes. The underlying io.Writer stays open.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	jw.closed = true
	jw.mu.Unlock()
	return nil
}

// envelope mirrors Record with an unencoded payload.
type envelope struct {
	Type     string    `json:"type"`
	TS       time.Time `json:"ts"`
	JobID    string    `json:"job_id"`
	Provider string    `json:"provider"`
	Data     any       `json:"data"`
}

// encodeLine renders one newline-terminated record. HTML escaping is off so
// keys containing '&', '<' or '>' stay readable.
func (jw *JSONLWriter) encodeLine(recordType string, data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(envelope{
		Type:     recordType,
		TS:       time.Now().UTC(),
		JobID:    jw.jobID,
		Provider: jw.provider,
		Data:     data,
	})
	if err != nil {
		return nil, &WriteError{Op: "marshal", Err: err}
	}
	return buf.Bytes(), nil
}

func (jw *JSONLWriter) write(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := jw.encodeLine(recordType, data)
	if err != nil {
		return err
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeFull(jw.out, line); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeFull retries short writes; io.Writer may return n < len(p) with a nil
// error, and a truncated line would corrupt the stream.
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		switch {
		case err != nil:
			return err
		case n == 0:
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// WriteResult writes the objects of res, then its common prefixes, tagged
// with depth. It returns the summed object size written so far, also on error.
func WriteResult(ctx context.Context, w Writer, res *listing.Result, depth int) (int64, error) {
	var total int64
	for _, obj := range res.Objects {
		if err := w.WriteObject(ctx, NewObjectRecord(obj, depth)); err != nil {
			return total, err
		}
		total += obj.Size
	}
	for _, cp := range res.CommonPrefixes {
		if err := w.WritePrefix(ctx, &PrefixRecord{Prefix: cp.String(), Depth: depth}); err != nil {
			return total, err
		}
	}
	return total, nil
}
