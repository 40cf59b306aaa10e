package match

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/3leaps/depthls/pkg/listing"
)

// FilterConfig holds object metadata constraints from flags or config files.
// Filters see only what a one-level listing returns; they never issue requests.
type FilterConfig struct {
	Size     *SizeFilterConfig `json:"size,omitempty" yaml:"size,omitempty"`
	Modified *DateFilterConfig `json:"modified,omitempty" yaml:"modified,omitempty"`

	// KeyRegex is matched against the full object path.
	KeyRegex string `json:"key_regex,omitempty" yaml:"key_regex,omitempty"`
}

// SizeFilterConfig bounds are inclusive and take units ("1KB", "100MiB").
type SizeFilterConfig struct {
	Min string `json:"min,omitempty" yaml:"min,omitempty"`
	Max string `json:"max,omitempty" yaml:"max,omitempty"`
}

// DateFilterConfig is a half-open window [After, Before). Values are dates
// ("2024-01-15", midnight UTC) or RFC 3339 timestamps.
type DateFilterConfig struct {
	After  string `json:"after,omitempty" yaml:"after,omitempty"`
	Before string `json:"before,omitempty" yaml:"before,omitempty"`
}

var (
	ErrInvalidSize  = errors.New("invalid size value")
	ErrInvalidDate  = errors.New("invalid date value")
	ErrInvalidRegex = errors.New("invalid regex pattern")
)

// ObjectFilter is the conjunction of the constraints in a FilterConfig.
// A nil *ObjectFilter matches everything.
type ObjectFilter struct {
	checks []check
}

type check struct {
	desc  string
	match func(*listing.ObjectEntry) bool
}

// CompileFilter validates cfg. It returns nil when cfg sets no constraint.
func CompileFilter(cfg *FilterConfig) (*ObjectFilter, error) {
	if cfg == nil {
		return nil, nil
	}
	var checks []check

	if cfg.Size != nil {
		c, err := sizeCheck(cfg.Size)
		if err != nil {
			return nil, err
		}
		if c != nil {
			checks = append(checks, *c)
		}
	}
	if cfg.Modified != nil {
		c, err := dateCheck(cfg.Modified)
		if err != nil {
			return nil, err
		}
		if c != nil {
			checks = append(checks, *c)
		}
	}
	if cfg.KeyRegex != "" {
		re, err := regexp.Compile(cfg.KeyRegex)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRegex, err)
		}
		checks = append(checks, check{
			desc:  "key_regex: " + cfg.KeyRegex,
			match: func(o *listing.ObjectEntry) bool { return re.MatchString(string(o.Path)) },
		})
	}

	if len(checks) == 0 {
		return nil, nil
	}
	return &ObjectFilter{checks: checks}, nil
}

// Match reports whether obj passes every constraint.
func (f *ObjectFilter) Match(obj *listing.ObjectEntry) bool {
	if f == nil {
		return true
	}
	for _, c := range f.checks {
		if !c.match(obj) {
			return false
		}
	}
	return true
}

// Len is the number of active constraints.
func (f *ObjectFilter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.checks)
}

func (f *ObjectFilter) String() string {
	if f.Len() == 0 {
		return "no filters"
	}
	parts := make([]string, len(f.checks))
	for i, c := range f.checks {
		parts[i] = c.desc
	}
	return strings.Join(parts, ", ")
}

func sizeCheck(cfg *SizeFilterConfig) (*check, error) {
	lo, hi := int64(-1), int64(-1)
	var err error
	if cfg.Min != "" {
		if lo, err = ParseSize(cfg.Min); err != nil {
			return nil, fmt.Errorf("min size: %w", err)
		}
	}
	if cfg.Max != "" {
		if hi, err = ParseSize(cfg.Max); err != nil {
			return nil, fmt.Errorf("max size: %w", err)
		}
	}

	var desc string
	switch {
	case lo >= 0 && hi >= 0:
		if lo > hi {
			return nil, fmt.Errorf("%w: min (%d) > max (%d)", ErrInvalidSize, lo, hi)
		}
		desc = fmt.Sprintf("size: %s - %s", FormatSize(lo), FormatSize(hi))
	case lo >= 0:
		desc = "size: >= " + FormatSize(lo)
	case hi >= 0:
		desc = "size: <= " + FormatSize(hi)
	default:
		return nil, nil
	}
	return &check{desc: desc, match: func(o *listing.ObjectEntry) bool {
		return (lo < 0 || o.Size >= lo) && (hi < 0 || o.Size <= hi)
	}}, nil
}

func dateCheck(cfg *DateFilterConfig) (*check, error) {
	var after, before time.Time
	var err error
	if cfg.After != "" {
		if after, err = ParseDate(cfg.After); err != nil {
			return nil, fmt.Errorf("after date: %w", err)
		}
	}
	if cfg.Before != "" {
		if before, err = ParseDate(cfg.Before); err != nil {
			return nil, fmt.Errorf("before date: %w", err)
		}
	}

	const day = "2006-01-02"
	var desc string
	switch {
	case !after.IsZero() && !before.IsZero():
		if !after.Before(before) {
			return nil, fmt.Errorf("%w: after (%s) >= before (%s)", ErrInvalidDate, after, before)
		}
		desc = fmt.Sprintf("modified: %s to %s", after.Format(day), before.Format(day))
	case !after.IsZero():
		desc = "modified: on/after " + after.Format(day)
	case !before.IsZero():
		desc = "modified: before " + before.Format(day)
	default:
		return nil, nil
	}
	return &check{desc: desc, match: func(o *listing.ObjectEntry) bool {
		return (after.IsZero() || !o.LastModified.Before(after)) &&
			(before.IsZero() || o.LastModified.Before(before))
	}}, nil
}

// ParseSize parses "1024", "1.5GB" or "100MiB". KB, MB and GB are powers of
// 1000; KiB, MiB and GiB powers of 1024. Units are case-insensitive.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSize, s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q overflows int64", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// FormatSize renders bytes with base-2 units, e.g. "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return humanize.IBytes(uint64(bytes))
}

// ParseDate accepts "2006-01-02" (midnight UTC) or RFC 3339 and returns UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
