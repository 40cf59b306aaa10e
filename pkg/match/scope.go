package match

import (
	"errors"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/depthls/pkg/listing"
)

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Config configures a Scope.
type Config struct {
	// Includes are glob patterns an entry must match (at least one).
	// Empty means every entry is included.
	Includes []string

	// Excludes are glob patterns an entry must not match.
	Excludes []string

	// IncludeHidden keeps entries with a path segment starting with '.'.
	IncludeHidden bool

	// Filter applies metadata constraints to objects. Optional.
	Filter *FilterConfig
}

// Scope selects entries of an expanded listing. It never changes how the
// listing is produced, only which of its entries are reported.
//
// A Scope is safe for concurrent use after creation.
type Scope struct {
	includes      []string
	excludes      []string
	includeHidden bool
	filter        *ObjectFilter
}

// New compiles a Scope. All patterns are validated up front.
func New(cfg Config) (*Scope, error) {
	includes, err := compile(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compile(cfg.Excludes)
	if err != nil {
		return nil, err
	}
	filter, err := CompileFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	return &Scope{
		includes:      includes,
		excludes:      excludes,
		includeHidden: cfg.IncludeHidden,
		filter:        filter,
	}, nil
}

func compile(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		p := NormalizePattern(r)
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: r, Err: ErrInvalidPattern}
		}
		out = append(out, p)
	}
	return out, nil
}

// IsZero reports whether the scope selects everything.
func (s *Scope) IsZero() bool {
	return s == nil || (len(s.includes) == 0 && len(s.excludes) == 0 && s.includeHidden && s.filter == nil)
}

// MatchKey applies the include, exclude and hidden rules to key.
func (s *Scope) MatchKey(key string) bool {
	return s.matchForms(key)
}

// matchForms matches when any form is included and no form is excluded.
func (s *Scope) matchForms(forms ...string) bool {
	if !s.includeHidden && IsHidden(forms[0]) {
		return false
	}
	if len(s.includes) > 0 && !anyMatch(s.includes, forms) {
		return false
	}
	return !anyMatch(s.excludes, forms)
}

// MatchObject applies the key rules and the metadata filter to obj.
func (s *Scope) MatchObject(obj *listing.ObjectEntry) bool {
	if !s.MatchKey(string(obj.Path)) {
		return false
	}
	return s.filter.Match(obj)
}

// MatchPrefix applies the key rules to a common prefix, both as a plain path
// ("foo/bar") and in directory form ("foo/bar/").
func (s *Scope) MatchPrefix(p listing.Path) bool {
	return s.matchForms(string(p), p.ListPrefix())
}

// Apply returns a new Result holding the entries of res selected by s.
func (s *Scope) Apply(res *listing.Result) *listing.Result {
	out := listing.NewResult()
	if res == nil {
		return out
	}
	for i := range res.Objects {
		if s.MatchObject(&res.Objects[i]) {
			out.Objects = append(out.Objects, res.Objects[i])
		}
	}
	for _, cp := range res.CommonPrefixes {
		if s.MatchPrefix(cp) {
			out.CommonPrefixes = append(out.CommonPrefixes, cp)
		}
	}
	return out
}

func anyMatch(patterns, keys []string) bool {
	for _, p := range patterns {
		for _, k := range keys {
			// Patterns were validated in New.
			if ok, _ := doublestar.Match(p, k); ok {
				return true
			}
		}
	}
	return false
}
