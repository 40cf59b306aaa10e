package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/3leaps/depthls/internal/errors"
	"github.com/3leaps/depthls/internal/observability"
	"github.com/3leaps/depthls/internal/source"
	"github.com/3leaps/depthls/pkg/expand"
	"github.com/3leaps/depthls/pkg/listing"
	"github.com/3leaps/depthls/pkg/match"
	"github.com/3leaps/depthls/pkg/snapshot"
)

// ListConfig bounds what GET /v1/list may do.
type ListConfig struct {
	// Options open the backend. SnapshotDB is only used for source=snapshot.
	Options source.Options

	// MaxDepth is the largest accepted depth. Zero means no limit.
	MaxDepth int

	MaxInFlight int
	RateLimit   float64
	PageSize    int
	MaxPages    int

	// Timeout bounds one request's expansion. Zero means no limit.
	Timeout time.Duration
}

// ListResponse is the body of a successful GET /v1/list.
type ListResponse struct {
	URI      string          `json:"uri"`
	Depth    int             `json:"depth"`
	Provider string          `json:"provider"`
	Snapshot string          `json:"snapshot_id,omitempty"`
	Result   *listing.Result `json:"result"`
	Stats    expand.Stats    `json:"stats"`
	Duration string          `json:"duration"`
}

// ListHandler serves depth-limited listings over HTTP.
type ListHandler struct {
	cfg  ListConfig
	open func(ctx context.Context, u *source.ObjectURI, opts source.Options) (*source.Source, error)
}

// NewListHandler returns a handler using cfg.
func NewListHandler(cfg ListConfig) *ListHandler {
	return &ListHandler{cfg: cfg, open: source.Open}
}

// listRequest is a validated query.
type listRequest struct {
	uri      *source.ObjectURI
	depth    int
	sort     bool
	snapshot bool
	scope    *match.Scope
}

func badRequest(w http.ResponseWriter, r *http.Request, param string, err error) {
	apperrors.Write(w, r, http.StatusBadRequest, apperrors.ErrorBody{
		Code:    apperrors.CodeBadRequest,
		Message: err.Error(),
		Details: map[string]any{"param": param},
	})
}

func (h *ListHandler) parse(w http.ResponseWriter, r *http.Request) (*listRequest, bool) {
	q := r.URL.Query()
	req := &listRequest{}

	raw := q.Get("uri")
	if raw == "" {
		badRequest(w, r, "uri", errors.New("uri is required"))
		return nil, false
	}
	u, err := source.ParseURI(raw)
	if err != nil {
		badRequest(w, r, "uri", err)
		return nil, false
	}
	req.uri = u

	if v := q.Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			badRequest(w, r, "depth", fmt.Errorf("depth must be a non-negative integer, got %q", v))
			return nil, false
		}
		req.depth = d
	}
	if h.cfg.MaxDepth > 0 && req.depth > h.cfg.MaxDepth {
		badRequest(w, r, "depth", fmt.Errorf("depth %d exceeds the server limit of %d", req.depth, h.cfg.MaxDepth))
		return nil, false
	}

	if v := q.Get("sort"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, r, "sort", fmt.Errorf("sort must be a boolean, got %q", v))
			return nil, false
		}
		req.sort = b
	}

	switch v := strings.ToLower(q.Get("source")); v {
	case "", "live":
	case "snapshot":
		if h.cfg.Options.SnapshotDB == "" {
			badRequest(w, r, "source", errors.New("no snapshot database is configured"))
			return nil, false
		}
		req.snapshot = true
	default:
		badRequest(w, r, "source", fmt.Errorf("source must be live or snapshot, got %q", v))
		return nil, false
	}

	scopeCfg := match.Config{
		Includes:      q["include"],
		Excludes:      q["exclude"],
		IncludeHidden: true,
	}
	if v := q.Get("include_hidden"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, r, "include_hidden", fmt.Errorf("include_hidden must be a boolean, got %q", v))
			return nil, false
		}
		scopeCfg.IncludeHidden = b
	}
	scope, err := match.New(scopeCfg)
	if err != nil {
		badRequest(w, r, "include", err)
		return nil, false
	}
	req.scope = scope

	return req, true
}

// ServeHTTP handles GET /v1/list?uri=&depth=&sort=&include=&exclude=&source=.
func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parse(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	opts := h.cfg.Options
	if !req.snapshot {
		opts.SnapshotDB = ""
	}
	src, err := h.open(ctx, req.uri, opts)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			apperrors.Write(w, r, http.StatusNotFound, apperrors.ErrorBody{
				Code:    apperrors.CodeNotFound,
				Message: err.Error(),
				Details: map[string]any{"root": req.uri.Root()},
			})
			return
		}
		respondWithError(w, r, err)
		return
	}
	defer func() { _ = src.Close() }()

	adapter := listing.NewDelimiterAdapter(src.Provider)
	adapter.PageSize = h.cfg.PageSize
	adapter.MaxPages = h.cfg.MaxPages

	e := expand.New(adapter, expand.Config{
		MaxInFlight: h.cfg.MaxInFlight,
		RateLimit:   h.cfg.RateLimit,
		Logger:      observability.CLILogger,
	})

	start := time.Now()
	res, err := e.Expand(ctx, src.Prefix(), req.depth)
	if err != nil {
		observability.CLILogger.Warn("List request failed",
			zap.String("uri", req.uri.String()),
			zap.Int("depth", req.depth),
			zap.String("request_id", apperrors.RequestID(r.Context())),
			zap.Error(err),
		)
		respondWithError(w, r, err)
		return
	}
	if !req.scope.IsZero() {
		res = req.scope.Apply(res)
	}
	if req.sort {
		res.Sort()
	}

	resp := ListResponse{
		URI:      req.uri.String(),
		Depth:    req.depth,
		Provider: src.Kind.String(),
		Result:   res,
		Stats:    e.Stats(),
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if src.Snapshot != nil {
		resp.Snapshot = src.Snapshot.ID
	}
	writeJSON(w, http.StatusOK, resp)
}
