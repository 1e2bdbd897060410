// Package server exposes scans over HTTP.
//
// Routes:
//
//	POST   /scans          run a scan, store and return its manifest
//	GET    /scans          list stored scans, newest first
//	GET    /scans/{id}     fetch a stored manifest (?format=dot for Graphviz)
//	DELETE /scans/{id}     drop a stored scan
//	GET    /detectors      describe the registered detectors
//	GET    /healthz        liveness
//	GET    /metrics        Prometheus metrics, when configured
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/errors"
	"github.com/matzehuels/depscout/pkg/export"
	"github.com/matzehuels/depscout/pkg/observability"
	"github.com/matzehuels/depscout/pkg/scan"
	"github.com/matzehuels/depscout/pkg/store"
)

const maxRequestBody = 1 << 20

// Config wires a [Server].
type Config struct {
	Registry *detector.Registry
	// Options are the base scan options; request fields are applied on top.
	Options scan.Options
	// Store keeps scan history. Without it, scans are returned but not kept.
	Store store.Store
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// AllowedRoots restricts scan roots to these directories and their
	// descendants. Empty allows any directory.
	AllowedRoots []string
	// ScanTimeout bounds a single request's scan. Zero means no bound.
	ScanTimeout time.Duration
	Logger      *log.Logger
	Hooks       observability.Hooks
}

// Server handles the HTTP API.
type Server struct {
	cfg    Config
	logger *log.Logger
	hooks  observability.HTTPHooks
	router chi.Router
}

// ScanRequest is the body of POST /scans. Zero fields keep the server's
// configured defaults.
type ScanRequest struct {
	Root              string            `json:"root"`
	Categories        []string          `json:"categories,omitempty"`
	ExcludeCategories []string          `json:"excludeCategories,omitempty"`
	Detectors         []string          `json:"detectors,omitempty"`
	DisableDetectors  []string          `json:"disableDetectors,omitempty"`
	Experimental      bool              `json:"experimental,omitempty"`
	Exclude           []string          `json:"exclude,omitempty"`
	RequireDetectors  bool              `json:"requireDetectors,omitempty"`
	Args              map[string]string `json:"args,omitempty"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// New builds the router.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Options.Logger == nil {
		cfg.Options.Logger = logger
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		hooks:  cfg.Hooks.WithDefaults().HTTP,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Get("/detectors", s.detectors)
	r.Route("/scans", func(r chi.Router) {
		r.Post("/", s.createScan)
		r.Get("/", s.listScans)
		r.Get("/{id}", s.getScan)
		r.Delete("/{id}", s.deleteScan)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.hooks.OnRequest(r.Context(), r.Method, route, status, elapsed)
		s.logger.Debug("request", "method", r.Method, "route", route, "status", status,
			"duration", elapsed.Round(time.Millisecond), "request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) detectors(w http.ResponseWriter, _ *http.Request) {
	infos, err := s.cfg.Registry.Infos()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) createScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	for k := range req.Args {
		if err := errors.ValidateArgKey(k); err != nil {
			s.fail(w, err)
			return
		}
	}
	root, err := s.checkRoot(req.Root)
	if err != nil {
		s.fail(w, err)
		return
	}

	ctx := r.Context()
	if s.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScanTimeout)
		defer cancel()
	}
	res, err := scan.Run(ctx, root, s.cfg.Registry, s.options(req))
	if err != nil {
		s.fail(w, err)
		return
	}
	m := export.FromResult(res)
	if s.cfg.Store != nil {
		if err := s.cfg.Store.Save(ctx, m); err != nil {
			s.fail(w, err)
			return
		}
	}
	w.Header().Set("Location", "/scans/"+m.ScanID)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	list, err := st.List(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	m, err := st.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, m)
	case "dot":
		g, err := m.Graph()
		if err != nil {
			s.fail(w, errors.Wrap(errors.ErrCodeInternal, err, "rebuild graph"))
			return
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(export.ToDOT(g, export.Options{Detailed: true})))
	default:
		s.fail(w, errors.New(errors.ErrCodeInvalidFormat, "unknown format %q", r.URL.Query().Get("format")))
	}
}

func (s *Server) deleteScan(w http.ResponseWriter, r *http.Request) {
	st, ok := s.requireStore(w)
	if !ok {
		return
	}
	if err := st.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireStore(w http.ResponseWriter) (store.Store, bool) {
	if s.cfg.Store == nil {
		writeError(w, http.StatusNotImplemented, "NOT_CONFIGURED", "scan history is not configured")
		return nil, false
	}
	return s.cfg.Store, true
}

// options applies the request on top of the configured defaults.
func (s *Server) options(req ScanRequest) scan.Options {
	opts := s.cfg.Options
	if len(req.Categories) > 0 {
		opts.Categories = req.Categories
	}
	if len(req.ExcludeCategories) > 0 {
		opts.ExcludeCategories = req.ExcludeCategories
	}
	if len(req.Detectors) > 0 {
		opts.DetectorIDs = req.Detectors
	}
	if len(req.DisableDetectors) > 0 {
		opts.DisabledDetectorIDs = req.DisableDetectors
	}
	if len(req.Exclude) > 0 {
		opts.Exclude = append(append([]string(nil), opts.Exclude...), req.Exclude...)
	}
	opts.EnableExperimental = opts.EnableExperimental || req.Experimental
	opts.RequireDetectors = opts.RequireDetectors || req.RequireDetectors
	if len(req.Args) > 0 {
		args := detector.Args{}
		for k, v := range opts.Args {
			args[k] = v
		}
		for k, v := range req.Args {
			args[k] = v
		}
		opts.Args = args
	}
	return opts
}

// checkRoot resolves root and enforces AllowedRoots. Symlinks are resolved
// on both sides before comparing, and the resolved root is what gets
// scanned.
func (s *Server) checkRoot(root string) (string, error) {
	abs, err := errors.ValidateScanRoot(root)
	if err != nil {
		return "", err
	}
	if len(s.cfg.AllowedRoots) == 0 {
		return abs, nil
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %q", root)
	}
	for _, allowed := range s.cfg.AllowedRoots {
		base, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		if base, err = filepath.EvalSymlinks(base); err != nil {
			continue
		}
		rel, err := filepath.Rel(base, resolved)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return resolved, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidPath, "scan root %q is outside the allowed roots", root)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(errors.GetCode(err))
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	writeError(w, status, code, errors.UserMessage(err))
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidFilter,
		errors.ErrCodeInvalidPath, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidComponent:
		return http.StatusBadRequest
	case errors.ErrCodeNoDetectors:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeCanceled, errors.ErrCodeDetectorTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body ErrorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}
