// Package httpapi serves a read-only JSON view of the harvest state.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"OnionHarvester/internal/domain"
	"OnionHarvester/internal/infrastructure/proxy"
	"OnionHarvester/internal/usecase"
)

const (
	defaultPerPage = 50
	maxPerPage     = 500
)

// State is what the API reads from.
type State interface {
	Dataset() *domain.Dataset
	LastReport() (usecase.CycleReport, bool)
}

// Options wire the server.
type Options struct {
	Listen string
	State  State
	// SourceURL maps a paste key to the record key, see ports.PasteFetcher.
	SourceURL func(key string) string
	// Proxies is reported under /stats when set.
	Proxies *proxy.Pool
	Logger  *slog.Logger
}

// Server represents the status API.
type Server struct {
	opts       Options
	router     *mux.Router
	httpServer *http.Server
	logger     *slog.Logger
}

type statsResponse struct {
	domain.Stats
	LastCycle *usecase.CycleReport `json:"lastCycle,omitempty"`
	Proxies   *proxy.PoolStats     `json:"proxies,omitempty"`
}

type pastesResponse struct {
	Records []domain.PasteRecord `json:"records"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"per_page"`
}

// NewServer creates the router and the underlying http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{opts: opts, logger: logger.With("component", "httpapi")}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              opts.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	s.router.HandleFunc("/pastes", s.listPastes).Methods(http.MethodGet)
	s.router.HandleFunc("/pastes/{key:[A-Za-z0-9]+}", s.getPaste).Methods(http.MethodGet)
	s.router.Use(s.requestLogging)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("status api listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe binds the configured address and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{Stats: domain.ComputeStats(s.opts.State.Dataset().Snapshot())}
	if report, ok := s.opts.State.LastReport(); ok {
		resp.LastCycle = &report
	}
	if s.opts.Proxies != nil {
		snapshot := s.opts.Proxies.Snapshot()
		resp.Proxies = &snapshot
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listPastes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parseIntParam(query.Get("page"), 1)
	perPage := parseIntParam(query.Get("per_page"), defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	records := s.opts.State.Dataset().Snapshot()
	start := (page - 1) * perPage
	if start > len(records) {
		start = len(records)
	}
	end := start + perPage
	if end > len(records) {
		end = len(records)
	}

	writeJSON(w, http.StatusOK, pastesResponse{
		Records: records[start:end],
		Total:   len(records),
		Page:    page,
		PerPage: perPage,
	})
}

func (s *Server) getPaste(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if s.opts.SourceURL == nil {
		http.Error(w, "lookup unavailable", http.StatusNotImplemented)
		return
	}
	record, ok := s.opts.State.Dataset().Lookup(s.opts.SourceURL(key))
	if !ok {
		http.Error(w, "paste not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntParam(raw string, def int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}
