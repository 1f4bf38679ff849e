package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harukimoto/truerank/internal/store"
	"github.com/harukimoto/truerank/pkg/anime"
	"github.com/harukimoto/truerank/pkg/metrics"
	"github.com/harukimoto/truerank/pkg/rank"
	"github.com/harukimoto/truerank/pkg/report"
)

// Server provides the HTTP API.
type Server struct {
	store     store.Store
	engine    *rank.Engine
	providers []anime.Provider
	port      int
}

// New creates a new HTTP server.
func New(s store.Store, engine *rank.Engine, providers []anime.Provider, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:     s,
		engine:    engine,
		providers: providers,
		port:      port,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("truerank server listening on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Handler returns the route table. Split from ListenAndServe so tests can
// mount it on httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.instrument("/health", s.handleHealth))
	mux.HandleFunc("/api/v1/rankings", s.instrument("/api/v1/rankings", s.handleRankings))
	mux.HandleFunc("/api/v1/anime", s.instrument("/api/v1/anime", s.handleAnime))
	mux.HandleFunc("/api/v1/runs", s.instrument("/api/v1/runs", s.handleRuns))
	mux.HandleFunc("/api/v1/cohorts", s.instrument("/api/v1/cohorts", s.handleCohorts))
	mux.HandleFunc("/api/v1/rank", s.instrument("/api/v1/rank", s.handleRank))
	mux.HandleFunc("/api/v1/fetch", s.instrument("/api/v1/fetch", s.handleFetch))
	mux.HandleFunc("/report", s.instrument("/report", s.handleReport))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	return mux
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		code := strconv.Itoa(sw.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, time.Since(start).Seconds())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveRun picks the run a request refers to: ?run=<id> or the latest.
func (s *Server) resolveRun(r *http.Request) (*store.Run, error) {
	if id := r.URL.Query().Get("run"); id != "" {
		return s.store.GetRun(r.Context(), id)
	}
	return s.store.LatestRun(r.Context())
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	run, err := s.resolveRun(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	details, err := s.store.ListRankings(r.Context(), run.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":   run,
		"data":  details,
		"count": len(details),
	})
}

func (s *Server) handleAnime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.ListOpts{Limit: 100}
	if p := r.URL.Query().Get("provider"); p != "" {
		opts.Provider = anime.ProviderType(p)
	}
	if y := r.URL.Query().Get("year"); y != "" {
		if year, err := strconv.Atoi(y); err == nil {
			opts.Year = year
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			opts.Limit = limit
		}
	}

	items, err := s.store.ListAnime(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"count": len(items),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleCohorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	run, err := s.resolveRun(r)
	if err != nil {
		writeError(w, err)
		return
	}

	cohorts, err := s.store.ListCohorts(r.Context(), run.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":   run,
		"data":  cohorts,
		"count": len(cohorts),
	})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	run, res, err := s.engine.Rank(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":       run,
		"ranked":    len(res.Ranked),
		"estimated": res.EstimatedCount,
		"dropped":   res.DroppedCount,
	})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	ctx := r.Context()
	results := make(map[string]int)
	var errs []string

	for _, p := range s.providers {
		name := string(p.Name())
		start := time.Now()
		items, err := p.FetchTop(ctx)
		if err != nil {
			metrics.RecordFetchError(name)
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		metrics.ObserveFetchDuration(name, time.Since(start).Seconds())
		if err := s.store.UpsertAll(ctx, items); err != nil {
			errs = append(errs, fmt.Sprintf("%s store: %v", name, err))
			continue
		}
		metrics.RecordFetched(name, len(items))
		results[name] = len(items)
	}

	resp := map[string]any{"fetched": results}
	if len(errs) > 0 {
		resp["errors"] = errs
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	run, err := s.resolveRun(r)
	if err != nil {
		writeError(w, err)
		return
	}

	details, err := s.store.ListRankings(r.Context(), run.ID, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, run, details); err != nil {
		fmt.Printf("render report: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
