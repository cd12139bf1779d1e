// Package api exposes the read/query surface over the trade store and a
// trigger endpoint for the ingestion engine. The engine itself may run in a
// separate worker process; the two share only the persisted store.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/HubDub0522/InsiderTape/internal/formsync"
	"github.com/HubDub0522/InsiderTape/internal/model"
	"github.com/HubDub0522/InsiderTape/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	store  store.Store
	engine *formsync.Engine
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(st store.Store, engine *formsync.Engine) *Server {
	s := &Server{store: st, engine: engine}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router. Used by tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the server and shuts down gracefully when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/trades", s.handleTrades)
		r.Post("/sync", s.handleSync)
		r.Get("/status", s.handleStatus)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	filter := model.TradeFilter{
		Ticker:  r.URL.Query().Get("ticker"),
		Insider: r.URL.Query().Get("insider"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	trades, err := s.store.FindTrades(r.Context(), filter)
	if err != nil {
		zap.L().Error("find trades failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(trades),
		"trades": trades,
	})
}

// handleSync triggers a run asynchronously and returns immediately; progress
// is observable via /api/status.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuartersBack int  `json:"quarters_back"`
		Force        bool `json:"force"`
		Live         bool `json:"live"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if s.engine.Tracker().Snapshot().Running {
		writeError(w, http.StatusConflict, "a sync run is already in progress")
		return
	}

	go func() {
		// Detached from the request context: the run outlives the response.
		err := s.engine.Run(context.Background(), formsync.RunOpts{
			QuartersBack: req.QuartersBack,
			Force:        req.Force,
			Live:         req.Live,
		})
		if err != nil {
			zap.L().Error("triggered sync failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.engine.Tracker().Snapshot()

	quarters, err := s.store.ListSync(r.Context())
	if err != nil {
		zap.L().Error("list sync failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if quarters == nil {
		quarters = []model.SyncEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":      snapshot,
		"sync_log": quarters,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
