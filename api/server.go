// Package api provides the read-side HTTP server. It serves the latest
// persisted snapshot per symbol straight out of the data lake, plus a
// news endpoint and a websocket feed of pipeline events. It carries no
// extraction logic of its own.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"github.com/rvellore/etfscope/internal/config"
	"github.com/rvellore/etfscope/internal/lake"
	"github.com/rvellore/etfscope/internal/news"
	"github.com/rvellore/etfscope/internal/pipeline"
	"github.com/rvellore/etfscope/pkg/models"
)

// Runner executes one pipeline pass, reporting progress to sink. The
// server uses it for on-demand refreshes; extraction stays out of the
// api package.
type Runner func(ctx context.Context, sink pipeline.EventSink) models.PipelineRunResult

// Server is the read-side HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	lake   *lake.Lake
	news   *news.Service
	runner Runner
	wsHub  *WSHub

	runMu   sync.Mutex
	running bool
}

// NewServer creates a configured API server with all routes and
// middleware. runner may be nil, which disables the refresh endpoint.
func NewServer(cfg *config.Config, lk *lake.Lake, nw *news.Service, runner Runner) *Server {
	srv := &Server{
		cfg:    cfg,
		lake:   lk,
		news:   nw,
		runner: runner,
		wsHub:  NewWSHub(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown on
// SIGINT/SIGTERM.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
		log.Info("shutting down API server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(ctx)
	}
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.API.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/etfs", func(r chi.Router) {
			r.Get("/", s.handleListETFs)
			r.Get("/{symbol}", s.handleETF)
			r.Get("/{symbol}/holdings", s.handleHoldings)
			r.Get("/{symbol}/news", s.handleNews)
		})

		r.Post("/pipeline/run", s.handlePipelineRun)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "healthy"},
	})
}

func (s *Server) handleListETFs(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.lake.Symbols()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: symbols})
}

func (s *Server) handleETF(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	snap, err := s.lake.Latest(symbol)
	if err != nil {
		if errors.Is(err, lake.ErrNoSnapshot) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	snap, err := s.lake.Latest(symbol)
	if err != nil {
		if errors.Is(err, lake.ErrNoSnapshot) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	holdings := snap.Holdings
	if holdings == nil {
		holdings = []models.HoldingRecord{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: holdings})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	articles, err := s.news.FundNews(r.Context(), symbol, limit)
	if err != nil {
		// News is best-effort: a broken feed degrades to an empty list.
		log.WithFields(log.Fields{"symbol": symbol, "cause": err.Error()}).Warn("news fetch failed")
		articles = nil
	}
	if articles == nil {
		articles = []models.NewsArticle{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: articles})
}

// handlePipelineRun triggers a pipeline pass in the background. Progress
// is broadcast over the websocket feed; only one run may be in flight.
func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline refresh not enabled")
		return
	}

	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		writeError(w, http.StatusConflict, "pipeline run already in progress")
		return
	}
	s.running = true
	s.runMu.Unlock()

	go func() {
		defer func() {
			s.runMu.Lock()
			s.running = false
			s.runMu.Unlock()
		}()
		s.runner(context.Background(), s.broadcastEvent)
	}()

	writeJSON(w, http.StatusAccepted, APIResponse{
		Success: true,
		Data:    map[string]string{"status": "started"},
	})
}

// broadcastEvent forwards a pipeline event onto the websocket feed.
func (s *Server) broadcastEvent(ev pipeline.Event) {
	s.wsHub.Broadcast(WSMessage{Type: "pipeline_event", Data: ev})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("cause", err.Error()).Error("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
