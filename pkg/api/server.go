// Package api serves a read-only view of a peer's state over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/baderanaas/swapbytes/pkg/state"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes the shared state. It never touches the protocol stack.
type Server struct {
	state    *state.State
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	srv      *http.Server
}

// NewServer returns a server for st. A nil gatherer disables /metrics.
func NewServer(st *state.State, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{state: st, gatherer: gatherer, logger: logger.Named("api")}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/peers", s.handlePeers)
	r.Get("/rooms", s.handleRooms)
	r.Get("/rooms/{topic}/messages", s.handleMessages)
	r.Get("/requests", s.handleRequests)
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.state.Snapshot())
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("status API listening", zap.String("addr", addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot().Peers)
}

type roomView struct {
	Name    string `json:"name"`
	Unread  bool   `json:"unread"`
	Current bool   `json:"current"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	rooms := make([]roomView, 0, len(snap.Rooms))
	for _, name := range snap.Rooms {
		rooms = append(rooms, roomView{
			Name:    name,
			Unread:  snap.Unread[name],
			Current: name == snap.CurrentRoom,
		})
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	topic, err := url.PathUnescape(chi.URLParam(r, "topic"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid topic")
		return
	}
	if !s.state.HasHistory(topic) {
		writeError(w, http.StatusNotFound, "unknown topic")
		return
	}
	writeJSON(w, http.StatusOK, s.state.Messages(topic))
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot().Requests)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
