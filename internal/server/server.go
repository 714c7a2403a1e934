package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opsgrove/stockwatch/pkg/monitor"
	"github.com/opsgrove/stockwatch/pkg/storage"
)

// Server exposes health checks and a read API over the monitored entities,
// plus a manual evaluation trigger.
type Server struct {
	store  storage.Storage
	engine monitor.Evaluator
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates an API server.
func NewServer(store storage.Storage, engine monitor.Evaluator, logger *slog.Logger) *Server {
	s := &Server{
		store:  store,
		engine: engine,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/items", s.handleItems)
	s.mux.HandleFunc("GET /api/v1/rules", s.handleRules)
	s.mux.HandleFunc("GET /api/v1/notifications", s.handleNotifications)
	s.mux.HandleFunc("GET /api/v1/stock", s.handleStock)
	s.mux.HandleFunc("POST /api/v1/evaluate", s.handleEvaluate)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	includeInactive := r.URL.Query().Get("all") == "1"
	items, err := s.store.ListItems(ctx, includeInactive)
	if err != nil {
		s.logger.Error("list items", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, items)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	includeInactive := r.URL.Query().Get("all") == "1"
	rules, err := s.store.ListRules(ctx, includeInactive)
	if err != nil {
		s.logger.Error("list rules", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, rules)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.store.ListNotifications(ctx, r.URL.Query().Get("rule_id"), limit)
	if err != nil {
		s.logger.Error("list notifications", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, records)
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	productType := r.URL.Query().Get("product_type")
	if productType == "" {
		http.Error(w, "product_type is required", http.StatusBadRequest)
		return
	}

	stock, err := s.store.AvailableStock(ctx, productType)
	if err != nil {
		s.logger.Error("available stock", "product_type", productType, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]any{"product_type": productType, "stock": stock})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.EvaluateAll(r.Context())
	if err != nil {
		s.logger.Error("manual evaluation", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, summary)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}
