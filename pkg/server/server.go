// Package server exposes the session manager over HTTP: REST for agents,
// sessions, models, and branch navigation, plus a websocket chat stream.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prathamdby/pi-mono/pkg/models"
	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/summary"
)

// ListModelsFunc returns the models available from the provider.
type ListModelsFunc func(ctx context.Context) ([]models.Model, error)

// Server serves the API.
type Server struct {
	manager    store.Manager
	listModels ListModelsFunc
	summarizer *summary.Generator
	apiKey     string
	srv        *http.Server
}

// New creates a new Server. The summarizer may be nil, in which case branch
// navigation never summarizes.
func New(manager store.Manager, listModels ListModelsFunc, summarizer *summary.Generator, apiKey string) *Server {
	return &Server{
		manager:    manager,
		listModels: listModels,
		summarizer: summarizer,
		apiKey:     apiKey,
	}
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// API Routes
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	mux.HandleFunc("POST /api/agents", s.handleCreateUpdateAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.handleDeleteAgent)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /api/sessions/{id}/tree", s.handleGetTree)

	// Models
	mux.HandleFunc("GET /api/models", s.handleListModels)

	// Session Actions
	mux.HandleFunc("POST /api/sessions/{id}/branch", s.handleBranch)
	mux.HandleFunc("POST /api/sessions/{id}/fork", s.handleFork)
	mux.HandleFunc("POST /api/sessions/{id}/stop", s.handleStopSession)

	// WebSocket
	mux.HandleFunc("/api/sessions/{id}/chat", s.handleChatWebSocket)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.corsMiddleware(mux),
	}

	slog.Info("Starting web server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
