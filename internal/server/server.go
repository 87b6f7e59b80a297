package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"feedback-engine/internal/analytics"
	"feedback-engine/internal/conversation"
	"feedback-engine/internal/extract"
	"feedback-engine/internal/llm"
	"feedback-engine/internal/storage"
)

// Server exposes the feedback engine over HTTP. All conversation state is
// carried by the client; handlers only parse input, delegate and encode the
// result.
type Server struct {
	engine *conversation.Engine
	store  storage.Store
	client llm.Client
	server *http.Server
	port   int
}

func New(engine *conversation.Engine, store storage.Store, client llm.Client, port int) *Server {
	return &Server{
		engine: engine,
		store:  store,
		client: client,
		port:   port,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/submit_feedback", s.handleSubmitFeedback)
	mux.HandleFunc("/submit_followup", s.handleSubmitFollowup)
	mux.HandleFunc("/analytics/summary", s.handleAnalyticsSummary)
	mux.HandleFunc("/analytics/top-focus-areas", s.handleTopFocusAreas)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     corsMiddleware(mux),
		ReadTimeout: 30 * time.Second,
		// Model calls dominate request latency; the write timeout has to
		// outlast them.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("🌐 Starting feedback server on http://localhost:%d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// corsMiddleware allows browser clients from any origin; the reference
// deployment serves a static recording widget from a different host.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// writeEngineError maps the error taxonomy onto HTTP statuses: validation
// failures are the caller's fault, analytics empty states are not-found with
// the specific emptiness named, everything else is a server-side failure.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrInvalidScore),
		errors.Is(err, conversation.ErrMissingInput),
		errors.Is(err, conversation.ErrAudioUnsupported),
		errors.Is(err, conversation.ErrBadHistory),
		errors.Is(err, analytics.ErrBadDateFilter):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, analytics.ErrNoRecords),
		errors.Is(err, analytics.ErrNoneInRange),
		errors.Is(err, analytics.ErrNoNegative),
		errors.Is(err, analytics.ErrNoFeedbackText):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, extract.ErrNoPayload),
		errors.Is(err, conversation.ErrBadModelField):
		http.Error(w, "failed to parse model response: "+err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
