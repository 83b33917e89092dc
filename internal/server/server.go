package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/apitoken"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/ratelimit"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/util"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/pkg/domain"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/pkg/history"
)

// Request bodies carry base64 data-URI images, so allow a few megabytes.
const maxBodyBytes = 8 << 20

const heartbeatInterval = 15 * time.Second

// Config wires required dependencies for the HTTP server.
type Config struct {
	History                 *history.Store
	TokenVerifier           *apitoken.Verifier
	CORSOrigins             []string
	RedisClient             *redis.Client
	WriteRateLimitPerMinute int
}

// Server exposes the history HTTP API.
type Server struct {
	history       *history.Store
	tokenVerifier *apitoken.Verifier
	corsOrigins   []string
	writeLimiter  *ratelimit.FixedWindowLimiter
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.History == nil {
		return nil, fmt.Errorf("server requires a history store")
	}
	s := &Server{
		history:       cfg.History,
		tokenVerifier: cfg.TokenVerifier,
		corsOrigins:   cfg.CORSOrigins,
		mux:           http.NewServeMux(),
	}
	if cfg.WriteRateLimitPerMinute > 0 {
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.RedisClient, "lookbook:history:ratelimit:write", cfg.WriteRateLimitPerMinute, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init write limiter: %w", err)
		}
		s.writeLimiter = limiter
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.corsOrigins, util.WithRequestID(util.WithRequestLog("history", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/api/history/inputs", s.authenticated(s.handleInputs))
	s.mux.Handle("/api/history/outputs", s.authenticated(s.handleOutputs))
	s.mux.Handle("/api/history/outputs/", s.authenticated(s.handleOutputByID))
	s.mux.Handle("/api/history/events", s.authenticated(s.handleEvents))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticated guards a route with the API token when one is configured.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenVerifier == nil {
			next(w, r)
			return
		}
		token, ok := apitoken.BearerToken(r)
		if !ok {
			s.audit(r, "history.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := s.tokenVerifier.Verify(token); err != nil {
			s.audit(r, "history.authorize", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

// /api/history/inputs
func (s *Server) handleInputs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items := s.history.Inputs(r.Context())
		if items == nil {
			items = []domain.InputRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	case http.MethodPost:
		if !s.allowWrite(w, r) {
			return
		}
		var attempt domain.OutfitAttempt
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&attempt); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		s.history.AddInput(r.Context(), attempt)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case http.MethodDelete:
		if !s.allowWrite(w, r) {
			return
		}
		s.history.ClearInputs(r.Context())
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// /api/history/outputs
func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items := s.history.Outputs(r.Context())
		if r.URL.Query().Get("sort") == "score" {
			items = history.SortedByScore(items)
		}
		if items == nil {
			items = []domain.OutputRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	case http.MethodPost:
		if !s.allowWrite(w, r) {
			return
		}
		var req outputRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Image) == "" {
			writeError(w, http.StatusBadRequest, "image is required")
			return
		}
		s.history.AddOutput(r.Context(), req.Image)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	case http.MethodDelete:
		if !s.allowWrite(w, r) {
			return
		}
		s.history.ClearOutputs(r.Context())
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// /api/history/outputs/{id}
func (s *Server) handleOutputByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/history/outputs/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		s.handleEvaluateOutput(w, r, id)
	case http.MethodDelete:
		if !s.allowWrite(w, r) {
			return
		}
		s.history.RemoveOutput(r.Context(), id)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleEvaluateOutput(w http.ResponseWriter, r *http.Request, id string) {
	if !s.allowWrite(w, r) {
		return
	}
	var req evaluationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Score == nil {
		writeError(w, http.StatusBadRequest, "score is required")
		return
	}
	eval := domain.Evaluation{
		Score:      *req.Score,
		Reasoning:  strings.TrimSpace(req.Reasoning),
		ModelLabel: strings.TrimSpace(req.ModelLabel),
	}
	if req.EvaluatedAt != nil {
		eval.EvaluatedAt = *req.EvaluatedAt
	}
	eval = eval.Clamped()
	s.history.UpdateOutput(r.Context(), id, history.OutputPatch{Evaluation: &eval})
	for _, rec := range s.history.Outputs(r.Context()) {
		if rec.ID == id {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeError(w, http.StatusNotFound, "output not found")
}

// /api/history/events streams a change event whenever either sequence moves.
// Events carry no payload, clients re-read the lists they care about.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := make(chan struct{}, 8)
	unsubscribe := s.history.Subscribe(func() {
		select {
		case events <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	fmt.Fprint(w, "event: ready\ndata: {}\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-events:
			fmt.Fprint(w, "event: change\ndata: {}\n\n")
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type outputRequest struct {
	Image string `json:"image"`
}

type evaluationRequest struct {
	Score       *int       `json:"score"`
	Reasoning   string     `json:"reasoning,omitempty"`
	ModelLabel  string     `json:"modelLabel,omitempty"`
	EvaluatedAt *time.Time `json:"evaluatedAt,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, true),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowWrite(w http.ResponseWriter, r *http.Request) bool {
	if s.writeLimiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, true)
	if s.writeLimiter.Allow(key) {
		return true
	}
	s.audit(r, "history.write", "rate_limited")
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "too many requests")
	return false
}
