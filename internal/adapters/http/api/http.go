// Package api exposes the capture controller to the kiosk page over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/facegate/internal/adapters/enrollment"
	"github.com/okian/facegate/internal/app"
	"github.com/okian/facegate/internal/domain/guidance"
	"github.com/okian/facegate/internal/domain/model"
	"github.com/okian/facegate/pkg/logger"
)

// Controller is the session surface the handlers drive. *app.Controller
// implements it.
type Controller interface {
	SubmitCode(ctx context.Context, raw string) error
	SubmitDeepLink(ctx context.Context, link string) error
	Confirm(ctx context.Context) (enrollment.Result, error)
	Retake(ctx context.Context) error
	Reset(ctx context.Context) error
	State() app.PipelineState
	Photo() (model.CapturedPhoto, bool)
	Guidance() *guidance.Board
	StatsProvider
}

// Server wires HTTP routes for the kiosk API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	sessionHandler *SessionHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(ctrl Controller, log logger.Logger) *Server {
	if log == nil {
		log = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(ctrl),
		sessionHandler: NewSessionHandler(ctrl, log),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /session", MetricsMiddleware(s.sessionHandler.HandleGetSession, "session"))
	mux.HandleFunc("POST /session", MetricsMiddleware(s.sessionHandler.HandleStartSession, "session"))
	mux.HandleFunc("DELETE /session", MetricsMiddleware(s.sessionHandler.HandleResetSession, "session"))
	mux.HandleFunc("POST /session/confirm", MetricsMiddleware(s.sessionHandler.HandleConfirm, "confirm"))
	mux.HandleFunc("POST /session/retake", MetricsMiddleware(s.sessionHandler.HandleRetake, "retake"))
	mux.HandleFunc("GET /session/photo", MetricsMiddleware(s.sessionHandler.HandlePhoto, "photo"))
	mux.HandleFunc("GET /guidance", MetricsMiddleware(s.sessionHandler.HandleGuidance, "guidance"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	if ec, ok := w.(errorCoder); ok {
		ec.setErrorCode(code)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
