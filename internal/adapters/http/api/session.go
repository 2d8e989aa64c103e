package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/facegate/internal/adapters/enrollment"
	"github.com/okian/facegate/internal/app"
	"github.com/okian/facegate/internal/domain/guidance"
	"github.com/okian/facegate/pkg/logger"
)

const maxRequestBody = 4 << 10

// SessionHandler serves the capture session endpoints.
type SessionHandler struct {
	ctrl Controller
	log  logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(ctrl Controller, log logger.Logger) *SessionHandler {
	return &SessionHandler{ctrl: ctrl, log: log}
}

type startRequest struct {
	InviteCode string `json:"invite_code"`
	Link       string `json:"link"`
}

type confirmResponse struct {
	State  app.PipelineState `json:"state"`
	Result enrollment.Result `json:"result"`
}

// HandleGetSession handles GET /session.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// HandleStartSession handles POST /session with an invite code or a deep link.
func (h *SessionHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	var err error
	switch {
	case strings.TrimSpace(req.Link) != "":
		err = h.ctrl.SubmitDeepLink(r.Context(), req.Link)
	default:
		err = h.ctrl.SubmitCode(r.Context(), req.InviteCode)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// HandleResetSession handles DELETE /session.
func (h *SessionHandler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Reset(r.Context()); err != nil {
		h.log.Warn(r.Context(), "reset finished with error", logger.Error(err))
	}
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// HandleConfirm handles POST /session/confirm.
func (h *SessionHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	res, err := h.ctrl.Confirm(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResponse{State: h.ctrl.State(), Result: res})
}

// HandleRetake handles POST /session/retake.
func (h *SessionHandler) HandleRetake(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Retake(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// HandlePhoto handles GET /session/photo.
func (h *SessionHandler) HandlePhoto(w http.ResponseWriter, _ *http.Request) {
	photo, ok := h.ctrl.Photo()
	if !ok || photo.Empty() {
		writeError(w, http.StatusNotFound, codeNotFound, "no photo captured")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(photo.JPEG)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Photo-Id", photo.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(photo.JPEG)
}

// guidanceResponse is the current message plus whether a blink
// confirmation is holding the display.
type guidanceResponse struct {
	guidance.Message
	Pinned bool `json:"pinned"`
}

// HandleGuidance handles GET /guidance.
func (h *SessionHandler) HandleGuidance(w http.ResponseWriter, _ *http.Request) {
	b := h.ctrl.Guidance()
	writeJSON(w, http.StatusOK, guidanceResponse{Message: b.Current(), Pinned: b.Pinned()})
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := userMessage(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "session request failed", logger.String("path", r.URL.Path), logger.String("code", code), logger.Error(err))
	}
	writeError(w, status, code, msg)
}
