package api

import (
	"errors"
	"net/http"

	"github.com/okian/facegate/internal/app"
	"github.com/okian/facegate/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// Codes that are not controller error kinds.
const (
	codeBadRequest = "bad_request"
	codeNotFound   = "not_found"
	codeClosed     = "closed"
	codeInternal   = "internal"
)

// classify maps a controller error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, model.ErrInvalidCodeFormat):
		return http.StatusBadRequest, app.KindInvalidCode
	case errors.Is(err, model.ErrInviteAlreadyUsed):
		return http.StatusConflict, app.KindInviteUsed
	case errors.Is(err, app.ErrInvalidTransition):
		return http.StatusConflict, app.KindInvalidTransition
	case errors.Is(err, model.ErrCameraAccessDenied):
		return http.StatusServiceUnavailable, app.KindCameraDenied
	case errors.Is(err, model.ErrModelLoadFailure):
		return http.StatusServiceUnavailable, app.KindModelFailed
	case errors.Is(err, model.ErrSubmissionFailure):
		return http.StatusBadGateway, app.KindSubmissionFailed
	case errors.Is(err, app.ErrClosed):
		return http.StatusServiceUnavailable, codeClosed
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// userMessage returns the text meant for the kiosk user, such as the
// enrollment service's verbatim failure detail.
func userMessage(err error) string {
	var um interface{ Message() string }
	if errors.As(err, &um) && um.Message() != "" {
		return um.Message()
	}
	return err.Error()
}
