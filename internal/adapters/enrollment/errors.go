package enrollment

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/facegate/internal/domain/model"
)

// Sentinel kinds for local photo validation.
var (
	ErrPhotoTooLarge   = errors.New("photo too large")
	ErrPhotoTooSmall   = errors.New("photo too small")
	ErrPhotoFormat     = errors.New("unsupported photo format")
	ErrEmptyInviteCode = errors.New("invite code is empty")
)

// Error is a failed submission. Detail carries the server's explanation
// verbatim so it can be shown to the user as is.
type Error struct {
	StatusCode int
	Detail     string
	Network    bool
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Network:
		return fmt.Sprintf("enrollment request failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("enrollment rejected (status %d): %s", e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("enrollment failed: %s", e.Detail)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches ErrSubmissionFailure always and ErrNetworkFailure for transport
// failures.
func (e *Error) Is(target error) bool {
	switch target {
	case model.ErrSubmissionFailure:
		return true
	case model.ErrNetworkFailure:
		return e.Network
	}
	return false
}

// Message returns the text to show the user.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Network {
		return "Network error, please check the connection and try again"
	}
	return http.StatusText(e.StatusCode)
}
