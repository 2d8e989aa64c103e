package app

import "errors"

// Sentinel kinds for controller errors.
var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the current state.
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")
)

// Error kinds reported in PipelineState.ErrorKind and by the HTTP layer.
const (
	KindInvalidCode       = "invalid_code"
	KindInviteUsed        = "invite_used"
	KindCameraDenied      = "camera_denied"
	KindModelFailed       = "model_failed"
	KindSubmissionFailed  = "submission_failed"
	KindInvalidTransition = "invalid_transition"
)
