package model

import "errors"

// Sentinel error kinds surfaced by the capture pipeline. Adapters wrap these so
// callers can classify failures with errors.Is.
var (
	// ErrInvalidCodeFormat is a local, non-fatal rejection of an invite code.
	ErrInvalidCodeFormat = errors.New("invalid invite code format")
	// ErrInviteAlreadyUsed marks a code that already completed enrollment on this device.
	ErrInviteAlreadyUsed = errors.New("invite code already used on this device")
	// ErrCameraAccessDenied is fatal for the current attempt.
	ErrCameraAccessDenied = errors.New("camera access denied")
	// ErrModelLoadFailure is fatal for the current attempt.
	ErrModelLoadFailure = errors.New("landmark model load failed")
	// ErrSubmissionFailure is recoverable: the captured photo is kept.
	ErrSubmissionFailure = errors.New("enrollment submission failed")
	// ErrNetworkFailure is a transport failure; it is always also a submission failure.
	ErrNetworkFailure = errors.New("network failure")
)
