package app

import (
	"context"

	"github.com/okian/facegate/internal/adapters/enrollment"
	"github.com/okian/facegate/internal/domain/model"
)

// FrameSource delivers camera frames.
type FrameSource interface {
	// Open acquires the camera. Failures wrap model.ErrCameraAccessDenied.
	Open(ctx context.Context) error
	// NextFrame blocks for the next frame, or until ctx ends.
	NextFrame(ctx context.Context) (model.Frame, error)
	// Pause stops frame delivery without releasing the device.
	Pause()
	// Resume restarts frame delivery after Pause.
	Resume()
	// Close releases the device.
	Close() error
}

// LandmarkDetector finds faces and eye landmarks in a frame.
type LandmarkDetector interface {
	// Load prepares the model. Failures wrap model.ErrModelLoadFailure.
	Load(ctx context.Context) error
	Detect(ctx context.Context, f model.Frame) ([]model.Face, error)
	Close() error
}

// Submitter sends the confirmed photo to the enrollment service.
type Submitter interface {
	Submit(ctx context.Context, photo model.CapturedPhoto, code model.InviteCode) (enrollment.Result, error)
}

// PhotoEncoder encodes the frozen frame once.
type PhotoEncoder interface {
	Encode(f model.Frame) (data []byte, width, height int, err error)
}

// userMessage is implemented by errors that carry text meant for the user.
type userMessage interface {
	Message() string
}
