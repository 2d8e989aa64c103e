package app

import (
	"time"

	"github.com/okian/facegate/internal/domain/guidance"
	"github.com/okian/facegate/internal/domain/lighting"
)

// State is a capture pipeline state.
type State int

const (
	StateCodeEntry State = iota
	StateModelLoading
	StateDetecting
	StateFrozen
	StateSubmitting
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateCodeEntry:    "code_entry",
	StateModelLoading: "model_loading",
	StateDetecting:    "detecting",
	StateFrozen:       "frozen",
	StateSubmitting:   "submitting",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PipelineState is a point-in-time snapshot of the session.
type PipelineState struct {
	SessionID      string           `json:"session_id"`
	State          State            `json:"state"`
	Invite         string           `json:"invite,omitempty"`
	Round          uint64           `json:"round"`
	BlinkLatched   bool             `json:"blink_latched"`
	Lighting       lighting.Level   `json:"lighting"`
	Brightness     float64          `json:"brightness"`
	ModelLoaded    bool             `json:"model_loaded"`
	CameraAcquired bool             `json:"camera_acquired"`
	CameraPaused   bool             `json:"camera_paused"`
	HasPhoto       bool             `json:"has_photo"`
	PhotoID        string           `json:"photo_id,omitempty"`
	Retakes        int              `json:"retakes"`
	SubmitAttempts int              `json:"submit_attempts"`
	LastError      string           `json:"last_error,omitempty"`
	ErrorKind      string           `json:"error_kind,omitempty"`
	Guidance       guidance.Message `json:"guidance"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
