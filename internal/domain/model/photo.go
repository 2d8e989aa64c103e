package model

import "time"

// CapturedPhoto is the single frame selected when liveness was confirmed,
// already encoded for submission. It is never mutated after creation.
type CapturedPhoto struct {
	ID         string
	JPEG       []byte
	Width      int
	Height     int
	FrameSeq   uint64
	EAR        float64
	Brightness float64
	CapturedAt time.Time
}

// Empty reports whether the photo carries no image data.
func (p CapturedPhoto) Empty() bool { return len(p.JPEG) == 0 }
