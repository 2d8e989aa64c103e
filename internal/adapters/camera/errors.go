package camera

import "errors"

// Sentinel kinds for frame sources.
var (
	ErrNotOpen   = errors.New("frame source not open")
	ErrNoFrames  = errors.New("no usable frames")
	ErrNoBinary  = errors.New("capture binary not found")
	ErrNoDevice  = errors.New("capture device unavailable")
	ErrSourceEnd = errors.New("frame source ended")
)
