package landmark

import "errors"

// Sentinel kinds for landmark inference.
var (
	ErrNotLoaded     = errors.New("landmark model not loaded")
	ErrNoCommand     = errors.New("landmark command not configured")
	ErrHelperFailed  = errors.New("landmark helper failed")
	ErrBadResponse   = errors.New("malformed landmark response")
	ErrFrameTooLarge = errors.New("protocol frame too large")
)
