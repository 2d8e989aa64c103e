// Package blink turns per-tick eye landmarks into a one-shot liveness signal
// using eye-aspect-ratio thresholding with a debounce latch.
package blink

import (
	"math"

	"github.com/okian/facegate/internal/domain/model"
)

// EyeAspectRatio computes (|p1-p5| + |p2-p4|) / (2|p0-p3|) for one eye.
// ok is false when the horizontal corners coincide.
func EyeAspectRatio(eye model.EyeLandmarks) (ear float64, ok bool) {
	horizontal := dist(eye[0], eye[3])
	if horizontal == 0 || math.IsNaN(horizontal) {
		return 0, false
	}
	return (dist(eye[1], eye[5]) + dist(eye[2], eye[4])) / (2 * horizontal), true
}

// FaceEAR averages the eye aspect ratio over both eyes of face.
func FaceEAR(face model.Face) (float64, bool) {
	left, okL := EyeAspectRatio(face.LeftEye)
	right, okR := EyeAspectRatio(face.RightEye)
	if !okL || !okR {
		return 0, false
	}
	return (left + right) / 2, true
}

func dist(a, b model.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
