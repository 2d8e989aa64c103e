package model

// EyePoints is the number of keypoints per eye.
const EyePoints = 6

// Point is a 2-D keypoint in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeLandmarks holds the six eye-contour keypoints in detector order:
// 0 and 3 are the horizontal corners, 1/2 the upper lid, 5/4 the lower lid.
type EyeLandmarks [EyePoints]Point

// Face is one detected face with its eye landmarks.
type Face struct {
	// Box is [x1, y1, x2, y2] in pixels.
	Box      [4]float64
	LeftEye  EyeLandmarks
	RightEye EyeLandmarks
	// Score is the detector confidence when the model reports one.
	Score float64
}
