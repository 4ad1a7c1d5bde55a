package mapview

import "github.com/joeblew999/plat-annotate/internal/projection"

// ClickListener receives map-wide clicks. Returning true consumes the click.
type ClickListener interface {
	OnMapClick(pt projection.ScreenPoint) bool
}

// LongClickListener receives map-wide long clicks.
type LongClickListener interface {
	OnMapLongClick(pt projection.ScreenPoint) bool
}

// MoveGesture is one step of a pan gesture.
type MoveGesture struct {
	// Pointers is the number of active pointers.
	Pointers int `json:"pointers" doc:"Number of active pointers"`
	// Focal is the centroid of all pointers.
	Focal projection.ScreenPoint `json:"focal" doc:"Centroid of all pointers"`
	// Current is the position of the first pointer.
	Current projection.ScreenPoint `json:"current" doc:"Position of the first pointer"`
	// DeltaX and DeltaY are the movement since the previous event.
	DeltaX float64 `json:"dx" doc:"Horizontal movement since the previous event"`
	DeltaY float64 `json:"dy" doc:"Vertical movement since the previous event"`
}

// MoveListener receives pan gestures. A listener that consumes OnMoveBegin
// captures the gesture until it ends.
type MoveListener interface {
	OnMoveBegin(g MoveGesture) bool
	OnMove(g MoveGesture) bool
	OnMoveEnd(g MoveGesture)
}

// MoveCapturer is implemented by move listeners that can let go of a
// captured gesture before it ends. Once Capturing reports false the rest
// of the gesture is dispatched as if it had never been captured.
type MoveCapturer interface {
	Capturing() bool
}
