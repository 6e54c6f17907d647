package main

import "time"

// Surface identifies which host input delivered a press. Routing is
// identical for all of them.
type Surface string

const (
	SurfaceKey   Surface = "key"
	SurfaceDial  Surface = "dial"
	SurfaceTouch Surface = "touch"
)

// PressKind is the classification of a completed press.
type PressKind int

const (
	PressShort PressKind = iota
	PressLong
)

func (k PressKind) String() string {
	if k == PressLong {
		return "long"
	}
	return "short"
}

// PressState tracks one down/up pair. The zero value is Idle.
type PressState struct {
	Pressed   bool      `json:"pressed"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Down records a press. A second Down without an Up overwrites the start.
func (p PressState) Down(at time.Time) PressState {
	return PressState{Pressed: true, StartedAt: at}
}

// Up completes a press and returns the elapsed time. An Up with no matching
// Down counts as zero elapsed.
func (p PressState) Up(at time.Time) (PressState, time.Duration) {
	if !p.Pressed {
		return PressState{}, 0
	}
	elapsed := at.Sub(p.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return PressState{}, elapsed
}

// classifyPress reports a long press when elapsed reaches threshold.
func classifyPress(elapsed, threshold time.Duration) PressKind {
	if elapsed >= threshold {
		return PressLong
	}
	return PressShort
}
