package main

import "time"

// DaemonState is the top-level, daemon-owned state container. Only the
// reducer mutates it; other goroutines see it through StateSnapshot.
type DaemonState struct {
	// Ready is true between the ready and destroy lifecycle hooks. Ticks,
	// presses and refresh requests are ignored while it is false.
	Ready bool

	// Settings is the authoritative copy of the persisted slot settings.
	Settings Settings

	Press     PressState
	TickCount int

	Listener ListenerState

	// Display is what the last refresh put on screen.
	Display DisplayState

	LastSwitch *SwitchRecord

	LastError   string
	LastErrorAt time.Time
}

// DisplayState is the observed result of the last refresh.
type DisplayState struct {
	Known     bool
	NoSlots   bool
	Ring      Ring
	Active    string
	Volume    string
	MediaPath string
	Available []string
	At        time.Time
}

type SwitchRecord struct {
	Slot Slot      `json:"slot"`
	Sink string    `json:"sink"`
	At   time.Time `json:"at"`
}

// NewDaemonState returns the idle state for the given settings.
func NewDaemonState(settings Settings) *DaemonState {
	return &DaemonState{Settings: settings}
}

// StateSnapshot is the externally visible view of DaemonState.
type StateSnapshot struct {
	Ready     bool     `json:"ready"`
	Settings  Settings `json:"settings"`
	Pressed   bool     `json:"pressed"`
	TickCount int      `json:"tick_count"`
	Listener  string   `json:"listener"`

	DisplayKnown bool      `json:"display_known"`
	NoSlots      bool      `json:"no_slots"`
	Current      string    `json:"current,omitempty"`
	Prev         string    `json:"prev,omitempty"`
	Next         string    `json:"next,omitempty"`
	Available    []string  `json:"available_slots,omitempty"`
	ActiveSink   string    `json:"active_sink,omitempty"`
	Volume       string    `json:"volume,omitempty"`
	MediaPath    string    `json:"media_path,omitempty"`
	DisplayAt    time.Time `json:"display_at,omitempty"`

	LastSwitch  *SwitchRecord `json:"last_switch,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	LastErrorAt time.Time     `json:"last_error_at,omitempty"`
}

// Snapshot copies the state into a StateSnapshot.
func (s *DaemonState) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		Ready:        s.Ready,
		Settings:     s.Settings,
		Pressed:      s.Press.Pressed,
		TickCount:    s.TickCount,
		Listener:     s.Listener.String(),
		DisplayKnown: s.Display.Known,
		NoSlots:      s.Display.NoSlots,
		ActiveSink:   s.Display.Active,
		Volume:       s.Display.Volume,
		MediaPath:    s.Display.MediaPath,
		DisplayAt:    s.Display.At,
		LastError:    s.LastError,
		LastErrorAt:  s.LastErrorAt,
	}
	if s.LastSwitch != nil {
		sw := *s.LastSwitch
		snap.LastSwitch = &sw
	}

	if s.Display.Known && !s.Display.NoSlots && s.Display.Ring.Len() > 0 {
		r := s.Display.Ring
		snap.Current = r.Current().Key()
		if p, ok := r.Prev(); ok {
			snap.Prev = p.Key()
		}
		if n, ok := r.Next(); ok {
			snap.Next = n.Key()
		}
		for _, sl := range r.Available {
			snap.Available = append(snap.Available, sl.Key())
		}
	}
	return snap
}
