package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events
// ============================================================================
// Events are the only input to the reducer. They come from:
//   - the host surface (IPC socket, NATS, evdev keys): lifecycle, presses,
//     settings edits and queries
//   - the daemon itself: ticks, listener notifications, settings file reloads
//   - the effects stage: observations of what a command did
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent wraps an incoming event with the time it arrived. Producers
// stamp events where they enter so that time spent queued behind a slow
// effect does not count against press timing.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// stampEvent wraps ev with at unless it already carries a timestamp.
func stampEvent(ev Event, at time.Time) Event {
	if _, ok := ev.(TimedEvent); ok {
		return ev
	}
	return TimedEvent{Event: ev, At: at}
}

// Tick is emitted by the daemon loop at a fixed cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// ----------------------------------------------------------------------------
// Host lifecycle and input
// ----------------------------------------------------------------------------

// Ready starts the instance: listener, first display, cache sweep.
type Ready struct{}

func (Ready) eventMarker() {}

// Destroy tears the instance down. The listener process is stopped.
type Destroy struct{}

func (Destroy) eventMarker() {}

// PressDown is a key/dial/touch press.
type PressDown struct {
	Surface Surface `json:"surface,omitempty"`
}

func (PressDown) eventMarker() {}

// PressUp is the matching release.
type PressUp struct {
	Surface Surface `json:"surface,omitempty"`
}

func (PressUp) eventMarker() {}

// SelectSlot switches straight to a slot's sink.
type SelectSlot struct {
	Slot Slot `json:"slot"`
}

func (SelectSlot) eventMarker() {}

// Refresh redraws the display without changing anything.
type Refresh struct{}

func (Refresh) eventMarker() {}

// ----------------------------------------------------------------------------
// Settings form
// ----------------------------------------------------------------------------

// SetSlot binds a slot to a sink and icon. An empty Sink unconfigures the
// slot; an empty Icon keeps the current one.
type SetSlot struct {
	Slot Slot   `json:"slot"`
	Sink string `json:"sink"`
	Icon string `json:"icon,omitempty"`
}

func (SetSlot) eventMarker() {}

// SetIconColor picks the white or black icon variants.
type SetIconColor struct {
	Color string `json:"color"`
}

func (SetIconColor) eventMarker() {}

// ----------------------------------------------------------------------------
// Queries
// ----------------------------------------------------------------------------

// RequestStateSnapshot asks the daemon for its current state. Reply must be
// buffered; the daemon never blocks on it.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot `json:"-"`
}

func (RequestStateSnapshot) eventMarker() {}

// RequestSinkOptions asks for the sink picker rows.
type RequestSinkOptions struct {
	Reply chan []SinkOption `json:"-"`
}

func (RequestSinkOptions) eventMarker() {}

// ----------------------------------------------------------------------------
// Internal notifications
// ----------------------------------------------------------------------------

// SinksChanged is sent by the listener after a debounced sink event.
type SinksChanged struct{}

func (SinksChanged) eventMarker() {}

// SettingsReloaded carries settings edited outside the daemon.
type SettingsReloaded struct {
	Settings Settings
}

func (SettingsReloaded) eventMarker() {}

// ----------------------------------------------------------------------------
// Observations (emitted by effects)
// ----------------------------------------------------------------------------

// DisplayObserved records what a refresh put on the display.
type DisplayObserved struct {
	NoSlots   bool
	Ring      Ring
	Active    string
	Volume    string
	MediaPath string
	Available []string
	At        time.Time
}

func (DisplayObserved) eventMarker() {}

// SinkSwitched is emitted after a successful default-sink change.
type SinkSwitched struct {
	Slot Slot
	Sink string
	At   time.Time
}

func (SinkSwitched) eventMarker() {}

// ListenerObserved reports the listener state after a start/stop command.
type ListenerObserved struct {
	State ListenerState
	At    time.Time
}

func (ListenerObserved) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func decodeData[T any](env EventEnvelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return v, nil
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// Query events come back without a reply channel; the transport adds one.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "ready":
		return Ready{}, nil
	case "destroy":
		return Destroy{}, nil
	case "refresh":
		return Refresh{}, nil
	case "press_down":
		ev, err := decodeData[PressDown](env)
		if err != nil {
			return nil, err
		}
		if ev.Surface == "" {
			ev.Surface = SurfaceKey
		}
		return ev, nil
	case "press_up":
		ev, err := decodeData[PressUp](env)
		if err != nil {
			return nil, err
		}
		if ev.Surface == "" {
			ev.Surface = SurfaceKey
		}
		return ev, nil
	case "select_slot":
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("select_slot: missing data")
		}
		return decodeData[SelectSlot](env)
	case "set_slot":
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("set_slot: missing data")
		}
		return decodeData[SetSlot](env)
	case "set_icon_color":
		return decodeData[SetIconColor](env)
	case "status":
		return RequestStateSnapshot{}, nil
	case "list_sinks":
		return RequestSinkOptions{}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var (
		env     EventEnvelope
		payload any
	)

	switch ev := e.(type) {
	case Ready:
		env.Type = "ready"
	case Destroy:
		env.Type = "destroy"
	case Refresh:
		env.Type = "refresh"
	case PressDown:
		env.Type, payload = "press_down", ev
	case PressUp:
		env.Type, payload = "press_up", ev
	case SelectSlot:
		env.Type, payload = "select_slot", ev
	case SetSlot:
		env.Type, payload = "set_slot", ev
	case SetIconColor:
		env.Type, payload = "set_icon_color", ev
	case RequestStateSnapshot:
		env.Type = "status"
	case RequestSinkOptions:
		env.Type = "list_sinks"
	default:
		return nil, fmt.Errorf("event %T is not serializable", e)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}
