package main

import (
	"strings"
	"time"
)

// This file implements the reducer:
//
//   - Events: lifecycle hooks, presses, settings edits, ticks, observations
//   - Commands: side effects for the effects stage
//   - Reduce(): computes next state + commands, without performing I/O
//
// The daemon loop executes Commands and feeds observations back as Events.

// ReducerConfig holds the timing policy used by the reducer.
type ReducerConfig struct {
	// LongPress is the minimum hold for a long press (refresh only).
	LongPress time.Duration

	// RefreshEveryTicks redraws the display every N ticks. 0 disables it.
	RefreshEveryTicks int
}

// ReduceResult is the output of Reduce(): next state plus a set of Commands to execute.
type ReduceResult struct {
	State    *DaemonState
	Commands []Command
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not read the clock; times come from TimedEvent, Tick or observations
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = NewDaemonState(DefaultSettings())
	}
	if te, ok := e.(TimedEvent); ok {
		return reduceAt(s, te.Event, te.At, cfg)
	}
	return reduceAt(s, e, time.Time{}, cfg)
}

func reduceAt(s *DaemonState, e Event, at time.Time, cfg ReducerConfig) ReduceResult {
	var cmds []Command

	refresh := func(reason string) {
		cmds = append(cmds, CmdRefreshDisplay{Settings: s.Settings, Reason: reason})
	}

	switch ev := e.(type) {
	case Ready:
		if s.Ready {
			refresh("ready")
			break
		}
		s.Ready = true
		s.TickCount = 0
		s.Press = PressState{}
		cmds = append(cmds, CmdStartListener{})
		refresh("ready")
		cmds = append(cmds, CmdSweepCache{})

	case Destroy:
		// Stop even when not ready: stopping an idle listener is a no-op.
		s.Ready = false
		s.Press = PressState{}
		cmds = append(cmds, CmdStopListener{})

	case Tick:
		if !s.Ready {
			break
		}
		s.TickCount++
		if cfg.RefreshEveryTicks > 0 && s.TickCount%cfg.RefreshEveryTicks == 0 {
			refresh("tick")
		}

	case PressDown:
		if !s.Ready {
			break
		}
		s.Press = s.Press.Down(at)

	case PressUp:
		if !s.Ready {
			break
		}
		var elapsed time.Duration
		s.Press, elapsed = s.Press.Up(at)
		if classifyPress(elapsed, cfg.LongPress) == PressLong {
			refresh("long_press")
		} else {
			cmds = append(cmds, CmdCycleSink{Settings: s.Settings})
		}

	case SelectSlot:
		if !s.Ready || !ev.Slot.valid() {
			break
		}
		cmds = append(cmds, CmdSelectSlot{Settings: s.Settings, Slot: ev.Slot})

	case Refresh:
		if s.Ready {
			refresh("request")
		}

	case SinksChanged:
		if s.Ready {
			refresh("sink_event")
		}

	case SetSlot:
		if !ev.Slot.valid() {
			break
		}
		next := s.Settings
		next.Slots[ev.Slot].SinkName = strings.TrimSpace(ev.Sink)
		if ev.Icon != "" {
			next.Slots[ev.Slot].Icon = ParseIconID(ev.Icon)
		}
		cmds = append(cmds, applySettings(s, next)...)

	case SetIconColor:
		next := s.Settings
		next.IconColor = ParseIconColor(ev.Color)
		cmds = append(cmds, applySettings(s, next)...)

	case SettingsReloaded:
		if ev.Settings == s.Settings {
			break
		}
		s.Settings = ev.Settings
		if s.Ready {
			refresh("settings_reloaded")
		}

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishStateSnapshot{Snapshot: s.Snapshot(), Reply: ev.Reply})

	case RequestSinkOptions:
		cmds = append(cmds, CmdListSinkOptions{Reply: ev.Reply})

	case DisplayObserved:
		s.Display = DisplayState{
			Known:     true,
			NoSlots:   ev.NoSlots,
			Ring:      ev.Ring,
			Active:    ev.Active,
			Volume:    ev.Volume,
			MediaPath: ev.MediaPath,
			Available: ev.Available,
			At:        ev.At,
		}

	case SinkSwitched:
		s.LastSwitch = &SwitchRecord{Slot: ev.Slot, Sink: ev.Sink, At: ev.At}

	case ListenerObserved:
		s.Listener = ev.State

	case CommandFailed:
		if ev.Err != nil {
			s.LastError = ev.Err.Error()
		}
		s.LastErrorAt = ev.At
	}

	return ReduceResult{State: s, Commands: cmds}
}

// applySettings stores next as the current settings and asks for it to be
// saved and shown. Unchanged settings produce no commands.
func applySettings(s *DaemonState, next Settings) []Command {
	if next == s.Settings {
		return nil
	}
	s.Settings = next
	cmds := []Command{CmdSaveSettings{Settings: next}}
	if s.Ready {
		cmds = append(cmds, CmdRefreshDisplay{Settings: next, Reason: "settings"})
	}
	return cmds
}
