package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command is a side effect requested by the reducer and executed by the
// effects stage: audio backend calls, icon rendering, settings writes and
// listener control.
type Command interface {
	commandMarker()
	String() string
}

// CmdRefreshDisplay re-reads the audio server and redraws the icon and label.
type CmdRefreshDisplay struct {
	Settings Settings
	Reason   string
}

func (CmdRefreshDisplay) commandMarker() {}
func (c CmdRefreshDisplay) String() string {
	return fmt.Sprintf("CmdRefreshDisplay(reason=%s)", c.Reason)
}

// CmdCycleSink switches to the next usable slot (short press).
type CmdCycleSink struct {
	Settings Settings
}

func (CmdCycleSink) commandMarker() {}
func (CmdCycleSink) String() string { return "CmdCycleSink()" }

// CmdSelectSlot switches to a specific slot.
type CmdSelectSlot struct {
	Settings Settings
	Slot     Slot
}

func (CmdSelectSlot) commandMarker() {}
func (c CmdSelectSlot) String() string {
	return fmt.Sprintf("CmdSelectSlot(slot=%s)", c.Slot)
}

// CmdSaveSettings persists settings to the store.
type CmdSaveSettings struct {
	Settings Settings
}

func (CmdSaveSettings) commandMarker() {}
func (CmdSaveSettings) String() string { return "CmdSaveSettings()" }

// CmdStartListener starts the sink change listener.
type CmdStartListener struct{}

func (CmdStartListener) commandMarker() {}
func (CmdStartListener) String() string { return "CmdStartListener()" }

// CmdStopListener stops the sink change listener and reaps its process.
type CmdStopListener struct{}

func (CmdStopListener) commandMarker() {}
func (CmdStopListener) String() string { return "CmdStopListener()" }

// CmdSweepCache reclaims stale icon cache entries.
type CmdSweepCache struct{}

func (CmdSweepCache) commandMarker() {}
func (CmdSweepCache) String() string { return "CmdSweepCache()" }

// CmdPublishStateSnapshot replies to a RequestStateSnapshot.
type CmdPublishStateSnapshot struct {
	Snapshot StateSnapshot
	Reply    chan StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// CmdListSinkOptions replies to a RequestSinkOptions.
type CmdListSinkOptions struct {
	Reply chan []SinkOption
}

func (CmdListSinkOptions) commandMarker() {}
func (CmdListSinkOptions) String() string { return "CmdListSinkOptions()" }
