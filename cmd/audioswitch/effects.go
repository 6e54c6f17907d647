package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// IconRenderer produces composite icons. *IconCache implements it.
type IconRenderer interface {
	Render(current, prev, next string) (string, error)
	Sweep() int
}

// SettingsSaver persists settings. *SettingsStore implements it.
type SettingsSaver interface {
	Save(Settings) error
}

// ListenerControl starts and stops the sink change listener.
// *SinkListener implements it.
type ListenerControl interface {
	Start() error
	Stop() error
	State() ListenerState
}

// Effects bundles everything commands act on.
type Effects struct {
	Backend  AudioBackend
	Icons    IconRenderer
	Store    SettingsSaver
	Listener ListenerControl // nil when the listener is disabled
	Display  Display

	AssetsDir     string
	ErrorDuration time.Duration

	Logger *slog.Logger
}

// runEffect executes a single reducer-emitted Command against external
// systems and reports what happened through onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be reduced by the daemon loop.
// - Failures are logged and reported as CommandFailed; nothing here panics
//   or returns an error to the caller.
func runEffect(ctx context.Context, fx *Effects, cmd Command, onEvent func(Event)) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	now := time.Now()

	if fx == nil || fx.Backend == nil {
		onEvent(CommandFailed{Command: cmd, Err: errNoBackend{}, At: now})
		return
	}
	logger := fx.Logger

	switch c := cmd.(type) {
	case CmdRefreshDisplay:
		onEvent(fx.refreshDisplay(ctx, c.Settings, c.Reason))

	case CmdCycleSink:
		avail := fx.Backend.ListAvailableSinks(ctx)
		active, _ := fx.Backend.DefaultSinkName(ctx)
		ring, ok := ResolveRing(c.Settings.Slots, avail, active)
		if !ok {
			logger.Warn("no available sinks configured for cycling", "available", avail.Names())
			fx.showError()
			onEvent(CommandFailed{Command: cmd, Err: errNoUsableSlots{}, At: now})
		} else {
			fx.switchTo(ctx, cmd, c.Settings, ring.CycleTarget(), onEvent)
		}
		onEvent(fx.refreshDisplay(ctx, c.Settings, "cycle"))

	case CmdSelectSlot:
		sc := c.Settings.Slot(c.Slot)
		avail := fx.Backend.ListAvailableSinks(ctx)
		if !sc.Configured() || !avail.Has(sc.SinkName) {
			logger.Warn("selected slot is not available", "slot", c.Slot, "sink", sc.SinkName)
			fx.showError()
			onEvent(CommandFailed{Command: cmd, Err: errSlotUnavailable{slot: c.Slot}, At: now})
		} else {
			fx.switchTo(ctx, cmd, c.Settings, c.Slot, onEvent)
		}
		onEvent(fx.refreshDisplay(ctx, c.Settings, "select"))

	case CmdSaveSettings:
		if fx.Store == nil {
			return
		}
		if err := fx.Store.Save(c.Settings); err != nil {
			logger.Error("save settings failed", "error", err)
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
		}

	case CmdStartListener:
		if fx.Listener == nil {
			logger.Debug("sink listener disabled")
			return
		}
		if err := fx.Listener.Start(); err != nil {
			logger.Error("sink listener start failed", "error", err)
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
		}
		onEvent(ListenerObserved{State: fx.Listener.State(), At: now})

	case CmdStopListener:
		if fx.Listener == nil {
			return
		}
		if err := fx.Listener.Stop(); err != nil {
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
		}
		onEvent(ListenerObserved{State: fx.Listener.State(), At: now})

	case CmdSweepCache:
		if fx.Icons != nil {
			fx.Icons.Sweep()
		}

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the effects worker indefinitely.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	case CmdListSinkOptions:
		if c.Reply == nil {
			logger.Warn("sink options requested with nil reply channel")
			return
		}
		opts := sinkOptions(fx.Backend.ListSinks(ctx), fx.Backend.ListAvailableSinks(ctx))
		select {
		case c.Reply <- opts:
		default:
			logger.Warn("sink options reply channel not ready; dropping reply")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(CommandFailed{Command: cmd, Err: errUnknownCommand{cmd: cmd}, At: now})
	}
}

// refreshDisplay reads the audio server, resolves the ring and draws it.
// With no usable slot only the "--" label is set.
func (fx *Effects) refreshDisplay(ctx context.Context, settings Settings, reason string) DisplayObserved {
	avail := fx.Backend.ListAvailableSinks(ctx)
	if reason == "long_press" {
		fx.Logger.Info("long press, refreshing display", "available", avail.Names())
	}
	active, _ := fx.Backend.DefaultSinkName(ctx)

	obs := DisplayObserved{Active: active, Available: avail.Names(), At: time.Now()}

	ring, ok := ResolveRing(settings.Slots, avail, active)
	if !ok {
		fx.Display.SetBottomLabel(noSlotsLabel, bottomLabelFontSize)
		obs.NoSlots = true
		fx.Logger.Debug("display refreshed", "reason", reason, "slots", 0)
		return obs
	}

	iconFor := func(sl Slot) string {
		return IconFile(fx.AssetsDir, settings.Slot(sl).Icon, settings.IconColor)
	}
	current := iconFor(ring.Current())
	var prev, next string
	if sl, ok := ring.Prev(); ok {
		prev = iconFor(sl)
	}
	if sl, ok := ring.Next(); ok {
		next = iconFor(sl)
	}

	volume := fx.Backend.VolumePercent(ctx)

	if fx.Icons != nil {
		path, err := fx.Icons.Render(current, prev, next)
		if err != nil {
			fx.Logger.Warn("icon render failed", "error", err)
		} else {
			fx.Display.SetMedia(path)
			obs.MediaPath = path
		}
	}
	fx.Display.SetBottomLabel(volume, bottomLabelFontSize)

	obs.Ring = ring
	obs.Volume = volume
	fx.Logger.Debug("display refreshed", "reason", reason, "current", ring.Current(), "slots", ring.Len(), "volume", volume)
	return obs
}

func (fx *Effects) switchTo(ctx context.Context, cmd Command, settings Settings, sl Slot, onEvent func(Event)) {
	sink := settings.Slot(sl).SinkName
	if err := fx.Backend.SetDefaultSink(ctx, sink); err != nil {
		onEvent(CommandFailed{Command: cmd, Err: err, At: time.Now()})
		return
	}
	onEvent(SinkSwitched{Slot: sl, Sink: sink, At: time.Now()})
}

func (fx *Effects) showError() {
	d := fx.ErrorDuration
	if d <= 0 {
		d = defaultErrorDurationSec * time.Second
	}
	fx.Display.ShowError(d)
}

// errNoBackend indicates a command ran without an audio backend.
type errNoBackend struct{}

func (errNoBackend) Error() string { return "no audio backend" }

// errNoUsableSlots is reported when a press finds no configured sink available.
type errNoUsableSlots struct{}

func (errNoUsableSlots) Error() string { return "no configured sink is available" }

type errSlotUnavailable struct {
	slot Slot
}

func (e errSlotUnavailable) Error() string {
	return fmt.Sprintf("slot %s is not configured or its sink is not available", e.slot)
}

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
