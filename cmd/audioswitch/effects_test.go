package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(fx *Effects, cmd Command) []Event {
	var out []Event
	runEffect(context.Background(), fx, cmd, func(ev Event) { out = append(out, ev) })
	return out
}

func lastObserved(t *testing.T, evs []Event) DisplayObserved {
	t.Helper()
	for i := len(evs) - 1; i >= 0; i-- {
		if obs, ok := evs[i].(DisplayObserved); ok {
			return obs
		}
	}
	t.Fatal("no DisplayObserved emitted")
	return DisplayObserved{}
}

func TestRefreshDisplay_TwoSlots(t *testing.T) {
	rig := newTestRig(newFakeBackend("sinkY", "sinkX", "sinkY"))

	obs := lastObserved(t, collect(rig.fx, CmdRefreshDisplay{Settings: testSettings(), Reason: "test"}))

	require.Len(t, rig.icons.renders(), 1)
	assert.Equal(t, [3]string{"/assets/headphones_w.png", "", "/assets/speaker_w.png"}, rig.icons.renders()[0])

	updates := rig.display.all()
	require.Len(t, updates, 2)
	assert.Equal(t, updateSetMedia, updates[0].Type)
	assert.Equal(t, obs.MediaPath, updates[0].Path)
	assert.Equal(t, DisplayUpdate{Type: updateSetBottomLabel, Text: "40", FontSize: bottomLabelFontSize}, updates[1])

	assert.False(t, obs.NoSlots)
	assert.Equal(t, SlotB, obs.Ring.Current())
	assert.Equal(t, "sinkY", obs.Active)
}

func TestRefreshDisplay_NoSlots(t *testing.T) {
	rig := newTestRig(newFakeBackend("hdmi", "hdmi"))

	obs := lastObserved(t, collect(rig.fx, CmdRefreshDisplay{Settings: testSettings()}))

	assert.True(t, obs.NoSlots)
	assert.Empty(t, rig.icons.renders())
	assert.Equal(t, []DisplayUpdate{{Type: updateSetBottomLabel, Text: noSlotsLabel, FontSize: bottomLabelFontSize}}, rig.display.all())
}

func TestRefreshDisplay_BlackVariantAndThreeSlots(t *testing.T) {
	rig := newTestRig(newFakeBackend("sinkX", "sinkX", "sinkY", "sinkZ"))
	st := testSettings()
	st.Slots[SlotC] = SlotConfig{SinkName: "sinkZ", Icon: IconAirPods}
	st.IconColor = IconColorBlack

	collect(rig.fx, CmdRefreshDisplay{Settings: st})

	require.Len(t, rig.icons.renders(), 1)
	assert.Equal(t, [3]string{"/assets/speaker.png", "/assets/airpods.png", "/assets/headphones.png"}, rig.icons.renders()[0])
}

func TestRefreshDisplay_RenderFailureKeepsLabel(t *testing.T) {
	rig := newTestRig(newFakeBackend("sinkX", "sinkX"))
	rig.icons.err = errors.New("disk full")

	obs := lastObserved(t, collect(rig.fx, CmdRefreshDisplay{Settings: testSettings()}))

	assert.Empty(t, obs.MediaPath)
	assert.Empty(t, rig.display.ofType(updateSetMedia))
	assert.Len(t, rig.display.ofType(updateSetBottomLabel), 1)
}

func TestCycleSink_SwitchesToNext(t *testing.T) {
	rig := newTestRig(newFakeBackend("sinkY", "sinkX", "sinkY"))

	evs := collect(rig.fx, CmdCycleSink{Settings: testSettings()})

	assert.Equal(t, []string{"sinkX"}, rig.backend.calls())
	require.Len(t, evs, 2)
	sw, ok := evs[0].(SinkSwitched)
	require.True(t, ok)
	assert.Equal(t, SlotA, sw.Slot)

	obs := lastObserved(t, evs)
	assert.Equal(t, SlotA, obs.Ring.Current(), "display reflects the new default")
}

func TestCycleSink_UnmatchedActiveGoesToFirst(t *testing.T) {
	rig := newTestRig(newFakeBackend("hdmi", "hdmi", "sinkY"))

	collect(rig.fx, CmdCycleSink{Settings: testSettings()})
	assert.Equal(t, []string{"sinkY"}, rig.backend.calls())
}

func TestCycleSink_NoUsableSlots(t *testing.T) {
	rig := newTestRig(newFakeBackend("hdmi", "hdmi"))

	evs := collect(rig.fx, CmdCycleSink{Settings: testSettings()})

	assert.Empty(t, rig.backend.calls())
	require.Len(t, rig.display.ofType(updateShowError), 1)
	assert.Equal(t, time.Second, rig.display.ofType(updateShowError)[0].Duration)

	failed, ok := evs[0].(CommandFailed)
	require.True(t, ok)
	assert.IsType(t, errNoUsableSlots{}, failed.Err)
	assert.True(t, lastObserved(t, evs).NoSlots)
}

func TestCycleSink_SwitchFailureStillRefreshes(t *testing.T) {
	backend := newFakeBackend("sinkX", "sinkX", "sinkY")
	backend.setErr = errFakeSwitch
	rig := newTestRig(backend)

	evs := collect(rig.fx, CmdCycleSink{Settings: testSettings()})

	failed, ok := evs[0].(CommandFailed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, errFakeSwitch)
	assert.Empty(t, rig.display.ofType(updateShowError))
	assert.Equal(t, SlotA, lastObserved(t, evs).Ring.Current())
}

func TestSelectSlot(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		rig := newTestRig(newFakeBackend("sinkX", "sinkX", "sinkY"))
		collect(rig.fx, CmdSelectSlot{Settings: testSettings(), Slot: SlotB})
		assert.Equal(t, []string{"sinkY"}, rig.backend.calls())
	})

	t.Run("unconfigured", func(t *testing.T) {
		rig := newTestRig(newFakeBackend("sinkX", "sinkX", "sinkY"))
		evs := collect(rig.fx, CmdSelectSlot{Settings: testSettings(), Slot: SlotC})
		assert.Empty(t, rig.backend.calls())
		assert.Len(t, rig.display.ofType(updateShowError), 1)
		assert.IsType(t, CommandFailed{}, evs[0])
	})

	t.Run("disconnected", func(t *testing.T) {
		rig := newTestRig(newFakeBackend("sinkX", "sinkX"))
		collect(rig.fx, CmdSelectSlot{Settings: testSettings(), Slot: SlotB})
		assert.Empty(t, rig.backend.calls())
	})
}

func TestListenerCommands(t *testing.T) {
	rig := newTestRig(newFakeBackend(""))

	evs := collect(rig.fx, CmdStartListener{})
	assert.Equal(t, []Event{ListenerObserved{State: ListenerRunning, At: evs[0].(ListenerObserved).At}}, evs)

	evs = collect(rig.fx, CmdStopListener{})
	require.Len(t, evs, 1)
	assert.Equal(t, ListenerStopped, evs[0].(ListenerObserved).State)

	starts, stops := rig.listener.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)

	rig.fx.Listener = nil
	assert.Empty(t, collect(rig.fx, CmdStartListener{}))
}

func TestSaveAndSweep(t *testing.T) {
	rig := newTestRig(newFakeBackend(""))

	collect(rig.fx, CmdSaveSettings{Settings: testSettings()})
	collect(rig.fx, CmdSweepCache{})

	assert.Equal(t, []Settings{testSettings()}, rig.store.saved)
	assert.Equal(t, 1, rig.icons.sweeps)
}

func TestQueryReplies(t *testing.T) {
	backend := newFakeBackend("sinkX", "sinkX")
	backend.sinks = []SinkInfo{{Name: "sinkX", Description: "Speakers"}, {Name: "sinkY", Description: "Headset"}}
	rig := newTestRig(backend)

	opts := make(chan []SinkOption, 1)
	collect(rig.fx, CmdListSinkOptions{Reply: opts})
	got := <-opts
	require.Len(t, got, 2)
	assert.Equal(t, "Headset (sinkY) (disconnected)", got[1].Display)

	snaps := make(chan StateSnapshot, 1)
	collect(rig.fx, CmdPublishStateSnapshot{Snapshot: StateSnapshot{Ready: true}, Reply: snaps})
	assert.True(t, (<-snaps).Ready)

	// A reply channel nobody drains must not block.
	full := make(chan StateSnapshot)
	done := make(chan struct{})
	go func() {
		collect(rig.fx, CmdPublishStateSnapshot{Reply: full})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("snapshot reply blocked")
	}
}

func TestRunEffect_NoBackend(t *testing.T) {
	evs := collect(&Effects{Logger: discardLogger()}, CmdRefreshDisplay{})
	require.Len(t, evs, 1)
	assert.IsType(t, errNoBackend{}, evs[0].(CommandFailed).Err)
}
