package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotsOf(sinks ...string) [numSlots]SlotConfig {
	var out [numSlots]SlotConfig
	for i := range out {
		out[i].Icon = IconSpeaker
		if i < len(sinks) {
			out[i].SinkName = sinks[i]
		}
	}
	return out
}

func TestResolveRing_NoUsableSlots(t *testing.T) {
	cases := map[string]struct {
		slots [numSlots]SlotConfig
		avail SinkSet
	}{
		"nothing configured":       {slotsOf(), NewSinkSet("x", "y")},
		"configured but not live":  {slotsOf("x", "y", "z"), NewSinkSet("other")},
		"whitespace only sink":     {slotsOf("  ", "", ""), NewSinkSet("  ")},
		"no sinks on audio server": {slotsOf("x"), NewSinkSet()},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := ResolveRing(tc.slots, tc.avail, "x")
			assert.False(t, ok)
		})
	}
}

func TestResolveRing_OneSlot(t *testing.T) {
	r, ok := ResolveRing(slotsOf("", "y", ""), NewSinkSet("y"), "y")
	require.True(t, ok)

	assert.Equal(t, []Slot{SlotB}, r.Available)
	assert.Equal(t, SlotB, r.Current())
	_, hasNext := r.Next()
	_, hasPrev := r.Prev()
	assert.False(t, hasNext)
	assert.False(t, hasPrev)
}

func TestResolveRing_TwoSlotsHasNoPrev(t *testing.T) {
	r, ok := ResolveRing(slotsOf("x", "", "z"), NewSinkSet("x", "z"), "x")
	require.True(t, ok)

	assert.Equal(t, []Slot{SlotA, SlotC}, r.Available)
	assert.Equal(t, SlotA, r.Current())
	next, hasNext := r.Next()
	require.True(t, hasNext)
	assert.Equal(t, SlotC, next)
	_, hasPrev := r.Prev()
	assert.False(t, hasPrev)
}

func TestResolveRing_ThreeSlotsCyclicOrder(t *testing.T) {
	slots := slotsOf("x", "y", "z")
	avail := NewSinkSet("x", "y", "z")

	want := map[string][3]Slot{
		"x": {SlotC, SlotA, SlotB},
		"y": {SlotA, SlotB, SlotC},
		"z": {SlotB, SlotC, SlotA},
	}
	for active, w := range want {
		r, ok := ResolveRing(slots, avail, active)
		require.True(t, ok)
		prev, _ := r.Prev()
		next, _ := r.Next()
		assert.Equal(t, w, [3]Slot{prev, r.Current(), next}, "active=%s", active)
		assert.NotEqual(t, prev, next)
	}
}

func TestResolveRing_Position(t *testing.T) {
	slots := slotsOf("x", "y", "z")
	avail := NewSinkSet("x", "y", "z", "hdmi")

	t.Run("active absent", func(t *testing.T) {
		r, _ := ResolveRing(slots, avail, "")
		assert.Equal(t, 0, r.Position)
		assert.False(t, r.ActiveMatched)
	})
	t.Run("active present but unconfigured", func(t *testing.T) {
		r, _ := ResolveRing(slots, avail, "hdmi")
		assert.Equal(t, 0, r.Position)
		assert.False(t, r.ActiveMatched)
	})
	t.Run("active matches slot B", func(t *testing.T) {
		r, _ := ResolveRing(slots, avail, " y ")
		assert.Equal(t, 1, r.Position)
		assert.True(t, r.ActiveMatched)
		assert.Equal(t, SlotB, r.Current())
	})
	t.Run("active slot configured but unavailable", func(t *testing.T) {
		r, _ := ResolveRing(slots, NewSinkSet("x", "z"), "y")
		assert.Equal(t, 0, r.Position)
		assert.False(t, r.ActiveMatched)
	})
}

func TestRing_CycleTarget(t *testing.T) {
	slots := slotsOf("x", "y", "z")
	avail := NewSinkSet("x", "y", "z")

	r, _ := ResolveRing(slots, avail, "z")
	assert.Equal(t, SlotA, r.CycleTarget(), "wraps around")

	r, _ = ResolveRing(slots, avail, "unknown")
	assert.Equal(t, SlotA, r.CycleTarget(), "unmatched active goes to first usable slot")

	r, _ = ResolveRing(slotsOf("", "y", ""), NewSinkSet("y"), "y")
	assert.Equal(t, SlotB, r.CycleTarget(), "single slot stays put")
}

func TestResolveRing_EndToEnd(t *testing.T) {
	var st Settings
	st.Slots[SlotA] = SlotConfig{SinkName: "sinkX", Icon: IconSpeaker}
	st.Slots[SlotB] = SlotConfig{SinkName: "sinkY", Icon: IconHeadphones}

	r, ok := ResolveRing(st.Slots, NewSinkSet("sinkX", "sinkY"), "sinkY")
	require.True(t, ok)

	assert.Equal(t, SlotB, r.Current())
	assert.Equal(t, IconHeadphones, st.Slot(r.Current()).Icon)
	next, _ := r.Next()
	assert.Equal(t, SlotA, next)
	assert.Equal(t, IconSpeaker, st.Slot(next).Icon)
	_, hasPrev := r.Prev()
	assert.False(t, hasPrev)
}

func TestParseSlot(t *testing.T) {
	for in, want := range map[string]Slot{"a": SlotA, "B": SlotB, " c ": SlotC, "0": SlotA, "2": SlotC} {
		got, err := ParseSlot(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSlot("d")
	assert.Error(t, err)
}

func TestSettingsFromLookup_Defaults(t *testing.T) {
	values := map[string]string{
		"sink_a":     " alsa_output.usb ",
		"icon_a":     "headphones",
		"icon_b":     "Trumpet",
		"icon_color": "BLACK",
	}
	st := settingsFromLookup(func(k string) string { return values[k] })

	assert.Equal(t, "alsa_output.usb", st.Slots[SlotA].SinkName)
	assert.Equal(t, IconHeadphones, st.Slots[SlotA].Icon)
	assert.Equal(t, IconSpeaker, st.Slots[SlotB].Icon)
	assert.Equal(t, IconSpeaker, st.Slots[SlotC].Icon)
	assert.False(t, st.Slots[SlotB].Configured())
	assert.Equal(t, IconColorBlack, st.IconColor)
}
