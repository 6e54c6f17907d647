package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPressState_Classification(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	threshold := defaultLongPressMS * time.Millisecond

	cases := []struct {
		name string
		hold time.Duration
		want PressKind
	}{
		{"short", 300 * time.Millisecond, PressShort},
		{"long", 600 * time.Millisecond, PressLong},
		{"exactly threshold", threshold, PressLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := PressState{}.Down(t0)
			assert.True(t, p.Pressed)

			p, elapsed := p.Up(t0.Add(tc.hold))
			assert.False(t, p.Pressed)
			assert.Equal(t, tc.hold, elapsed)
			assert.Equal(t, tc.want, classifyPress(elapsed, threshold))
		})
	}
}

func TestPressState_UpWithoutDownIsShort(t *testing.T) {
	p, elapsed := PressState{}.Up(time.Now())
	assert.Equal(t, PressState{}, p)
	assert.Zero(t, elapsed)
	assert.Equal(t, PressShort, classifyPress(elapsed, 500*time.Millisecond))
}

func TestPressState_SecondDownOverwritesStart(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	p := PressState{}.Down(t0)
	p = p.Down(t0.Add(time.Second))

	_, elapsed := p.Up(t0.Add(1200 * time.Millisecond))
	assert.Equal(t, 200*time.Millisecond, elapsed)
}
