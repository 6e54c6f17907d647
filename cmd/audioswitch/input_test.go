package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTranslateKeyEvent(t *testing.T) {
	key := uint16(KEY_PLAYPAUSE)
	cases := []struct {
		name string
		ev   inputEvent
		want Event
	}{
		{"press", inputEvent{Type: EV_KEY, Code: key, Value: evValuePress}, PressDown{Surface: SurfaceKey}},
		{"release", inputEvent{Type: EV_KEY, Code: key, Value: evValueRelease}, PressUp{Surface: SurfaceKey}},
		{"autorepeat ignored", inputEvent{Type: EV_KEY, Code: key, Value: evValueRepeat}, nil},
		{"other key ignored", inputEvent{Type: EV_KEY, Code: KEY_ENTER, Value: evValuePress}, nil},
		{"non key event ignored", inputEvent{Type: 0x02, Code: key, Value: evValuePress}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := translateKeyEvent(tc.ev, key)
			assert.Equal(t, tc.want != nil, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEventTime(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	got := eventTime(inputEvent{Sec: 1700000000, Usec: 250000}, now)
	assert.Equal(t, time.Unix(1700000000, 250*int64(time.Millisecond)), got)

	assert.Equal(t, now, eventTime(inputEvent{}, now))
}
