package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// translateKeyEvent maps one evdev record onto a key-surface press event.
// Autorepeat is ignored: a held key is one press.
func translateKeyEvent(ev inputEvent, keyCode uint16) (Event, bool) {
	if ev.Type != EV_KEY || ev.Code != keyCode {
		return nil, false
	}
	switch ev.Value {
	case evValuePress:
		return PressDown{Surface: SurfaceKey}, true
	case evValueRelease:
		return PressUp{Surface: SurfaceKey}, true
	default:
		return nil, false
	}
}

// eventTime is the kernel timestamp of the record, or now when the record
// carries none.
func eventTime(ev inputEvent, now time.Time) time.Time {
	if ev.Sec == 0 && ev.Usec == 0 {
		return now
	}
	return time.Unix(ev.Sec, ev.Usec*int64(time.Microsecond))
}

// runInput opens the configured devices and forwards key presses to the
// daemon until ctx is canceled or a device fails.
func runInput(ctx context.Context, devices []string, keyCode int, events chan<- Event, logger *slog.Logger) error {
	files := make([]*os.File, 0, len(devices))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s (run as root or add user to 'input' group): %w", dev, err)
		}
		files = append(files, f)
	}

	raw := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	go readInputEventsEpoll(ctx, files, raw, readErr)

	logger.Info("input listening", "devices", devices, "key_code", keyCode)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("input reader stopped: %w", err)

		case ev := <-raw:
			out, ok := translateKeyEvent(ev, uint16(keyCode))
			if !ok {
				continue
			}
			if !trySend(events, TimedEvent{Event: out, At: eventTime(ev, time.Now())}) {
				logger.Warn("event queue full, dropping key press", "event", fmt.Sprintf("%T", out))
			}
		}
	}
}
