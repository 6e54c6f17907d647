package main

import (
	"log/slog"
	"sync"
	"time"
)

// Display is the host's drawing surface for one action instance.
type Display interface {
	SetMedia(path string)
	SetBottomLabel(text string, fontSize int)
	ShowError(d time.Duration)
}

// Display update types, also used as websocket / NATS message types.
const (
	updateSetMedia       = "set_media"
	updateSetBottomLabel = "set_bottom_label"
	updateShowError      = "show_error"
)

// DisplayUpdate is one display primitive call.
type DisplayUpdate struct {
	Type     string
	Path     string
	Text     string
	FontSize int
	Duration time.Duration
	At       time.Time
}

// DisplayBus implements Display by fanning updates out to subscribers
// (websocket broadcaster, NATS publisher). Slow subscribers lose updates;
// the caller never blocks.
type DisplayBus struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	subs   []chan DisplayUpdate
	closed bool
}

func NewDisplayBus(logger *slog.Logger) *DisplayBus {
	return &DisplayBus{logger: logger, now: time.Now}
}

// Subscribe returns a channel receiving every later update. It is closed by
// Close.
func (b *DisplayBus) Subscribe(buf int) <-chan DisplayUpdate {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan DisplayUpdate, buf)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Close ends all subscriptions.
func (b *DisplayBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

func (b *DisplayBus) publish(u DisplayUpdate) {
	u.At = b.now().UTC()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- u:
		default:
			b.logger.Warn("display subscriber full, dropping update", "type", u.Type)
		}
	}
}

func (b *DisplayBus) SetMedia(path string) {
	b.publish(DisplayUpdate{Type: updateSetMedia, Path: path})
}

func (b *DisplayBus) SetBottomLabel(text string, fontSize int) {
	b.publish(DisplayUpdate{Type: updateSetBottomLabel, Text: text, FontSize: fontSize})
}

func (b *DisplayBus) ShowError(d time.Duration) {
	b.publish(DisplayUpdate{Type: updateShowError, Duration: d})
}
