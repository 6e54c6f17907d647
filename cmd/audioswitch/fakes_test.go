package main

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeBackend is an in-memory audio server.
type fakeBackend struct {
	mu       sync.Mutex
	avail    []string
	active   string
	volume   string
	sinks    []SinkInfo
	setErr   error
	setCalls []string

	// listDelay stalls ListAvailableSinks like a slow audio server.
	listDelay time.Duration
}

func newFakeBackend(active string, avail ...string) *fakeBackend {
	return &fakeBackend{avail: avail, active: active, volume: "40"}
}

func (b *fakeBackend) ListAvailableSinks(context.Context) SinkSet {
	b.mu.Lock()
	delay := b.listDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return NewSinkSet(b.avail...)
}

func (b *fakeBackend) DefaultSinkName(context.Context) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, b.active != ""
}

func (b *fakeBackend) VolumePercent(context.Context) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

func (b *fakeBackend) ListSinks(context.Context) []SinkInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SinkInfo(nil), b.sinks...)
}

func (b *fakeBackend) SetDefaultSink(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setCalls = append(b.setCalls, name)
	if b.setErr != nil {
		return b.setErr
	}
	b.active = name
	return nil
}

func (b *fakeBackend) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.setCalls...)
}

// recordingDisplay keeps every display call.
type recordingDisplay struct {
	mu      sync.Mutex
	updates []DisplayUpdate
}

func (d *recordingDisplay) add(u DisplayUpdate) {
	d.mu.Lock()
	d.updates = append(d.updates, u)
	d.mu.Unlock()
}

func (d *recordingDisplay) SetMedia(path string) {
	d.add(DisplayUpdate{Type: updateSetMedia, Path: path})
}

func (d *recordingDisplay) SetBottomLabel(text string, fontSize int) {
	d.add(DisplayUpdate{Type: updateSetBottomLabel, Text: text, FontSize: fontSize})
}

func (d *recordingDisplay) ShowError(dur time.Duration) {
	d.add(DisplayUpdate{Type: updateShowError, Duration: dur})
}

func (d *recordingDisplay) all() []DisplayUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DisplayUpdate(nil), d.updates...)
}

func (d *recordingDisplay) ofType(typ string) []DisplayUpdate {
	var out []DisplayUpdate
	for _, u := range d.all() {
		if u.Type == typ {
			out = append(out, u)
		}
	}
	return out
}

// fakeIcons returns a path derived from the fingerprint without touching disk.
type fakeIcons struct {
	mu     sync.Mutex
	calls  [][3]string
	sweeps int
	err    error
}

func (f *fakeIcons) Render(current, prev, next string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [3]string{current, prev, next})
	if f.err != nil {
		return "", f.err
	}
	return "/cache/" + cacheFileName(Fingerprint(current, prev, next)), nil
}

func (f *fakeIcons) Sweep() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return 0
}

func (f *fakeIcons) renders() [][3]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][3]string(nil), f.calls...)
}

type fakeStore struct {
	mu    sync.Mutex
	saved []Settings
}

func (s *fakeStore) Save(st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, st)
	return nil
}

type fakeListener struct {
	mu     sync.Mutex
	state  ListenerState
	starts int
	stops  int
}

func (l *fakeListener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts++
	l.state = ListenerRunning
	return nil
}

func (l *fakeListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stops++
	l.state = ListenerStopped
	return nil
}

func (l *fakeListener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *fakeListener) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts, l.stops
}

var errFakeSwitch = errors.New("sink switch failed")

// testSettings binds A=sinkX/Speaker and B=sinkY/Headphones; C is unset.
func testSettings() Settings {
	st := DefaultSettings()
	st.Slots[SlotA] = SlotConfig{SinkName: "sinkX", Icon: IconSpeaker}
	st.Slots[SlotB] = SlotConfig{SinkName: "sinkY", Icon: IconHeadphones}
	return st
}

type testRig struct {
	backend  *fakeBackend
	display  *recordingDisplay
	icons    *fakeIcons
	store    *fakeStore
	listener *fakeListener
	fx       *Effects
}

func newTestRig(backend *fakeBackend) *testRig {
	r := &testRig{
		backend:  backend,
		display:  &recordingDisplay{},
		icons:    &fakeIcons{},
		store:    &fakeStore{},
		listener: &fakeListener{},
	}
	r.fx = &Effects{
		Backend:       backend,
		Icons:         r.icons,
		Store:         r.store,
		Listener:      r.listener,
		Display:       r.display,
		AssetsDir:     "/assets",
		ErrorDuration: time.Second,
		Logger:        discardLogger(),
	}
	return r
}
