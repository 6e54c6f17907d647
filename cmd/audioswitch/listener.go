package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ============================================================================
// Sink change listener
// ============================================================================
//
// Runs "pactl subscribe" in its own process group and reads its output on a
// dedicated goroutine. Lines mentioning a sink trigger onChange after a fixed
// debounce delay. onChange must not block and must not touch the display; the
// daemon passes a function that only enqueues an event.
//
// When the subscription stream ends the listener goes to Stopped and stays
// there. The periodic tick refresh covers that case.
// ============================================================================

// ListenerState is the lifecycle state of a SinkListener.
type ListenerState int

const (
	ListenerStopped ListenerState = iota
	ListenerStarting
	ListenerRunning
	ListenerStopping
)

func (s ListenerState) String() string {
	switch s {
	case ListenerStopped:
		return "stopped"
	case ListenerStarting:
		return "starting"
	case ListenerRunning:
		return "running"
	case ListenerStopping:
		return "stopping"
	default:
		return fmt.Sprintf("ListenerState(%d)", int(s))
	}
}

// SinkListenerConfig configures the subscription process.
type SinkListenerConfig struct {
	Binary string
	Args   []string

	// Debounce is the delay between a matching line and onChange.
	Debounce time.Duration

	// StopTimeout bounds each wait during Stop: once after SIGTERM and once
	// more after SIGKILL.
	StopTimeout time.Duration
}

type SinkListener struct {
	cfg      SinkListenerConfig
	onChange func()
	logger   *slog.Logger

	// ctl serializes Start and Stop.
	ctl sync.Mutex

	mu    sync.Mutex
	state ListenerState
	cmd   *exec.Cmd
	stop  chan struct{}
	done  chan struct{}
}

func NewSinkListener(cfg SinkListenerConfig, onChange func(), logger *slog.Logger) *SinkListener {
	if cfg.Binary == "" {
		cfg.Binary = defaultPactlBinary
	}
	if len(cfg.Args) == 0 {
		cfg.Args = []string{"subscribe"}
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultListenerStopTimeoutMS * time.Millisecond
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &SinkListener{
		cfg:      cfg,
		onChange: onChange,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (l *SinkListener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start spawns the subscription process. It is a no-op when the listener is
// already running.
func (l *SinkListener) Start() error {
	l.ctl.Lock()
	defer l.ctl.Unlock()

	l.mu.Lock()
	if l.state != ListenerStopped {
		l.mu.Unlock()
		return nil
	}
	l.state = ListenerStarting
	l.mu.Unlock()

	cmd := exec.Command(l.cfg.Binary, l.cfg.Args...)
	cmd.Env = fixedLocaleEnv(os.Environ())
	cmd.Stderr = io.Discard
	setupProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		l.setState(ListenerStopped)
		return fmt.Errorf("listener stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		l.setState(ListenerStopped)
		return fmt.Errorf("start %s: %w", l.cfg.Binary, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	l.mu.Lock()
	l.cmd = cmd
	l.stop = stop
	l.done = done
	l.state = ListenerRunning
	l.mu.Unlock()

	l.logger.Info("sink listener started", "pid", cmd.Process.Pid)

	go l.run(cmd, stdout, stop, done)
	return nil
}

func (l *SinkListener) setState(s ListenerState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *SinkListener) run(cmd *exec.Cmd, stdout io.Reader, stop <-chan struct{}, done chan struct{}) {
	defer close(done)

	sc := bufio.NewScanner(stdout)
	stopped := false

loop:
	for sc.Scan() {
		line := sc.Text()
		if !isSinkEvent(line) {
			continue
		}
		l.logger.Debug("sink event", "line", line)

		select {
		case <-stop:
			stopped = true
			break loop
		case <-time.After(l.cfg.Debounce):
		}
		l.onChange()
	}

	select {
	case <-stop:
		stopped = true
	default:
	}

	waitErr := cmd.Wait()

	if !stopped {
		l.logger.Warn("sink event stream ended, listener stopped", "scan_error", sc.Err(), "exit", waitErr)
		l.mu.Lock()
		if l.done == done {
			l.state = ListenerStopped
			l.cmd = nil
		}
		l.mu.Unlock()
	}
}

// Stop terminates the subscription process group and waits for the reader
// goroutine. It is safe to call repeatedly and from any goroutine.
func (l *SinkListener) Stop() error {
	l.ctl.Lock()
	defer l.ctl.Unlock()

	l.mu.Lock()
	if l.state != ListenerRunning {
		l.mu.Unlock()
		return nil
	}
	l.state = ListenerStopping
	cmd, stop, done := l.cmd, l.stop, l.done
	l.mu.Unlock()

	close(stop)

	var err error
	if sigErr := signalProcessGroup(cmd, syscall.SIGTERM); sigErr != nil {
		l.logger.Warn("listener SIGTERM failed", "error", sigErr)
	}

	select {
	case <-done:
	case <-time.After(l.cfg.StopTimeout):
		l.logger.Warn("listener did not exit after SIGTERM, killing", "timeout", l.cfg.StopTimeout)
		if sigErr := signalProcessGroup(cmd, syscall.SIGKILL); sigErr != nil {
			l.logger.Warn("listener SIGKILL failed", "error", sigErr)
		}
		select {
		case <-done:
		case <-time.After(l.cfg.StopTimeout):
			err = errors.New("listener goroutine did not exit after SIGKILL")
			l.logger.Error("listener stop timed out", "error", err)
		}
	}

	l.mu.Lock()
	l.state = ListenerStopped
	l.cmd = nil
	l.mu.Unlock()

	l.logger.Info("sink listener stopped")
	return err
}

// isSinkEvent reports whether a subscribe line concerns a sink.
func isSinkEvent(line string) bool {
	return strings.Contains(strings.ToLower(line), "sink")
}
