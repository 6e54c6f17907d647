package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// Audio backend client (pactl)
// ============================================================================
//
// Every call runs the audio utility with LC_ALL=C so that field names and
// number formatting stay parseable whatever the user's locale is.
//
// Read operations never return errors: failures are logged and degrade to an
// empty set, an absent name or the "??" volume sentinel.
// ============================================================================

// AudioBackend is what the daemon needs from the system audio server.
type AudioBackend interface {
	ListAvailableSinks(ctx context.Context) SinkSet
	DefaultSinkName(ctx context.Context) (string, bool)
	VolumePercent(ctx context.Context) string
	ListSinks(ctx context.Context) []SinkInfo
	SetDefaultSink(ctx context.Context, name string) error
}

// SinkInfo is one block of the long sink listing. Either field may be empty.
type SinkInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CommandRunner runs a program to completion and returns its stdout.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs real processes with a fixed C locale.
type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = fixedLocaleEnv(os.Environ())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%w: %s", err, msg)
		}
		return out, err
	}
	return out, nil
}

// fixedLocaleEnv returns env with any LC_ALL replaced by LC_ALL=C.
func fixedLocaleEnv(env []string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, "LC_ALL=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "LC_ALL=C")
}

// PactlClient implements AudioBackend on top of the pactl command line tool.
type PactlClient struct {
	binary  string
	timeout time.Duration
	runner  CommandRunner
	logger  *slog.Logger
}

// NewPactlClient builds a client. A nil runner executes real processes.
func NewPactlClient(binary string, timeout time.Duration, runner CommandRunner, logger *slog.Logger) *PactlClient {
	if binary == "" {
		binary = defaultPactlBinary
	}
	if timeout <= 0 {
		timeout = defaultPactlTimeoutMS * time.Millisecond
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &PactlClient{
		binary:  binary,
		timeout: timeout,
		runner:  runner,
		logger:  logger,
	}
}

func (c *PactlClient) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.runner.Output(ctx, c.binary, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s %s: timed out after %s", c.binary, strings.Join(args, " "), c.timeout)
		}
		return nil, fmt.Errorf("%s %s: %w", c.binary, strings.Join(args, " "), err)
	}
	return out, nil
}

// ListAvailableSinks returns the names from the short sink listing.
func (c *PactlClient) ListAvailableSinks(ctx context.Context) SinkSet {
	out, err := c.run(ctx, "list", "sinks", "short")
	if err != nil {
		c.logger.Error("list available sinks failed", "error", err)
		return SinkSet{}
	}
	return parseShortSinkList(out)
}

// DefaultSinkName returns the current default sink, if it can be read.
func (c *PactlClient) DefaultSinkName(ctx context.Context) (string, bool) {
	out, err := c.run(ctx, "get-default-sink")
	if err != nil {
		c.logger.Warn("get default sink failed", "error", err)
		return "", false
	}
	return parseDefaultSink(out)
}

// VolumePercent returns the default sink volume as display text, or "??".
func (c *PactlClient) VolumePercent(ctx context.Context) string {
	out, err := c.run(ctx, "get-sink-volume", "@DEFAULT_SINK@")
	if err != nil {
		c.logger.Warn("get sink volume failed", "error", err)
		return volumeUnknown
	}
	return parseVolumePercent(out)
}

// ListSinks returns every sink known to the server, available or not.
func (c *PactlClient) ListSinks(ctx context.Context) []SinkInfo {
	out, err := c.run(ctx, "list", "sinks")
	if err != nil {
		c.logger.Error("list sinks failed", "error", err)
		return nil
	}
	return parseSinkDetails(out)
}

// SetDefaultSink switches the default output. Failures are logged and
// returned so the caller can report them; they are never fatal.
func (c *PactlClient) SetDefaultSink(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("set default sink: empty sink name")
	}
	if _, err := c.run(ctx, "set-default-sink", name); err != nil {
		c.logger.Error("set default sink failed", "sink", name, "error", err)
		return err
	}
	c.logger.Info("default sink set", "sink", name)
	return nil
}

// ============================================================================
// Output parsers
// ============================================================================

// parseShortSinkList reads "id\tname\tmodule\tsample_spec\tstate" rows.
func parseShortSinkList(out []byte) SinkSet {
	sinks := SinkSet{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		if name := strings.TrimSpace(parts[1]); name != "" {
			sinks[name] = struct{}{}
		}
	}
	return sinks
}

func parseDefaultSink(out []byte) (string, bool) {
	name := strings.TrimSpace(string(out))
	if name == "" {
		return "", false
	}
	return name, true
}

// parseVolumePercent extracts "65" from
// "Volume: front-left: 42598 /  65% / -11.23 dB, ...".
func parseVolumePercent(out []byte) string {
	s := string(out)
	_, rest, ok := strings.Cut(s, "/")
	if !ok {
		return volumeUnknown
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return volumeUnknown
	}
	pct := strings.TrimSuffix(fields[0], "%")
	if _, err := strconv.Atoi(pct); err != nil {
		return volumeUnknown
	}
	return pct
}

// parseSinkDetails splits the long listing into "Sink #N" blocks and keeps
// the Name and Description of each. Partial blocks are kept.
func parseSinkDetails(out []byte) []SinkInfo {
	var (
		sinks   []SinkInfo
		current *SinkInfo
	)
	flush := func() {
		if current != nil && (current.Name != "" || current.Description != "") {
			sinks = append(sinks, *current)
		}
		current = nil
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Sink #"):
			flush()
			current = &SinkInfo{}
		case current == nil:
			continue
		case strings.HasPrefix(line, "Name: "):
			current.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name: "))
		case strings.HasPrefix(line, "Description: "):
			current.Description = strings.TrimSpace(strings.TrimPrefix(line, "Description: "))
		}
	}
	flush()
	return sinks
}

// SinkOption is one row of the sink picker.
type SinkOption struct {
	Name        string `json:"name"`
	Display     string `json:"display"`
	Unavailable bool   `json:"unavailable"`
}

// sinkOptions labels each sink "description (name)" and marks the ones that
// are not currently available.
func sinkOptions(sinks []SinkInfo, avail SinkSet) []SinkOption {
	opts := make([]SinkOption, 0, len(sinks))
	for _, s := range sinks {
		desc := s.Description
		if desc == "" {
			desc = s.Name
		}
		o := SinkOption{
			Name:    s.Name,
			Display: fmt.Sprintf("%s (%s)", desc, s.Name),
		}
		if !avail.Has(s.Name) {
			o.Unavailable = true
			o.Display += " (disconnected)"
		}
		opts = append(opts, o)
	}
	return opts
}
