package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// audioswitch-ctl - Command-line IPC Client
// ============================================================================
// Plays the host's part against a running audioswitch daemon: lifecycle
// hooks, presses, settings edits and queries.
//
// Usage:
//   audioswitch-ctl press
//   audioswitch-ctl press -hold 800ms
//   audioswitch-ctl select b
//   audioswitch-ctl set-slot a alsa_output.usb-headset Headphones
//   audioswitch-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/audioswitch.sock)
// ============================================================================

// EventEnvelope mirrors the daemon's wire format.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func main() {
	socketPath := "/tmp/audioswitch.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "ready", "destroy", "refresh":
		err = sendAndPrint(socketPath, args[0], nil)

	case "down", "up":
		surface := "key"
		if len(args) > 1 {
			surface = args[1]
		}
		err = sendAndPrint(socketPath, "press_"+args[0], map[string]string{"surface": surface})

	case "press":
		err = runPress(socketPath, args[1:])

	case "select":
		if len(args) < 2 {
			fail("select requires a slot (a, b or c)")
		}
		err = sendAndPrint(socketPath, "select_slot", map[string]string{"slot": strings.ToLower(args[1])})

	case "set-slot":
		if len(args) < 3 {
			fail("set-slot requires <slot> <sink> [icon]; use \"\" as sink to clear the slot")
		}
		data := map[string]string{"slot": strings.ToLower(args[1]), "sink": args[2]}
		if len(args) > 3 {
			data["icon"] = args[3]
		}
		err = sendAndPrint(socketPath, "set_slot", data)

	case "set-color":
		if len(args) < 2 {
			fail("set-color requires white or black")
		}
		err = sendAndPrint(socketPath, "set_icon_color", map[string]string{"color": args[1]})

	case "status":
		err = sendAndPrint(socketPath, "status", nil)

	case "list-sinks", "sinks":
		err = sendAndPrint(socketPath, "list_sinks", nil)

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func fail(msg string) {
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	os.Exit(1)
}

// runPress sends a down/up pair separated by the hold time.
func runPress(socketPath string, args []string) error {
	fs := flag.NewFlagSet("press", flag.ExitOnError)
	hold := fs.Duration("hold", 100*time.Millisecond, "Time between press and release (>= 500ms is a long press)")
	surface := fs.String("surface", "key", "Input surface: key, dial or touch")
	_ = fs.Parse(args)

	data := map[string]string{"surface": *surface}
	if _, err := send(socketPath, "press_down", data); err != nil {
		return err
	}
	time.Sleep(*hold)
	if _, err := send(socketPath, "press_up", data); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func sendAndPrint(socketPath, typ string, data any) error {
	out, err := send(socketPath, typ, data)
	if err != nil {
		return err
	}
	if len(out) == 0 {
		fmt.Println("ok")
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func send(socketPath, typ string, data any) (json.RawMessage, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	env := EventEnvelope{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Data = raw
	}
	line, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return nil, fmt.Errorf("send %s: %w", typ, err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if response.Status == "error" {
		return nil, fmt.Errorf("daemon error: %s", response.Error)
	}
	return response.Data, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `audioswitch-ctl - Drive an audioswitch daemon via IPC

Usage:
  audioswitch-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/audioswitch.sock)

Commands:
  ready                          Start the action instance
  destroy                        Stop the action instance
  refresh                        Redraw the icon and volume label
  press [-hold D] [-surface S]   Press and release (default hold 100ms)
  down [surface], up [surface]   Send a single press or release
  select <a|b|c>                 Switch straight to a slot
  set-slot <slot> <sink> [icon]  Bind a slot (icons: Speaker, Headphones, AirPods)
  set-color <white|black>        Choose the icon variant
  status                         Print the daemon state
  list-sinks, sinks              Print the sink picker rows
  help, -h, --help               Show this help message

Examples:
  audioswitch-ctl press
  audioswitch-ctl press -hold 700ms
  audioswitch-ctl set-slot b bluez_output.AA_BB_CC.1 AirPods
  audioswitch-ctl -socket /run/audioswitch/desk.sock status
`)
}
