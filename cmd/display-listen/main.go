package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// display-listen connects to an audioswitch daemon's /ws endpoint and prints
// every display update, standing in for the host's key renderer.

type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3011/ws", "audioswitch display websocket URL")
		raw   = flag.Bool("raw", false, "Print frames verbatim")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	// The server pings every 20s; answering keeps the read deadline fresh.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			printUpdate(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

func printUpdate(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	switch env.Type {
	case "set_media":
		var d struct {
			Path string `json:"path"`
			URL  string `json:"url"`
		}
		_ = json.Unmarshal(env.Data, &d)
		fmt.Printf("[MEDIA] %s (%s)\n", d.Path, d.URL)

	case "set_bottom_label":
		var d struct {
			Text     string `json:"text"`
			FontSize int    `json:"font_size"`
		}
		_ = json.Unmarshal(env.Data, &d)
		fmt.Printf("[LABEL] %q size=%d\n", d.Text, d.FontSize)

	case "show_error":
		var d struct {
			DurationMS int64 `json:"duration_ms"`
		}
		_ = json.Unmarshal(env.Data, &d)
		fmt.Printf("[ERROR] for %dms\n", d.DurationMS)

	case "state_init":
		prettyJSON, _ := json.MarshalIndent(env.Data, "", "  ")
		fmt.Printf("[STATE]\n%s\n\n", string(prettyJSON))

	default:
		fmt.Printf("[%s] %s\n", env.Type, string(env.Data))
	}
}
