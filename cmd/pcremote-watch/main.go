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

// envelope mirrors the daemon's websocket message format.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3001/ws", "pcremote event feed URL")
		raw   = flag.Bool("raw", false, "Print every message as indented JSON")
		only  = flag.String("type", "", "Only print events of this type (e.g. code_pressed)")
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

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	// The server pings too; answering resets our deadline as well.
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			handleTextMessage(message, *raw, *only)
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

// handleTextMessage prints one feed message.
func handleTextMessage(message []byte, raw bool, only string) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}
	if only != "" && env.Type != only && env.Type != "state_init" {
		return
	}

	if raw {
		var v any
		_ = json.Unmarshal(message, &v)
		pretty, _ := json.MarshalIndent(v, "", "  ")
		fmt.Printf("%s\n", pretty)
		return
	}

	ts := time.Now()
	if env.Ts != nil {
		ts = *env.Ts
	}
	fmt.Printf("%s %s\n", ts.Local().Format("15:04:05.000"), summarize(env))
}

// summarize renders the interesting fields of an event on one line.
func summarize(env envelope) string {
	var data map[string]any
	_ = json.Unmarshal(env.Data, &data)

	switch env.Type {
	case "state_init":
		listener, _ := data["listener"].(map[string]any)
		return fmt.Sprintf("[INIT] version=%v listener=%v mouse_mode=%v binds=%v",
			data["version"], listener["state"], data["mouse_mode"], data["binds"])
	case "code_pressed":
		return fmt.Sprintf("[PRESS] %v", data["code"])
	case "code_dispatched":
		result, _ := data["result"].(map[string]any)
		return fmt.Sprintf("[DISPATCH] %v repeating=%v executed=%v failed=%v",
			data["code"], data["repeating"], result["executed"], result["failed"])
	case "volume_changed":
		return fmt.Sprintf("[VOLUME] %v%%", data["volume"])
	case "device_changed":
		dev, _ := data["device"].(map[string]any)
		return fmt.Sprintf("[DEVICE] %v (%v)", dev["name"], dev["kind"])
	case "mouse_mode_changed":
		return fmt.Sprintf("[MOUSE] on=%v", data["on"])
	case "listener_state":
		return fmt.Sprintf("[LISTENER] %v %v", data["state"], data["port"])
	default:
		return fmt.Sprintf("[%s] %s", env.Type, string(env.Data))
	}
}
