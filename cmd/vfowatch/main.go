package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/gorilla/websocket"
)

// ============================================================================
// vfowatch - websocket state listener
// ============================================================================
// Connects to the vfoknob state websocket and prints one line per frame.
// ============================================================================

type args struct {
	URL  string `arg:"--url" help:"vfoknob websocket URL"`
	Raw  bool   `arg:"--raw" help:"print frames as received"`
	Once bool   `arg:"--once" help:"exit after the state_init frame"`
}

func (args) Description() string {
	return "vfowatch - print vfoknob state changes\n"
}

// frame mirrors the daemon's websocket envelope.
type frame struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

type stateInit struct {
	FrequencyHz   int64  `json:"frequency_hz"`
	StepHz        int64  `json:"step_hz"`
	Band          string `json:"band"`
	Transmitting  bool   `json:"transmitting"`
	KeyDown       bool   `json:"key_down"`
	LastDirection string `json:"last_direction"`
}

func main() {
	a := args{URL: "ws://127.0.0.1:8080/ws"}
	arg.MustParse(&a)

	u, err := url.Parse(a.URL)
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
	// The daemon pings us; answering refreshes our own deadline too.
	conn.SetPingHandler(func(msg string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(msg), time.Now().Add(time.Second))
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
		if err := watch(conn, os.Stdout, a.Raw, a.Once); err != nil {
			log.Printf("websocket error: %v", err)
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

// watch prints frames until the connection closes. A normal close returns nil.
func watch(conn *websocket.Conn, out io.Writer, raw, once bool) error {
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return err
			}
			return nil
		}

		switch messageType {
		case websocket.TextMessage:
			if raw {
				fmt.Fprintf(out, "%s\n", message)
			} else {
				fmt.Fprintln(out, formatFrame(message))
			}
		case websocket.BinaryMessage:
			fmt.Fprintf(out, "[BINARY] %d bytes\n", len(message))
		}

		if once && strings.Contains(string(message), `"state_init"`) {
			return nil
		}
	}
}

// formatFrame renders one state frame as a single line.
func formatFrame(message []byte) string {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		return fmt.Sprintf("[TEXT] %s", message)
	}

	switch f.Type {
	case "state_init":
		var s stateInit
		if err := json.Unmarshal(f.Data, &s); err != nil {
			break
		}
		return fmt.Sprintf("[STATE] %s Hz step=%d band=%s tx=%s key=%s",
			formatHz(s.FrequencyHz), s.StepHz, bandName(s.Band), onOff(s.Transmitting), upDown(s.KeyDown))

	case "frequency_changed":
		var d struct {
			Hz        int64  `json:"hz"`
			Direction string `json:"direction"`
		}
		if err := json.Unmarshal(f.Data, &d); err != nil {
			break
		}
		if d.Direction == "" || d.Direction == "none" {
			return fmt.Sprintf("[FREQ] %s Hz", formatHz(d.Hz))
		}
		return fmt.Sprintf("[FREQ] %s Hz (%s)", formatHz(d.Hz), d.Direction)

	case "transmit_changed":
		var d struct {
			On bool `json:"on"`
		}
		if err := json.Unmarshal(f.Data, &d); err != nil {
			break
		}
		return fmt.Sprintf("[TX] %s", onOff(d.On))

	case "band_changed":
		var d struct {
			Band string `json:"band"`
		}
		if err := json.Unmarshal(f.Data, &d); err != nil {
			break
		}
		return fmt.Sprintf("[BAND] %s", bandName(d.Band))

	case "step_changed":
		var d struct {
			StepHz int64 `json:"step_hz"`
		}
		if err := json.Unmarshal(f.Data, &d); err != nil {
			break
		}
		return fmt.Sprintf("[STEP] %d Hz", d.StepHz)
	}

	return fmt.Sprintf("[%s] %s", strings.ToUpper(f.Type), f.Data)
}

// formatHz groups digits in threes with dots, as on a radio display.
func formatHz(hz int64) string {
	neg := hz < 0
	if neg {
		hz = -hz
	}
	s := fmt.Sprintf("%d", hz)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func bandName(b string) string {
	if b == "" {
		return "VFO"
	}
	return b
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func upDown(v bool) string {
	if v {
		return "DOWN"
	}
	return "UP"
}
