package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
)

// ============================================================================
// vfoctl - Command-line IPC Client
// ============================================================================
// Sends one event to the vfoknob daemon over its unix socket.
//
// Usage:
//   vfoctl step 5
//   vfoctl step -- -3
//   vfoctl set 7.074M
//   vfoctl band 40m | next | prev
//   vfoctl stepsize [cycle]
//   vfoctl stepsize 100
//   vfoctl tx on|off
//   vfoctl key down|up
// ============================================================================

const defaultSocketPath = "/tmp/vfoknob.sock"

// Event payloads (duplicated from the daemon for a standalone binary)
type StepFrequency struct {
	Steps int `json:"steps"`
}

type SetFrequency struct {
	Hz     int64  `json:"hz"`
	Origin string `json:"origin,omitempty"`
}

type SelectBand struct {
	Name string `json:"name"`
}

type SetStepSize struct {
	Hz int64 `json:"hz"`
}

type SetTransmit struct {
	On bool `json:"on"`
}

type KeyInput struct {
	Down bool `json:"down"`
}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type stepCmd struct {
	Steps int `arg:"positional,required" help:"detents to move; prefix negative counts with --"`
}

type setCmd struct {
	Freq string `arg:"positional,required" help:"frequency in Hz, or with a k/M suffix (7.074M)"`
}

type bandCmd struct {
	Name string `arg:"positional,required" help:"band name, next, prev, or none for free tuning"`
}

type stepSizeCmd struct {
	Hz string `arg:"positional" help:"step size in Hz; omit or cycle to advance"`
}

type txCmd struct {
	State string `arg:"positional,required" help:"on or off"`
}

type keyCmd struct {
	State string `arg:"positional,required" help:"down or up"`
}

type args struct {
	Socket  string        `arg:"--socket,env:VFOKNOB_SOCKET" help:"unix domain socket path"`
	Timeout time.Duration `arg:"--timeout" help:"dial and response timeout"`

	Step     *stepCmd     `arg:"subcommand:step" help:"move the dial by N steps"`
	Set      *setCmd      `arg:"subcommand:set" help:"tune to an absolute frequency"`
	Band     *bandCmd     `arg:"subcommand:band" help:"select a band"`
	StepSize *stepSizeCmd `arg:"subcommand:stepsize" help:"set or cycle the step size"`
	Tx       *txCmd       `arg:"subcommand:tx" help:"manual transmit override"`
	Key      *keyCmd      `arg:"subcommand:key" help:"simulate the straight key"`
}

func (args) Description() string {
	return "vfoctl - control the vfoknob daemon via IPC\n"
}

func main() {
	a := args{
		Socket:  defaultSocketPath,
		Timeout: 2 * time.Second,
	}
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("missing command")
	}

	env, err := buildEnvelope(a)
	if err != nil {
		p.Fail(err.Error())
	}

	if err := sendEvent(a.Socket, a.Timeout, env); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

// buildEnvelope turns the parsed subcommand into a wire envelope.
func buildEnvelope(a args) (EventEnvelope, error) {
	switch {
	case a.Step != nil:
		if a.Step.Steps == 0 {
			return EventEnvelope{}, errors.New("step count must not be zero")
		}
		return envelope("step_frequency", StepFrequency{Steps: a.Step.Steps})

	case a.Set != nil:
		hz, err := parseHz(a.Set.Freq)
		if err != nil {
			return EventEnvelope{}, err
		}
		return envelope("set_frequency", SetFrequency{Hz: hz, Origin: "vfoctl"})

	case a.Band != nil:
		switch name := strings.ToLower(a.Band.Name); name {
		case "next":
			return EventEnvelope{Type: "band_next"}, nil
		case "prev":
			return EventEnvelope{Type: "band_prev"}, nil
		case "none", "free":
			return envelope("select_band", SelectBand{})
		default:
			return envelope("select_band", SelectBand{Name: a.Band.Name})
		}

	case a.StepSize != nil:
		if a.StepSize.Hz == "" || strings.EqualFold(a.StepSize.Hz, "cycle") {
			return EventEnvelope{Type: "cycle_step_size"}, nil
		}
		hz, err := parseHz(a.StepSize.Hz)
		if err != nil {
			return EventEnvelope{}, err
		}
		return envelope("set_step_size", SetStepSize{Hz: hz})

	case a.Tx != nil:
		on, err := parseSwitch(a.Tx.State, "on", "off")
		if err != nil {
			return EventEnvelope{}, err
		}
		return envelope("set_transmit", SetTransmit{On: on})

	case a.Key != nil:
		down, err := parseSwitch(a.Key.State, "down", "up")
		if err != nil {
			return EventEnvelope{}, err
		}
		return envelope("key_input", KeyInput{Down: down})
	}
	return EventEnvelope{}, errors.New("missing command")
}

func envelope(typ string, payload any) (EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return EventEnvelope{Type: typ, Data: data}, nil
}

// parseHz accepts plain Hz or a decimal value with a k or M suffix.
func parseHz(s string) (int64, error) {
	s = strings.TrimSpace(s)
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		mult, s = 1e6, s[:len(s)-1]
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult, s = 1e3, s[:len(s)-1]
	}
	if mult == 1 {
		hz, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid frequency %q", s)
		}
		if hz <= 0 {
			return 0, fmt.Errorf("frequency must be positive, got %d", hz)
		}
		return hz, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	hz := int64(v*mult + 0.5)
	if hz <= 0 {
		return 0, fmt.Errorf("frequency must be positive, got %d", hz)
	}
	return hz, nil
}

func parseSwitch(s, yes, no string) (bool, error) {
	switch strings.ToLower(s) {
	case yes:
		return true, nil
	case no:
		return false, nil
	}
	return false, fmt.Errorf("expected %s or %s, got %q", yes, no, s)
}

func sendEvent(socketPath string, timeout time.Duration, env EventEnvelope) error {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var response IPCResponse
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}
	return nil
}
