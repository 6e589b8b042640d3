package main

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestParseHz tests plain and suffixed frequency parsing.
func TestParseHz(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"7074000", 7_074_000, false},
		{"7.074M", 7_074_000, false},
		{"14.2m", 14_200_000, false},
		{"100k", 100_000, false},
		{"2.5K", 2_500, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"M", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHz(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseHz(%q): expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseHz(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseHz(%q): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

// TestBuildEnvelope tests the subcommand to envelope mapping.
func TestBuildEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		a        args
		wantType string
		wantData string
	}{
		{"step", args{Step: &stepCmd{Steps: -3}}, "step_frequency", `{"steps":-3}`},
		{"set", args{Set: &setCmd{Freq: "7.1M"}}, "set_frequency", `{"hz":7100000,"origin":"vfoctl"}`},
		{"band", args{Band: &bandCmd{Name: "20m"}}, "select_band", `{"name":"20m"}`},
		{"band next", args{Band: &bandCmd{Name: "next"}}, "band_next", ``},
		{"band prev", args{Band: &bandCmd{Name: "PREV"}}, "band_prev", ``},
		{"band none", args{Band: &bandCmd{Name: "none"}}, "select_band", `{"name":""}`},
		{"cycle", args{StepSize: &stepSizeCmd{}}, "cycle_step_size", ``},
		{"cycle word", args{StepSize: &stepSizeCmd{Hz: "cycle"}}, "cycle_step_size", ``},
		{"stepsize", args{StepSize: &stepSizeCmd{Hz: "1k"}}, "set_step_size", `{"hz":1000}`},
		{"tx on", args{Tx: &txCmd{State: "on"}}, "set_transmit", `{"on":true}`},
		{"tx off", args{Tx: &txCmd{State: "OFF"}}, "set_transmit", `{"on":false}`},
		{"key down", args{Key: &keyCmd{State: "down"}}, "key_input", `{"down":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := buildEnvelope(tt.a)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Type != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, env.Type)
			}
			if string(env.Data) != tt.wantData {
				t.Errorf("expected data %s, got %s", tt.wantData, env.Data)
			}
		})
	}
}

// TestBuildEnvelope_Errors tests rejected arguments.
func TestBuildEnvelope_Errors(t *testing.T) {
	bad := []args{
		{},
		{Step: &stepCmd{Steps: 0}},
		{Set: &setCmd{Freq: "fast"}},
		{StepSize: &stepSizeCmd{Hz: "-10"}},
		{Tx: &txCmd{State: "maybe"}},
		{Key: &keyCmd{State: "on"}},
	}
	for i, a := range bad {
		if _, err := buildEnvelope(a); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func listen(t *testing.T) (net.Listener, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "vfoctl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "s.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, path
}

// serveOnce answers one request line with resp and returns the line read.
func serveOnce(ln net.Listener, resp IPCResponse) <-chan string {
	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(got)
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		got <- strings.TrimSpace(line)
		_ = json.NewEncoder(conn).Encode(resp)
	}()
	return got
}

// TestSendEvent tests the line protocol against a fake daemon.
func TestSendEvent(t *testing.T) {
	ln, path := listen(t)
	got := serveOnce(ln, IPCResponse{Status: "ok"})

	env := EventEnvelope{Type: "band_next"}
	if err := sendEvent(path, time.Second, env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line := <-got; line != `{"type":"band_next"}` {
		t.Errorf("expected band_next line, got %q", line)
	}
}

// TestSendEvent_DaemonError tests that an error response is surfaced.
func TestSendEvent_DaemonError(t *testing.T) {
	ln, path := listen(t)
	serveOnce(ln, IPCResponse{Status: "error", Error: "event queue full"})

	err := sendEvent(path, time.Second, EventEnvelope{Type: "cycle_step_size"})
	if err == nil || !strings.Contains(err.Error(), "event queue full") {
		t.Errorf("expected daemon error, got %v", err)
	}
}

// TestSendEvent_NoDaemon tests a missing socket.
func TestSendEvent_NoDaemon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")
	if err := sendEvent(path, time.Second, EventEnvelope{Type: "band_next"}); err == nil {
		t.Error("expected connect error")
	}
}
