package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
// Messages are JSON text frames: {type, ts, data}. A client gets "state_init"
// on connect, then frequency_changed, transmit_changed, band_changed and
// step_changed as the reducer emits them. A client whose send queue fills is
// disconnected.
//
// DaemonState never leaves the daemon goroutine. The initial snapshot goes
// through the event loop like any other request.
// ============================================================================

// wsStateInit is the "state_init" payload.
type wsStateInit struct {
	FrequencyHz   int64     `json:"frequency_hz"`
	DesiredHz     int64     `json:"desired_hz"`
	SynthKnown    bool      `json:"synth_known"`
	SynthAt       time.Time `json:"synth_at"`
	StepHz        int64     `json:"step_hz"`
	Band          string    `json:"band"`
	Transmitting  bool      `json:"transmitting"`
	TXKnown       bool      `json:"tx_known"`
	KeyDown       bool      `json:"key_down"`
	LastDirection string    `json:"last_direction"`
}

func newWSStateInit(s StateSnapshot) wsStateInit {
	return wsStateInit{
		FrequencyHz:   s.FrequencyHz,
		DesiredHz:     s.DesiredHz,
		SynthKnown:    s.SynthKnown,
		SynthAt:       s.SynthAt,
		StepHz:        s.StepHz,
		Band:          s.Band,
		Transmitting:  s.Transmitting,
		TXKnown:       s.TXKnown,
		KeyDown:       s.KeyDown,
		LastDirection: s.LastDirection,
	}
}

type wsFrequencyChangedData struct {
	Hz        int64  `json:"hz"`
	Direction string `json:"direction"`
}

type wsTransmitChangedData struct {
	On bool `json:"on"`
}

type wsBandChangedData struct {
	Band string `json:"band"`
}

type wsStepChangedData struct {
	StepHz int64 `json:"step_hz"`
}

// wsOutboundEvent is a typed event ready for framing.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time
}

// envelope is the wire format for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalEnvelope(typ string, at time.Time, data any) ([]byte, error) {
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	return json.Marshal(envelope{Type: typ, Ts: &at, Data: data})
}

// ============================================================================
// Hub
// ============================================================================

// Hub tracks connected clients and fans frames out to them.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	SendBuf      int // per-client queue; 32 when zero
	BroadcastBuf int // hub inbound queue; 128 when zero
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled, then drops all clients.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// ClientCount reports the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// BroadcastBytes queues a frame for every client. It never blocks; a full
// hub queue drops the frame.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	closeOnce  sync.Once
	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

// close shuts the connection and signals writePump. Safe to call twice.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
	})
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsFrequencyCoalesceWindow bounds how often frequency_changed goes out while
// the knob spins. The latest value always wins.
const wsFrequencyCoalesceWindow = 50 * time.Millisecond

func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes queued frames and pings. It exits on write error or when
// send is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump discards inbound frames so control frames get handled and
// disconnects are noticed, then unregisters the client.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

// Server is the websocket endpoint plus its hub.
type Server struct {
	logger *slog.Logger
	hub    *Hub
	events chan<- Event
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the WS state server. Start Hub().Run and
// RunBroadcaster alongside it.
func NewServer(logger *slog.Logger, events chan<- Event, cfg ServerConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg.Hub),
		events: events,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register mounts the handler on mux.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// requestSnapshot asks the daemon for a snapshot and waits up to a second.
func requestSnapshot(ctx context.Context, events chan<- Event) (StateSnapshot, error) {
	reply := make(chan StateSnapshot, 1)

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}

// handleStateWS upgrades, registers the client and sends state_init.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)
	s.hub.register <- client

	// The pumps outlive the handler; the request context is canceled as soon
	// as we return.
	go client.writePump()
	go client.readPump()

	if s.events == nil {
		return
	}

	snap, err := requestSnapshot(r.Context(), s.events)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", err)
		}
		return
	}

	msg, err := marshalEnvelope("state_init", snap.At, newWSStateInit(snap))
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		return
	}
	// The client is brand new; if even this does not fit it is already
	// too slow.
	select {
	case client.send <- msg:
	default:
		s.hub.unregister <- client
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster frames reducer broadcasts and hands them to the hub.
// frequency_changed is rate-limited to one per wsFrequencyCoalesceWindow,
// latest-wins; every other event flushes the pending frequency first so
// ordering is preserved.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var pending *wsOutboundEvent
	timer := time.NewTimer(wsFrequencyCoalesceWindow)
	timer.Stop()
	timerRunning := false

	emit := func(ev wsOutboundEvent) {
		msg, err := marshalEnvelope(ev.Type, ev.At, ev.Data)
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}
	flush := func() {
		if pending != nil {
			emit(*pending)
			pending = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			timer.Stop()
			return

		case <-timer.C:
			timerRunning = false
			if pending != nil {
				flush()
				timer.Reset(wsFrequencyCoalesceWindow)
				timerRunning = true
			}

		case b, ok := <-src:
			if !ok {
				flush()
				timer.Stop()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			if ev.Type == "frequency_changed" {
				pending = &ev
				if !timerRunning {
					timer.Reset(wsFrequencyCoalesceWindow)
					timerRunning = true
				}
				continue
			}

			flush()
			emit(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastFrequencyChanged:
		return wsOutboundEvent{
			Type: "frequency_changed",
			Data: wsFrequencyChangedData{Hz: ev.Hz, Direction: ev.Direction},
			At:   ev.At,
		}, true
	case BroadcastTransmitChanged:
		return wsOutboundEvent{Type: "transmit_changed", Data: wsTransmitChangedData{On: ev.On}, At: ev.At}, true
	case BroadcastBandChanged:
		return wsOutboundEvent{Type: "band_changed", Data: wsBandChangedData{Band: ev.Band}, At: ev.At}, true
	case BroadcastStepChanged:
		return wsOutboundEvent{Type: "step_changed", Data: wsStepChangedData{StepHz: ev.StepHz}, At: ev.At}, true
	default:
		return wsOutboundEvent{}, false
	}
}
