package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type State int

const (
	Disconnected State = iota
	Connected
)

// Frame is one inbound event as delivered by the socket endpoint.
type Frame struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type controlFrame struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Topic  string `json:"topic"`
}

var ErrNotConnected = errors.New("transport: not connected")

// Manager owns the single persistent socket connection for a session. It
// reconnects on a fixed delay after any failure and keeps the connection
// alive with pings in both directions. Connection trouble is never surfaced
// as a hard error; it only shows up as a Disconnected state.
type Manager struct {
	url        string
	retryDelay time.Duration
	pingEvery  time.Duration

	mu      sync.Mutex
	token   string
	ws      *websocket.Conn
	active  map[string]bool // topics live on the current connection
	cancel  context.CancelFunc
	running bool

	states chan State
	frames chan Frame
}

type Option func(*Manager)

func WithRetryDelay(d time.Duration) Option   { return func(m *Manager) { m.retryDelay = d } }
func WithPingInterval(d time.Duration) Option { return func(m *Manager) { m.pingEvery = d } }

func NewManager(socketURL string, opts ...Option) *Manager {
	m := &Manager{
		url:        socketURL,
		retryDelay: 3 * time.Second,
		pingEvery:  30 * time.Second,
		states:     make(chan State, 16),
		frames:     make(chan Frame, 256),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) States() <-chan State { return m.states }
func (m *Manager) Frames() <-chan Frame { return m.frames }

// Connect starts the connection loop with the given bearer credential.
// No-op if a connection attempt is already in flight.
func (m *Manager) Connect(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	if m.running {
		return
	}
	m.running = true
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
}

// SetToken replaces the credential. Patching headers on a live connection is
// not possible, so the current connection is closed and the loop redials
// with the new token.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	if m.ws != nil {
		m.ws.Close()
	}
}

// Disconnect unsubscribes every active topic, closes the connection and
// stops the loop. Safe to call during a pending connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.cancel()
	if m.ws != nil {
		for topic := range m.active {
			m.ws.WriteJSON(controlFrame{Action: "unsubscribe", Topic: topic})
		}
		m.ws.Close()
		m.ws = nil
		m.active = nil
	}
}

// Subscribe registers interest in a topic on the current connection.
// Subscriptions do not survive a reconnect; callers re-subscribe when the
// state signal reports Connected again.
func (m *Manager) Subscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ws == nil {
		return ErrNotConnected
	}
	if err := m.ws.WriteJSON(controlFrame{Action: "subscribe", Topic: topic}); err != nil {
		return err
	}
	m.active[topic] = true
	return nil
}

func (m *Manager) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ws == nil {
		return ErrNotConnected
	}
	delete(m.active, topic)
	return m.ws.WriteJSON(controlFrame{Action: "unsubscribe", Topic: topic})
}

func (m *Manager) run(ctx context.Context) {
	for {
		m.mu.Lock()
		token := m.token
		m.mu.Unlock()

		header := http.Header{}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
		ws, resp, err := websocket.DefaultDialer.DialContext(ctx, m.url, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[WS] dial %s failed: %v, retrying in %s", m.url, err, m.retryDelay)
			select {
			case <-time.After(m.retryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}

		m.mu.Lock()
		if !m.running {
			// Disconnect raced the dial.
			m.mu.Unlock()
			ws.Close()
			return
		}
		m.ws = ws
		m.active = make(map[string]bool)
		m.mu.Unlock()

		m.emit(ctx, Connected)
		m.readLoop(ctx, ws)

		m.mu.Lock()
		if m.ws == ws {
			m.ws = nil
			m.active = nil
		}
		m.mu.Unlock()
		m.emit(ctx, Disconnected)

		if ctx.Err() != nil {
			return
		}
		select {
		case <-time.After(m.retryDelay):
		case <-ctx.Done():
			return
		}
	}
}

// readLoop pumps frames until the connection dies. Connection errors,
// protocol errors and abrupt closes all end up here the same way.
func (m *Manager) readLoop(ctx context.Context, ws *websocket.Conn) {
	pongWait := m.pingEvery + m.pingEvery/2

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(m.pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[WS] connection lost: %v", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Topic == "" {
			log.Printf("[WS] dropping malformed frame: %s", data)
			continue
		}
		select {
		case m.frames <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) emit(ctx context.Context, s State) {
	select {
	case m.states <- s:
	case <-ctx.Done():
	}
}
