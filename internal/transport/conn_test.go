package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type wsTestServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	dials int
	auth  []string

	inbound chan []byte
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{inbound: make(chan []byte, 64)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.dials++
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.inbound <- data
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsTestServer) latest() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

func (s *wsTestServer) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *wsTestServer) push(t *testing.T, topic string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Frame{Topic: topic, Data: data})
	require.NoError(t, err)
	conn := s.latest()
	require.NotNil(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func waitState(t *testing.T, ch <-chan State, want State) {
	t.Helper()
	select {
	case got := <-ch:
		require.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for state %v", want)
	}
}

func TestConnectDeliversFrames(t *testing.T) {
	srv := newWSTestServer(t)
	m := NewManager(srv.url(), WithRetryDelay(20*time.Millisecond), WithPingInterval(time.Second))
	defer m.Disconnect()

	m.Connect("tok-abc")
	waitState(t, m.States(), Connected)

	srv.push(t, "chat:c1:message", map[string]string{"id": "m1"})
	select {
	case frame := <-m.Frames():
		require.Equal(t, "chat:c1:message", frame.Topic)
	case <-time.After(3 * time.Second):
		t.Fatal("no frame delivered")
	}

	srv.mu.Lock()
	auth := srv.auth[0]
	srv.mu.Unlock()
	require.Equal(t, "Bearer tok-abc", auth)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	srv := newWSTestServer(t)
	m := NewManager(srv.url(), WithRetryDelay(20*time.Millisecond), WithPingInterval(time.Second))
	defer m.Disconnect()

	m.Connect("tok")
	waitState(t, m.States(), Connected)

	conn := srv.latest()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`))) // missing topic
	srv.push(t, "chat:c1:message", map[string]string{"id": "m1"})

	select {
	case frame := <-m.Frames():
		require.Equal(t, "chat:c1:message", frame.Topic, "only the well-formed frame survives")
	case <-time.After(3 * time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestReconnectAfterConnectionLoss(t *testing.T) {
	srv := newWSTestServer(t)
	m := NewManager(srv.url(), WithRetryDelay(10*time.Millisecond), WithPingInterval(time.Second))
	defer m.Disconnect()

	m.Connect("tok")
	waitState(t, m.States(), Connected)

	// Abrupt server-side close: no error surfaces, the manager just cycles.
	srv.latest().Close()
	waitState(t, m.States(), Disconnected)
	waitState(t, m.States(), Connected)
	require.GreaterOrEqual(t, srv.dialCount(), 2)
}

func TestSubscribeSendsControlFrames(t *testing.T) {
	srv := newWSTestServer(t)
	m := NewManager(srv.url(), WithRetryDelay(20*time.Millisecond), WithPingInterval(time.Second))

	m.Connect("tok")
	waitState(t, m.States(), Connected)

	require.NoError(t, m.Subscribe("chat:c1:message"))

	select {
	case data := <-srv.inbound:
		require.JSONEq(t, `{"action":"subscribe","topic":"chat:c1:message"}`, string(data))
	case <-time.After(3 * time.Second):
		t.Fatal("no subscribe frame received")
	}

	// Disconnect unsubscribes everything before closing.
	m.Disconnect()
	select {
	case data := <-srv.inbound:
		require.JSONEq(t, `{"action":"unsubscribe","topic":"chat:c1:message"}`, string(data))
	case <-time.After(3 * time.Second):
		t.Fatal("no unsubscribe frame received")
	}
}

func TestSubscribeWhileDisconnected(t *testing.T) {
	m := NewManager("ws://127.0.0.1:1/ws")
	require.ErrorIs(t, m.Subscribe("chat:c1:message"), ErrNotConnected)
}

func TestConnectIsIdempotentWhileRunning(t *testing.T) {
	srv := newWSTestServer(t)
	m := NewManager(srv.url(), WithRetryDelay(20*time.Millisecond), WithPingInterval(time.Second))
	defer m.Disconnect()

	m.Connect("tok")
	m.Connect("tok") // attempt already in flight, must not spawn a second loop
	waitState(t, m.States(), Connected)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, srv.dialCount())
}

func TestDisconnectDuringRetryLoop(t *testing.T) {
	// Nothing listens on this address; the manager stays in its retry loop.
	m := NewManager("ws://127.0.0.1:1/ws", WithRetryDelay(10*time.Millisecond))
	m.Connect("tok")
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Disconnect()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Disconnect hung during pending connect")
	}
}
