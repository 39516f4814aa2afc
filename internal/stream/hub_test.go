package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/objstate"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
	"github.com/danielpatrickdp/sim-state/go-engine/internal/sim"
)

func lampSim(t *testing.T) *sim.Simulator {
	t.Helper()
	w := physics.NewWorld(physics.DefaultWorldConfig())
	id := w.AddBody(physics.BodySpec{HalfExtents: mgl64.Vec3{0.1, 0.1, 0.1}})
	s := sim.New(w, nil, sim.DefaultConfig())
	_, err := s.Import(objstate.ObjectSpec{
		Name:   "lamp",
		Body:   id,
		Kinds:  []objstate.Kind{objstate.KindToggledOn, objstate.KindPose},
		Online: true,
	})
	require.NoError(t, err)
	return s
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastsSnapshots(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	s := lampSim(t)
	s.AddObserver(hub)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Step())
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeSnapshot, msg.Type)
	assert.Equal(t, int64(1), msg.Tick)

	var snap struct {
		Tick    int64 `json:"tick"`
		Objects []struct {
			Name   string                     `json:"name"`
			Values map[string]json.RawMessage `json:"values"`
		} `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	require.Len(t, snap.Objects, 1)
	assert.Equal(t, "lamp", snap.Objects[0].Name)
	assert.JSONEq(t, "false", string(snap.Objects[0].Values["toggled_on"]))

	s.Finish()
	end := readMessage(t, conn)
	assert.Equal(t, MessageTypeEnd, end.Type)
	assert.Equal(t, int64(1), end.Tick)
}

func TestHub_LateJoinerGetsLastFrame(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	s := lampSim(t)
	s.AddObserver(hub)
	require.NoError(t, s.Run(3))

	conn := dial(t, srv)
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeSnapshot, msg.Type)
	assert.Equal(t, int64(3), msg.Tick)
}

func TestHub_DropsDisconnectedClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	a.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(Message{Type: MessageTypeEnd, Tick: 7}))
	msg := readMessage(t, b)
	assert.Equal(t, int64(7), msg.Tick)
}

func TestHub_CloseRejectsSubscribers(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	late := dial(t, srv)
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Clients())
}
