package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/lightgraph"
)

func dialTestServer(t *testing.T, s *Server) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return ts, conn
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.NumClients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients, have %d", n, s.NumClients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesClient(t *testing.T) {
	s := NewServer(nil)
	defer s.Close()

	_, conn := dialTestServer(t, s)
	waitForClients(t, s, 1)

	stats := lightgraph.FrameStats{
		Frame:         42,
		VisibleLights: 3,
		Interactions:  17,
		Culled:        5,
		Processed:     22,
	}
	s.Publish(stats)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type  string                `json:"type"`
		Stats lightgraph.FrameStats `json:"stats"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "stats", msg.Type)
	assert.Equal(t, stats, msg.Stats)
}

func TestLateClientGetsSnapshot(t *testing.T) {
	s := NewServer(nil)
	defer s.Close()

	stats := lightgraph.FrameStats{Frame: 7, VisibleLights: 1}
	s.Publish(stats) // nobody listening yet

	_, conn := dialTestServer(t, s)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type  string                `json:"type"`
		Stats lightgraph.FrameStats `json:"stats"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, stats, msg.Stats, "late joiners receive the latest snapshot")
}

func TestDeadClientsAreDropped(t *testing.T) {
	s := NewServer(nil)
	defer s.Close()

	_, conn := dialTestServer(t, s)
	waitForClients(t, s, 1)

	conn.Close()

	// Publishing into the closed connection evicts it; one or two attempts
	// may be needed before the write fails.
	deadline := time.Now().Add(2 * time.Second)
	for s.NumClients() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("dead client was never evicted")
		}
		s.Publish(lightgraph.FrameStats{Frame: 1})
		time.Sleep(5 * time.Millisecond)
	}
}
