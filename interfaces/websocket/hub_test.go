package websocket

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collabgraph-backend/pkg/observability"
)

func newTestHub() *Hub {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewHub(0, metrics, zap.NewNop())
}

func newTestClient(id, userID string, buffer int) *Client {
	c := &Client{
		id:     id,
		send:   make(chan []byte, buffer),
		joined: make(map[string]struct{}),
	}
	c.userID = userID
	c.authenticated = userID != ""
	return c
}

func drainOne(t *testing.T, c *Client) ServerMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	default:
		t.Fatal("expected a queued message")
		return ServerMessage{}
	}
}

func TestBroadcastToDiagramExcludesOriginator(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient("s1", "alice", 8)
	bob := newTestClient("s2", "bob", 8)
	hub.clients[alice] = struct{}{}
	hub.clients[bob] = struct{}{}
	hub.JoinRoom(alice, "d1")
	hub.JoinRoom(bob, "d1")

	require.NoError(t, hub.BroadcastToDiagram("d1", "alice", MsgDiagramUpdated, map[string]string{"k": "v"}))

	assert.Empty(t, alice.send)
	msg := drainOne(t, bob)
	assert.Equal(t, MsgDiagramUpdated, msg.Type)
	assert.NotZero(t, msg.Timestamp)
}

func TestBroadcastToDiagramEmptyExcludeReachesEveryone(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient("s1", "alice", 8)
	bob := newTestClient("s2", "bob", 8)
	hub.clients[alice] = struct{}{}
	hub.clients[bob] = struct{}{}
	hub.JoinRoom(alice, "d1")
	hub.JoinRoom(bob, "d1")

	require.NoError(t, hub.BroadcastToDiagram("d1", "", MsgParticipantsUpdated, nil))

	drainOne(t, alice)
	drainOne(t, bob)
}

func TestBroadcastOnlyReachesTheRoom(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient("s1", "alice", 8)
	bob := newTestClient("s2", "bob", 8)
	hub.clients[alice] = struct{}{}
	hub.clients[bob] = struct{}{}
	hub.JoinRoom(alice, "d1")
	hub.JoinRoom(bob, "d2")

	require.NoError(t, hub.BroadcastToDiagram("d1", "", MsgUserJoined, nil))

	drainOne(t, alice)
	assert.Empty(t, bob.send)
}

func TestSlowClientIsEvicted(t *testing.T) {
	hub := newTestHub()
	slow := newTestClient("s1", "alice", 0)
	hub.clients[slow] = struct{}{}
	hub.JoinRoom(slow, "d1")

	require.NoError(t, hub.BroadcastToDiagram("d1", "", MsgDiagramUpdated, nil))

	hub.mu.RLock()
	_, registered := hub.clients[slow]
	hub.mu.RUnlock()
	assert.False(t, registered)
	assert.Zero(t, hub.RoomSize("d1"))
}

func TestLeaveRoomDropsEmptyRooms(t *testing.T) {
	hub := newTestHub()
	alice := newTestClient("s1", "alice", 8)
	hub.clients[alice] = struct{}{}
	hub.JoinRoom(alice, "d1")
	require.Equal(t, 1, hub.RoomSize("d1"))

	hub.LeaveRoom(alice, "d1")
	assert.Zero(t, hub.RoomSize("d1"))

	hub.mu.RLock()
	_, exists := hub.rooms["d1"]
	hub.mu.RUnlock()
	assert.False(t, exists)
}

func TestClientJoinedTracking(t *testing.T) {
	c := newTestClient("s1", "alice", 1)
	c.markJoined("d1")
	c.markJoined("d2")
	c.markLeft("d1")

	assert.False(t, c.hasJoined("d1"))
	assert.True(t, c.hasJoined("d2"))
	assert.Equal(t, []string{"d2"}, c.joinedDiagrams())
}
