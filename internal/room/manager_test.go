package room

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gillesie/tankwars-online/internal/protocol"
)

func newTestManager(t *testing.T, maxRooms int) *Manager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	opts := ManagerOptions{Room: DefaultOptions(), MaxRooms: maxRooms, BcryptCost: bcrypt.MinCost}
	return NewManager(ctx, opts, testTokens(t), nil, zerolog.Nop())
}

func TestManagerCreatesAndReusesRooms(t *testing.T) {
	m := newTestManager(t, 4)

	r1, a, err := m.Join(&fakeConn{}, protocol.JoinMsg{Room: " alpha ", Name: "a"})
	require.NoError(t, err)
	r2, b, err := m.Join(&fakeConn{}, protocol.JoinMsg{Room: "alpha", Name: "b"})
	require.NoError(t, err)
	assert.Same(t, r1, r2)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 1, m.Count())

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, protocol.RoomSummary{Name: "alpha", Status: protocol.StatusLobby, Blue: 1, Red: 1}, list[0])
}

func TestManagerRejectsBlankRoom(t *testing.T) {
	m := newTestManager(t, 4)
	_, _, err := m.Join(&fakeConn{}, protocol.JoinMsg{Room: "   "})
	assert.ErrorIs(t, err, ErrBadRoomName)
}

func TestManagerRoomLimit(t *testing.T) {
	m := newTestManager(t, 1)
	_, _, err := m.Join(&fakeConn{}, protocol.JoinMsg{Room: "one"})
	require.NoError(t, err)
	_, _, err = m.Join(&fakeConn{}, protocol.JoinMsg{Room: "two"})
	assert.ErrorIs(t, err, ErrTooManyRooms)
}

func TestManagerPasswords(t *testing.T) {
	m := newTestManager(t, 4)
	hostConn := &fakeConn{}
	_, _, err := m.Join(hostConn, protocol.JoinMsg{Room: "vault", Password: "hunter2"})
	require.NoError(t, err)

	_, _, err = m.Join(&fakeConn{}, protocol.JoinMsg{Room: "vault"})
	assert.ErrorIs(t, err, ErrBadPassword)
	_, _, err = m.Join(&fakeConn{}, protocol.JoinMsg{Room: "vault", Password: "hunter3"})
	assert.ErrorIs(t, err, ErrBadPassword)
	_, _, err = m.Join(&fakeConn{}, protocol.JoinMsg{Room: "vault", Password: "hunter2"})
	assert.NoError(t, err)

	list := m.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].Locked)
}

func TestManagerTokenSkipsPassword(t *testing.T) {
	m := newTestManager(t, 4)
	_, id, err := m.Join(&fakeConn{}, protocol.JoinMsg{Room: "vault", Password: "hunter2"})
	require.NoError(t, err)

	token, err := m.tokens.Issue("vault", id, 1)
	require.NoError(t, err)
	_, _, err = m.Join(&fakeConn{}, protocol.JoinMsg{Room: "vault", Token: token})
	assert.NoError(t, err)

	other, err := m.tokens.Issue("elsewhere", id, 1)
	require.NoError(t, err)
	_, _, err = m.Join(&fakeConn{}, protocol.JoinMsg{Room: "vault", Token: other})
	assert.ErrorIs(t, err, ErrBadPassword)
}

func TestManagerForgetsClosedRooms(t *testing.T) {
	m := newTestManager(t, 4)
	r, id, err := m.Join(&fakeConn{}, protocol.JoinMsg{Room: "brief"})
	require.NoError(t, err)

	r.Leave(id)
	require.Eventually(t, func() bool { return m.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	// the name is free again, password included
	_, _, err = m.Join(&fakeConn{}, protocol.JoinMsg{Room: "brief", Password: "new"})
	assert.NoError(t, err)
}

func TestManagerDiscovery(t *testing.T) {
	m := newTestManager(t, 4)
	lobby := &fakeConn{}
	m.Subscribe(lobby)

	first := lastPayload[[]protocol.RoomSummary](t, lobby, protocol.MsgRoomList)
	assert.Empty(t, first)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunDiscovery(ctx, time.Hour) }()

	_, _, err := m.Join(&fakeConn{}, protocol.JoinMsg{Room: "beta"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		list := lastPayload[[]protocol.RoomSummary](t, lobby, protocol.MsgRoomList)
		return len(list) == 1 && list[0].Name == "beta"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestManagerJoinLeavesLobbyFeed(t *testing.T) {
	m := newTestManager(t, 4)
	conn := &fakeConn{}
	m.Subscribe(conn)
	_, _, err := m.Join(conn, protocol.JoinMsg{Room: "gamma"})
	require.NoError(t, err)

	m.mu.Lock()
	_, watching := m.lobby[conn]
	m.mu.Unlock()
	assert.False(t, watching)
}

func TestManagerTruncatesRoomNamesByRune(t *testing.T) {
	m := newTestManager(t, 4)
	long := strings.Repeat("ü", maxRoomNameLen+5)
	r, _, err := m.Join(&fakeConn{}, protocol.JoinMsg{Room: long})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(r.Name))
	assert.Equal(t, maxRoomNameLen, utf8.RuneCountInString(r.Name))
}
