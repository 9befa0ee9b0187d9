package room

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gillesie/tankwars-online/internal/protocol"
)

var errConnFull = errors.New("send buffer full")

// fakeConn records every frame sent to it
type fakeConn struct {
	mu     sync.Mutex
	frames []protocol.Frame
	full   bool
}

func (c *fakeConn) Send(f protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errConnFull
	}
	c.frames = append(c.frames, f)
	return nil
}

// messages returns the decoded text envelopes of type t
func (c *fakeConn) messages(t *testing.T, typ string) []protocol.InEnvelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.InEnvelope
	for _, f := range c.frames {
		if f.Binary {
			continue
		}
		env, err := protocol.DecodeEnvelope(f.Data)
		require.NoError(t, err)
		if env.T == typ {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) snapshots(t *testing.T) []protocol.Snapshot {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.Snapshot
	for _, f := range c.frames {
		if !f.Binary {
			continue
		}
		s, err := protocol.DecodeSnapshot(f.Data)
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func (c *fakeConn) count(t *testing.T, typ string) int {
	return len(c.messages(t, typ))
}

func lastPayload[T any](t *testing.T, c *fakeConn, typ string) T {
	t.Helper()
	msgs := c.messages(t, typ)
	require.NotEmpty(t, msgs, "no %s message", typ)
	v, err := protocol.DecodePayload[T](msgs[len(msgs)-1])
	require.NoError(t, err)
	return v
}

func testTokens(t *testing.T) *TokenIssuer {
	t.Helper()
	tokens, err := NewTokenIssuer("test-secret", time.Minute)
	require.NoError(t, err)
	return tokens
}

func newTestRoom(t *testing.T, opts Options) *Room {
	t.Helper()
	return NewRoom("arena", 42, opts, testTokens(t), nil, zerolog.Nop())
}

func joinAs(t *testing.T, r *Room, name string, team int) (string, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	id, err := r.join(conn, protocol.JoinMsg{Room: r.Name, Name: name, Team: team})
	require.NoError(t, err)
	return id, conn
}

func envelope(t *testing.T, typ string, payload interface{}) protocol.InEnvelope {
	t.Helper()
	env := protocol.InEnvelope{T: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		env.D = data
	}
	return env
}

// playingRoom starts a match with one blue and one red player
func playingRoom(t *testing.T) (r *Room, blue, red string, blueConn, redConn *fakeConn) {
	t.Helper()
	r = newTestRoom(t, DefaultOptions())
	blue, blueConn = joinAs(t, r, "blue", 1)
	red, redConn = joinAs(t, r, "red", 2)
	r.handle(blue, envelope(t, protocol.MsgStartGame, nil))
	require.Equal(t, protocol.StatusPlaying, r.status)
	return r, blue, red, blueConn, redConn
}

func stepTicks(r *Room, n int) {
	for i := 0; i < n; i++ {
		r.step()
	}
}
