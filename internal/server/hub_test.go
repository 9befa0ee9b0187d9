package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHubConnectionLimits(t *testing.T) {
	h := NewHub(nil, Limits{MaxConnsPerIP: 2, MaxTotalConns: 3}, zerolog.Nop())

	assert.True(t, h.CanAccept("10.0.0.1"))
	h.TrackConnect("10.0.0.1")
	h.TrackConnect("10.0.0.1")
	assert.False(t, h.CanAccept("10.0.0.1"), "per-IP cap")
	assert.True(t, h.CanAccept("10.0.0.2"))

	h.TrackConnect("10.0.0.2")
	assert.False(t, h.CanAccept("10.0.0.3"), "total cap")

	h.TrackDisconnect("10.0.0.1")
	assert.True(t, h.CanAccept("10.0.0.1"))
	assert.Equal(t, 2, h.TotalConns())
}

func TestHubZeroLimitsAcceptAll(t *testing.T) {
	h := NewHub(nil, Limits{}, zerolog.Nop())
	for i := 0; i < 100; i++ {
		h.TrackConnect("10.0.0.1")
	}
	assert.True(t, h.CanAccept("10.0.0.1"))
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin", nil, "", true},
		{"same host", nil, "http://example.com", true},
		{"other host", nil, "http://evil.test", false},
		{"listed", []string{"http://app.test"}, "http://app.test", true},
		{"wildcard", []string{"*"}, "http://evil.test", true},
		{"garbage", nil, "://", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://example.com/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			u := newUpgrader(tt.allowed)
			assert.Equal(t, tt.want, u.CheckOrigin(r))
		})
	}
}

func TestExtractIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "192.168.1.9:5555"
	assert.Equal(t, "192.168.1.9", extractIP(r))
	r.RemoteAddr = "weird"
	assert.Equal(t, "weird", extractIP(r))
}

func TestHubStoppedNeverBlocksClients(t *testing.T) {
	h := NewHub(nil, Limits{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			h.leave(&Client{})
		}
		assert.False(t, h.enter(&Client{}))
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("unregister blocked after the hub stopped")
	}
}
