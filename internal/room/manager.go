package room

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/gillesie/tankwars-online/internal/protocol"
)

const maxRoomNameLen = 30

var (
	ErrTooManyRooms = errors.New("too many rooms")
	ErrBadPassword  = errors.New("wrong room password")
	ErrBadRoomName  = errors.New("room name required")
)

// ManagerOptions configure a Manager
type ManagerOptions struct {
	Room       Options
	MaxRooms   int
	BcryptCost int
}

// Manager owns every live room and the lobby connections that watch the
// room list
type Manager struct {
	opts    ManagerOptions
	ctx     context.Context
	tokens  *TokenIssuer
	metrics *Metrics
	log     zerolog.Logger

	mu        sync.Mutex
	rooms     map[string]*Room
	passwords map[string][]byte
	lobby     map[Conn]struct{}
	dirty     chan struct{}
}

// NewManager creates a manager. Rooms it creates stop when ctx ends.
func NewManager(ctx context.Context, opts ManagerOptions, tokens *TokenIssuer, metrics *Metrics, log zerolog.Logger) *Manager {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Manager{
		opts:      opts,
		ctx:       ctx,
		tokens:    tokens,
		metrics:   metrics,
		log:       log,
		rooms:     make(map[string]*Room),
		passwords: make(map[string][]byte),
		lobby:     make(map[Conn]struct{}),
		dirty:     make(chan struct{}, 1),
	}
}

// Count returns the number of live rooms
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Join places conn in the named room, creating it on first use
func (m *Manager) Join(conn Conn, msg protocol.JoinMsg) (*Room, string, error) {
	name := cleanRoomName(msg.Room)
	if name == "" {
		return nil, "", ErrBadRoomName
	}

	// A room can close between lookup and join; retry once with a fresh one.
	for attempt := 0; attempt < 2; attempt++ {
		r, err := m.roomFor(name, msg)
		if err != nil {
			return nil, "", err
		}
		id, err := r.Join(conn, msg)
		if errors.Is(err, ErrRoomClosed) {
			m.forget(name, r)
			continue
		}
		if err != nil {
			return nil, "", err
		}
		m.Unsubscribe(conn)
		m.notify()
		return r, id, nil
	}
	return nil, "", ErrRoomClosed
}

func (m *Manager) roomFor(name string, msg protocol.JoinMsg) (*Room, error) {
	m.mu.Lock()
	r, ok := m.rooms[name]
	hash := m.passwords[name]
	m.mu.Unlock()

	if ok {
		if hash != nil && !m.holdsToken(name, msg.Token) {
			if err := bcrypt.CompareHashAndPassword(hash, []byte(msg.Password)); err != nil {
				return nil, ErrBadPassword
			}
		}
		return r, nil
	}
	return m.create(name, msg.Password)
}

func (m *Manager) holdsToken(room, token string) bool {
	if token == "" || m.tokens == nil {
		return false
	}
	claims, err := m.tokens.Parse(token)
	return err == nil && claims.Room == room
}

func (m *Manager) create(name, password string) (*Room, error) {
	var hash []byte
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), m.opts.BcryptCost)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[name]; ok {
		// lost a creation race; the winner's password applies
		if h := m.passwords[name]; h != nil && bcrypt.CompareHashAndPassword(h, []byte(password)) != nil {
			return nil, ErrBadPassword
		}
		return r, nil
	}
	if m.opts.MaxRooms > 0 && len(m.rooms) >= m.opts.MaxRooms {
		return nil, ErrTooManyRooms
	}

	r := NewRoom(name, rand.Uint32(), m.opts.Room, m.tokens, m.metrics, m.log)
	r.onChange = m.notify
	m.rooms[name] = r
	if hash != nil {
		m.passwords[name] = hash
	}
	m.metrics.roomCreated()

	go func() {
		r.Run(m.ctx)
		m.forget(name, r)
	}()
	return r, nil
}

func (m *Manager) forget(name string, r *Room) {
	m.mu.Lock()
	if m.rooms[name] == r {
		delete(m.rooms, name)
		delete(m.passwords, name)
	}
	m.mu.Unlock()
	m.notify()
}

// List summarizes the live rooms sorted by name
func (m *Manager) List() []protocol.RoomSummary {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	locked := make(map[string]bool, len(m.passwords))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	for name := range m.passwords {
		locked[name] = true
	}
	m.mu.Unlock()

	out := make([]protocol.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		s, ok := r.Summary()
		if !ok {
			continue
		}
		s.Locked = locked[s.Name]
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Subscribe adds a lobby connection to the room list feed and sends it the
// current list
func (m *Manager) Subscribe(conn Conn) {
	m.mu.Lock()
	m.lobby[conn] = struct{}{}
	m.mu.Unlock()
	m.sendList([]Conn{conn}, m.List())
}

// Unsubscribe removes a lobby connection
func (m *Manager) Unsubscribe(conn Conn) {
	m.mu.Lock()
	delete(m.lobby, conn)
	m.mu.Unlock()
}

// notify marks the room list dirty; it never blocks
func (m *Manager) notify() {
	select {
	case m.dirty <- struct{}{}:
	default:
	}
}

// RunDiscovery pushes the room list to lobby connections whenever it
// changes, and at least every interval
func (m *Manager) RunDiscovery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.dirty:
		case <-ticker.C:
		}
		m.mu.Lock()
		conns := make([]Conn, 0, len(m.lobby))
		for c := range m.lobby {
			conns = append(conns, c)
		}
		m.mu.Unlock()
		if len(conns) > 0 {
			m.sendList(conns, m.List())
		}
	}
}

func (m *Manager) sendList(conns []Conn, list []protocol.RoomSummary) {
	frame, err := protocol.TextFrame(protocol.MsgRoomList, list)
	if err != nil {
		m.log.Error().Err(err).Msg("encode room list")
		return
	}
	for _, c := range conns {
		if err := c.Send(frame); err != nil {
			m.metrics.drop()
		}
	}
}

func cleanRoomName(name string) string {
	return truncate(strings.TrimSpace(name), maxRoomNameLen)
}
