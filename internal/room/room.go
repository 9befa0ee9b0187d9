package room

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gillesie/tankwars-online/internal/modes"
	"github.com/gillesie/tankwars-online/internal/protocol"
	"github.com/gillesie/tankwars-online/internal/sim"
)

const (
	inboxSize    = 256
	maxNameLen   = 16
	crateMargin  = 100.0
	crateSpawnY  = -100.0
	shortIDLen   = 8
	needTeamsMsg = "Need at least one player on each team"
)

var (
	ErrRoomFull   = errors.New("room full")
	ErrRoomClosed = errors.New("room closed")
	ErrMatchOver  = errors.New("match is over")
)

// Conn is the outbound side of a member's connection. Send must not block.
type Conn interface {
	Send(f protocol.Frame) error
}

// Options configure a room
type Options struct {
	TickRate       int
	MaxPlayers     int
	CrateInterval  time.Duration
	MaxCrates      int
	RespawnDelay   time.Duration
	ReconnectGrace time.Duration
	LoadedAmmo     bool
	Width          float64
}

// DefaultOptions returns the standard versus room settings
func DefaultOptions() Options {
	return Options{
		TickRate:       30,
		MaxPlayers:     16,
		CrateInterval:  10 * time.Second,
		MaxCrates:      5,
		RespawnDelay:   3 * time.Second,
		ReconnectGrace: 10 * time.Second,
		Width:          sim.TerrainWidth,
	}
}

type member struct {
	state protocol.PlayerState
	conn  Conn
	held  bool // disconnected mid-match, waiting for a rejoin
}

// Room is the authoritative state of one versus match. Everything below
// the channel fields is owned by the Run goroutine; other goroutines reach
// it through exec and post.
type Room struct {
	Name string

	seed    uint32
	opts    Options
	tokens  *TokenIssuer
	metrics *Metrics
	log     zerolog.Logger

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once
	onChange  func()

	status             string
	host               string
	members            map[string]*member
	order              []string
	crates             []protocol.CrateState
	planes             []*sim.Plane
	platforms          []protocol.PlatformState
	destroyedPlatforms sim.DestroyedSet
	destroyedBlocks    sim.DestroyedSet
	sched              *sim.Scheduler
	rng                uint32
	tick               uint64
	lastCrate          uint64
	closing            bool
}

// NewRoom creates a room in the lobby state. Call Run to start it.
func NewRoom(name string, seed uint32, opts Options, tokens *TokenIssuer, metrics *Metrics, log zerolog.Logger) *Room {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultOptions().TickRate
	}
	if opts.Width <= 0 {
		opts.Width = sim.TerrainWidth
	}
	return &Room{
		Name:               name,
		seed:               seed,
		opts:               opts,
		tokens:             tokens,
		metrics:            metrics,
		log:                log.With().Str("room", name).Logger(),
		inbox:              make(chan func(), inboxSize),
		done:               make(chan struct{}),
		status:             protocol.StatusLobby,
		members:            make(map[string]*member),
		destroyedPlatforms: make(sim.DestroyedSet),
		destroyedBlocks:    make(sim.DestroyedSet),
		sched:              sim.NewScheduler(),
		rng:                seed ^ 0xA511E9B3,
	}
}

// Run processes commands and ticks until ctx ends or the last connection
// leaves
func (r *Room) Run(ctx context.Context) {
	defer r.close()

	ticker := time.NewTicker(time.Second / time.Duration(r.opts.TickRate))
	defer ticker.Stop()

	r.log.Info().Uint32("seed", r.seed).Msg("room open")
	for !r.closing {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.inbox:
			fn()
		case <-ticker.C:
			r.step()
		}
	}
	r.log.Info().Msg("room closed")
}

// Done is closed once the room has stopped
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// exec runs fn on the room goroutine and waits for it
func (r *Room) exec(fn func()) error {
	finished := make(chan struct{})
	select {
	case r.inbox <- func() { fn(); close(finished) }:
	case <-r.done:
		return ErrRoomClosed
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// post queues fn without waiting for it
func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.done:
	}
}

// Join adds a player, or reattaches a held one when msg carries a valid
// rejoin token, and returns the player id
func (r *Room) Join(conn Conn, msg protocol.JoinMsg) (string, error) {
	var (
		id  string
		err error
	)
	if e := r.exec(func() { id, err = r.join(conn, msg) }); e != nil {
		return "", e
	}
	return id, err
}

// Leave removes a player at once
func (r *Room) Leave(id string) {
	r.post(func() { r.remove(id) })
}

// Disconnect handles a dropped connection. During a match the tank is held
// for the reconnect grace while other connections remain.
func (r *Room) Disconnect(id string) {
	r.post(func() { r.disconnect(id) })
}

// Dispatch queues a client message for the room goroutine
func (r *Room) Dispatch(id string, env protocol.InEnvelope) {
	r.post(func() { r.handle(id, env) })
}

// Summary describes the room for discovery
func (r *Room) Summary() (protocol.RoomSummary, bool) {
	var s protocol.RoomSummary
	if err := r.exec(func() { s = r.summary() }); err != nil {
		return s, false
	}
	return s, true
}

func (r *Room) summary() protocol.RoomSummary {
	blue, red := r.teamCounts()
	return protocol.RoomSummary{Name: r.Name, Status: r.status, Blue: blue, Red: red}
}

func (r *Room) join(conn Conn, msg protocol.JoinMsg) (string, error) {
	if msg.Token != "" {
		if id, ok := r.rejoin(conn, msg.Token); ok {
			return id, nil
		}
	}
	if r.status == protocol.StatusOver {
		return "", ErrMatchOver
	}
	if len(r.members) >= r.opts.MaxPlayers {
		return "", ErrRoomFull
	}

	id := uuid.NewString()
	blue, red := r.teamCounts()
	team := modes.AssignTeam(msg.Team, blue, red)
	x, y := sim.SpawnPoint(team, r.opts.Width)
	r.members[id] = &member{
		conn: conn,
		state: protocol.PlayerState{
			ID:    id,
			Name:  cleanName(msg.Name, id),
			Team:  team,
			X:     x,
			Y:     y,
			HP:    sim.TankMaxHP,
			MaxHP: sim.TankMaxHP,
			Lives: sim.TankLives,
		},
	}
	r.order = append(r.order, id)
	if r.host == "" {
		r.host = id
	}

	r.sendInit(id)
	r.broadcastExcept(id, protocol.MsgPlayerJoined, r.playerState(id))
	r.metrics.join()
	r.log.Info().Str("player", id).Int("team", team).Msg("player joined")
	r.changed()
	return id, nil
}

func (r *Room) rejoin(conn Conn, token string) (string, bool) {
	if r.tokens == nil {
		return "", false
	}
	claims, err := r.tokens.Parse(token)
	if err != nil || claims.Room != r.Name {
		r.log.Debug().Err(err).Msg("rejoin refused")
		return "", false
	}
	m, ok := r.members[claims.Player]
	if !ok || !m.held {
		return "", false
	}
	m.conn = conn
	m.held = false
	r.sched.CancelKey(graceKey(claims.Player))
	r.sendInit(claims.Player)
	r.log.Info().Str("player", claims.Player).Msg("player rejoined")
	return claims.Player, true
}

func (r *Room) disconnect(id string) {
	m, ok := r.members[id]
	if !ok {
		return
	}
	if r.status != protocol.StatusPlaying || r.opts.ReconnectGrace <= 0 || r.connections() <= 1 {
		r.remove(id)
		return
	}
	m.conn = nil
	m.held = true
	r.sched.After(r.ticks(r.opts.ReconnectGrace), graceKey(id), func() {
		if m, ok := r.members[id]; ok && m.held {
			r.remove(id)
		}
	})
	r.log.Info().Str("player", id).Msg("player held for rejoin")
}

func (r *Room) remove(id string) {
	if _, ok := r.members[id]; !ok {
		return
	}
	delete(r.members, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.sched.CancelKey(respawnKey(id))
	r.sched.CancelKey(graceKey(id))
	r.broadcast(protocol.MsgPlayerLeft, protocol.IDMsg{ID: id})

	if r.host == id {
		r.host = ""
		if len(r.order) > 0 {
			r.host = r.order[0]
			r.broadcast(protocol.MsgHostChanged, protocol.IDMsg{ID: r.host})
		}
	}
	if r.status == protocol.StatusPlaying {
		r.checkWin()
	}
	if r.connections() == 0 {
		r.closing = true
	}
	r.log.Info().Str("player", id).Msg("player left")
	r.changed()
}

func (r *Room) handle(id string, env protocol.InEnvelope) {
	m, ok := r.members[id]
	if !ok || m.held || r.status == protocol.StatusOver {
		return
	}
	if env.T == protocol.MsgStartGame {
		r.startGame(id)
		return
	}
	if r.status != protocol.StatusPlaying {
		return
	}

	var err error
	switch env.T {
	case protocol.MsgState:
		var rep protocol.StateReport
		if rep, err = protocol.DecodePayload[protocol.StateReport](env); err == nil {
			r.mergeState(m, rep)
		}
	case protocol.MsgFire:
		var f protocol.FireMsg
		if f, err = protocol.DecodePayload[protocol.FireMsg](env); err == nil {
			r.fire(id, f)
		}
	case protocol.MsgHit:
		var h protocol.HitMsg
		if h, err = protocol.DecodePayload[protocol.HitMsg](env); err == nil {
			r.hit(id, h)
		}
	case protocol.MsgDied:
		var d protocol.DiedMsg
		if d, err = protocol.DecodePayload[protocol.DiedMsg](env); err == nil {
			r.died(id, d.KillerID)
		}
	case protocol.MsgPlatformDamage:
		var d protocol.PlatformDamageMsg
		if d, err = protocol.DecodePayload[protocol.PlatformDamageMsg](env); err == nil {
			r.platformDamage(id, d)
		}
	case protocol.MsgPlatformDestroyed:
		var d protocol.IDMsg
		if d, err = protocol.DecodePayload[protocol.IDMsg](env); err == nil {
			r.platformDestroyed(d.ID)
		}
	case protocol.MsgCreatePlatform:
		var p protocol.PlatformState
		if p, err = protocol.DecodePayload[protocol.PlatformState](env); err == nil {
			r.createPlatform(p)
		}
	case protocol.MsgBlockDestroyed:
		var d protocol.IDMsg
		if d, err = protocol.DecodePayload[protocol.IDMsg](env); err == nil {
			r.blockDestroyed(d.ID)
		}
	case protocol.MsgCrateCollected:
		var d protocol.IDMsg
		if d, err = protocol.DecodePayload[protocol.IDMsg](env); err == nil {
			r.crateCollected(d.ID)
		}
	case protocol.MsgPlaneHit:
		var d protocol.PlaneHitMsg
		if d, err = protocol.DecodePayload[protocol.PlaneHitMsg](env); err == nil {
			r.planeHit(id, d)
		}
	default:
		err = protocol.ErrUnknownMessage
	}
	if err != nil {
		r.log.Debug().Err(err).Str("player", id).Str("type", env.T).Msg("message dropped")
	}
}

func (r *Room) startGame(id string) {
	if id != r.host || r.status != protocol.StatusLobby {
		return
	}
	blue, red := r.teamCounts()
	if !modes.CanStart(blue, red) {
		r.send(id, protocol.MsgNotification, protocol.NotificationMsg{Msg: needTeamsMsg})
		return
	}
	r.status = protocol.StatusPlaying
	r.lastCrate = r.tick
	r.broadcast(protocol.MsgGameStarted, nil)
	r.log.Info().Int("blue", blue).Int("red", red).Msg("match started")
	r.changed()
}

// mergeState trusts the owner's kinematic report
func (r *Room) mergeState(m *member, rep protocol.StateReport) {
	if m.state.Dead {
		return
	}
	m.state.X = rep.X
	m.state.Y = rep.Y
	m.state.Angle = rep.Angle
	m.state.TurretAngle = rep.TurretAngle
	m.state.HP = rep.HP
	m.state.Shield = rep.Shield
}

func (r *Room) fire(id string, f protocol.FireMsg) {
	m, err := sim.ParseMunition(f.Munition)
	if err != nil || !m.Offensive() {
		return
	}
	f.ID = id
	f.Power = sim.Clamp(f.Power, sim.MinFirePower, sim.MaxFirePower)
	r.broadcastExcept(id, protocol.MsgPlayerFired, f)
}

// hit relays the damage the sender's tank took; hp itself arrives with
// the next state report
func (r *Room) hit(id string, h protocol.HitMsg) {
	if r.members[id].state.Dead || h.Damage <= 0 {
		return
	}
	h.ID = id
	h.Damage = math.Min(h.Damage, sim.TankMaxHP)
	r.broadcastExcept(id, protocol.MsgHitConfirmed, h)
}

// died takes the owner's word for its death, like its state reports. The
// last report can still show hp above zero because the client stops
// reporting on the tick it dies.
func (r *Room) died(id, killerID string) {
	m := r.members[id]
	p := &m.state
	if p.Dead {
		return
	}
	p.Lives--
	p.Dead = true
	p.HP = 0
	r.broadcast(protocol.MsgPlayerDied, protocol.DeathMsg{ID: id, KillerID: killerID, Lives: p.Lives})

	if p.Lives > 0 {
		r.sched.After(r.ticks(r.opts.RespawnDelay), respawnKey(id), func() { r.respawn(id) })
		return
	}
	r.checkWin()
}

func (r *Room) respawn(id string) {
	m, ok := r.members[id]
	if !ok || r.status != protocol.StatusPlaying {
		return
	}
	p := &m.state
	p.Dead = false
	p.HP = sim.TankMaxHP
	p.MaxHP = sim.TankMaxHP
	p.Shield = 0
	p.X = modes.RespawnX(&r.rng, r.opts.Width)
	p.Y = sim.TankSpawnY
	r.broadcast(protocol.MsgPlayerRespawn, r.playerState(id))
}

func (r *Room) checkWin() {
	members := make([]modes.Member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, modes.Member{Team: m.state.Team, Lives: m.state.Lives})
	}
	outcome := modes.CheckWin(members)
	if outcome == modes.OutcomeNone {
		return
	}
	r.status = protocol.StatusOver
	r.sched.Clear()
	r.broadcast(protocol.MsgGameOver, protocol.GameOverMsg{Winner: outcome.Winner()})
	r.log.Info().Str("winner", outcome.Winner()).Msg("match over")
	r.changed()
}

func (r *Room) platformDamage(id string, d protocol.PlatformDamageMsg) {
	for i := range r.platforms {
		if r.platforms[i].ID == d.ID {
			r.platforms[i].HP -= d.Damage
		}
	}
	r.broadcastExcept(id, protocol.MsgPlatformDamaged, d)
}

func (r *Room) platformDestroyed(pid string) {
	if sim.IsStaticPlatform(pid) {
		r.destroyedPlatforms[pid] = struct{}{}
	} else {
		kept := r.platforms[:0]
		for _, p := range r.platforms {
			if p.ID != pid {
				kept = append(kept, p)
			}
		}
		r.platforms = kept
	}
	r.broadcast(protocol.MsgPlatformDestroyed, protocol.IDMsg{ID: pid})
}

func (r *Room) createPlatform(p protocol.PlatformState) {
	if p.ID == "" || sim.IsStaticPlatform(p.ID) || p.Width <= 0 {
		return
	}
	for _, old := range r.platforms {
		if old.ID == p.ID {
			return
		}
	}
	r.platforms = append(r.platforms, p)
	r.broadcast(protocol.MsgPlatformCreated, p)
}

func (r *Room) blockDestroyed(bid string) {
	if r.destroyedBlocks.Has(bid) {
		return
	}
	r.destroyedBlocks[bid] = struct{}{}
	r.broadcast(protocol.MsgBlockDestroyed, protocol.IDMsg{ID: bid})
}

func (r *Room) crateCollected(cid string) {
	for i, c := range r.crates {
		if c.ID == cid {
			r.crates = append(r.crates[:i], r.crates[i+1:]...)
			r.broadcast(protocol.MsgCrateRemoved, protocol.IDMsg{ID: cid})
			return
		}
	}
}

func (r *Room) planeHit(id string, d protocol.PlaneHitMsg) {
	var plane *sim.Plane
	for _, p := range r.planes {
		if p.ID == d.ID {
			plane = p
		}
	}
	if plane == nil {
		return
	}
	dmg := d.Damage
	if dmg <= 0 || dmg > sim.PlaneHitDamage {
		dmg = sim.PlaneHitDamage
	}
	if !plane.Damage(dmg) {
		return
	}
	r.removePlane(plane.ID)

	p := &r.members[id].state
	p.HP = sim.SuperTankHP
	p.MaxHP = sim.SuperTankHP
	p.Lives++
	r.broadcast(protocol.MsgPlaneDestroyed, protocol.PlaneDestroyedMsg{ID: plane.ID, KillerID: id, X: plane.X, Y: plane.Y})
	r.send(id, protocol.MsgSuperpower, nil)
}

func (r *Room) removePlane(id string) {
	for i, p := range r.planes {
		if p.ID == id {
			r.planes = append(r.planes[:i], r.planes[i+1:]...)
			return
		}
	}
}

// step is one room tick
func (r *Room) step() {
	if r.status != protocol.StatusPlaying {
		return
	}
	r.tick++
	r.metrics.tick(r.Name)
	r.sched.Advance()
	if r.status != protocol.StatusPlaying {
		return
	}
	r.stepPlanes()
	r.spawnCrate()
	r.broadcastSnapshot()
}

func (r *Room) spawnCrate() {
	if r.tick-r.lastCrate < r.ticks(r.opts.CrateInterval) || len(r.crates) >= r.opts.MaxCrates {
		return
	}
	r.lastCrate = r.tick
	kinds := sim.CrateKinds()
	c := protocol.CrateState{
		ID:   shortID(),
		X:    math.Floor(sim.Range(&r.rng, crateMargin, r.opts.Width-crateMargin)),
		Y:    crateSpawnY,
		Kind: kinds[sim.Intn(&r.rng, len(kinds))].String(),
	}
	r.crates = append(r.crates, c)
	r.broadcast(protocol.MsgCrateSpawned, c)
}

func (r *Room) stepPlanes() {
	if len(r.planes) == 0 && sim.Chance(&r.rng, sim.PlaneSpawnChance) {
		p := sim.NewPlane(shortID(), &r.rng, r.opts.Width)
		r.planes = append(r.planes, p)
		r.broadcast(protocol.MsgPlaneSpawned, p.ToState())
	}

	kept := r.planes[:0]
	for _, p := range r.planes {
		p.Advance()
		if p.WantsDrop(&r.rng, r.opts.Width) {
			seed := uint32(sim.Next(&r.rng) * 4294967296)
			r.broadcast(protocol.MsgClusterBomb, protocol.ClusterBombMsg{X: p.X, Y: p.Y, Seed: seed})
		}
		if !p.Gone(r.opts.Width) {
			kept = append(kept, p)
		}
	}
	r.planes = kept
}

func (r *Room) broadcastSnapshot() {
	snap := protocol.Snapshot{Tick: r.tick, Players: r.players()}
	for _, p := range r.planes {
		snap.Planes = append(snap.Planes, p.ToState())
	}
	frame, err := protocol.EncodeSnapshot(snap)
	if err != nil {
		r.log.Error().Err(err).Msg("snapshot")
		return
	}
	r.metrics.snapshot(r.sendFrame(frame, ""))
}

func (r *Room) sendInit(id string) {
	m := r.members[id]
	init := protocol.InitMsg{
		SelfID:             id,
		Room:               r.Name,
		Team:               m.state.Team,
		IsHost:             r.host == id,
		Status:             r.status,
		Seed:               r.seed,
		Width:              r.opts.Width,
		LoadedAmmo:         r.opts.LoadedAmmo,
		Crates:             append([]protocol.CrateState{}, r.crates...),
		Planes:             make([]protocol.PlaneState, 0, len(r.planes)),
		Platforms:          append([]protocol.PlatformState{}, r.platforms...),
		DestroyedPlatforms: r.destroyedPlatforms.IDs(),
		DestroyedBlocks:    r.destroyedBlocks.IDs(),
		Players:            r.players(),
	}
	for _, p := range r.planes {
		init.Planes = append(init.Planes, p.ToState())
	}
	if r.tokens != nil {
		token, err := r.tokens.Issue(r.Name, id, m.state.Team)
		if err != nil {
			r.log.Error().Err(err).Msg("issue rejoin token")
		}
		init.Token = token
	}
	r.send(id, protocol.MsgInit, init)
}

// players lists member states in join order
func (r *Room) players() []protocol.PlayerState {
	out := make([]protocol.PlayerState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.playerState(id))
	}
	return out
}

func (r *Room) playerState(id string) protocol.PlayerState {
	s := r.members[id].state
	s.Host = id == r.host
	return s
}

func (r *Room) send(id, t string, payload interface{}) {
	m, ok := r.members[id]
	if !ok || m.conn == nil {
		return
	}
	frame, err := protocol.TextFrame(t, payload)
	if err != nil {
		r.log.Error().Err(err).Msg("encode")
		return
	}
	if err := m.conn.Send(frame); err != nil {
		r.metrics.drop()
	}
}

func (r *Room) broadcast(t string, payload interface{}) {
	r.broadcastExcept("", t, payload)
}

func (r *Room) broadcastExcept(except, t string, payload interface{}) {
	frame, err := protocol.TextFrame(t, payload)
	if err != nil {
		r.log.Error().Err(err).Msg("encode")
		return
	}
	r.sendFrame(frame, except)
}

func (r *Room) sendFrame(frame protocol.Frame, except string) int {
	sent := 0
	for _, id := range r.order {
		m := r.members[id]
		if id == except || m.conn == nil {
			continue
		}
		if err := m.conn.Send(frame); err != nil {
			r.metrics.drop()
			continue
		}
		sent++
	}
	return sent
}

func (r *Room) teamCounts() (blue, red int) {
	for _, m := range r.members {
		switch m.state.Team {
		case modes.TeamBlue:
			blue++
		case modes.TeamRed:
			red++
		}
	}
	return blue, red
}

func (r *Room) connections() int {
	n := 0
	for _, m := range r.members {
		if m.conn != nil {
			n++
		}
	}
	return n
}

func (r *Room) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

func (r *Room) ticks(d time.Duration) uint64 {
	return uint64(d.Seconds() * float64(r.opts.TickRate))
}

func respawnKey(id string) string { return "respawn:" + id }
func graceKey(id string) string   { return "grace:" + id }

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:shortIDLen]
}

func cleanName(name, id string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Trooper " + id[:3]
	}
	return truncate(name, maxNameLen)
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
