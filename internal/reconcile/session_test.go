package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gillesie/tankwars-online/internal/protocol"
	"github.com/gillesie/tankwars-online/internal/sim"
)

const testSeed = 1234

func testInit(status string) protocol.InitMsg {
	return protocol.InitMsg{
		SelfID: "me",
		Room:   "arena",
		Team:   1,
		IsHost: true,
		Status: status,
		Seed:   testSeed,
		Width:  sim.TerrainWidth,
		Token:  "tok",
		Players: []protocol.PlayerState{
			{ID: "me", Name: "me", Team: 1, X: 200, Y: -500, HP: 100, MaxHP: 100, Lives: 5},
			{ID: "foe", Name: "foe", Team: 2, X: 5800, Y: -500, HP: 100, MaxHP: 100, Lives: 5},
		},
	}
}

func newSession(t *testing.T, status string) *Session {
	t.Helper()
	s, err := NewSession(testInit(status), nil, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func env(t *testing.T, typ string, payload interface{}) protocol.InEnvelope {
	t.Helper()
	e := protocol.InEnvelope{T: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		e.D = data
	}
	return e
}

func ofType(out []protocol.Envelope, typ string) []protocol.Envelope {
	var got []protocol.Envelope
	for _, e := range out {
		if e.T == typ {
			got = append(got, e)
		}
	}
	return got
}

func TestNewSessionRebuildsLevel(t *testing.T) {
	ref := sim.GenerateSeeded(testSeed, sim.DefaultProfile(), nil)
	require.NotEmpty(t, ref.Platforms)
	require.NotEmpty(t, ref.Blocks)

	init := testInit(protocol.StatusLobby)
	init.DestroyedPlatforms = []string{ref.Platforms[0].ID}
	init.DestroyedBlocks = []string{ref.Blocks[0].ID}
	init.Platforms = []protocol.PlatformState{{ID: "dyn_1", X: 100, Y: 900, Width: 150, Height: 20, HP: 200, MaxHP: 200, Kind: "standard"}}
	init.Crates = []protocol.CrateState{{ID: "c1", X: 300, Y: -100, Kind: "nuke"}}

	s, err := NewSession(init, nil, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, ref.Terrain.Points, s.World.Geo.Terrain.Points)
	assert.Len(t, s.World.Geo.Platforms, len(ref.Platforms))
	assert.Nil(t, s.World.Platform(ref.Platforms[0].ID))
	assert.NotNil(t, s.World.Platform("dyn_1"))
	assert.Len(t, s.World.Geo.Blocks, len(ref.Blocks)-1)
	require.Len(t, s.World.Crates, 1)
	assert.Equal(t, sim.CrateNuke, s.World.Crates[0].Kind)

	assert.True(t, s.World.Networked)
	assert.False(t, s.World.Active)
	assert.True(t, s.Host)
	assert.Equal(t, "tok", s.Token)
	assert.True(t, s.Self.IsLocal())
	foe := s.World.Tank("foe")
	require.NotNil(t, foe)
	assert.False(t, foe.Authoritative())
}

func TestNewSessionRequiresSelf(t *testing.T) {
	init := testInit(protocol.StatusLobby)
	init.SelfID = "ghost"
	_, err := NewSession(init, nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoSelf)
}

func TestNewSessionFromCache(t *testing.T) {
	cache, err := sim.NewGeometryCache(4)
	require.NoError(t, err)
	defer cache.Close()

	a, err := NewSession(testInit(protocol.StatusLobby), cache, zerolog.Nop())
	require.NoError(t, err)
	b, err := NewSession(testInit(protocol.StatusLobby), cache, zerolog.Nop())
	require.NoError(t, err)
	plain := newSession(t, protocol.StatusLobby)

	require.Len(t, a.World.Geo.Platforms, len(plain.World.Geo.Platforms))
	for i, p := range plain.World.Geo.Platforms {
		assert.Equal(t, p.ID, a.World.Geo.Platforms[i].ID)
		assert.Equal(t, p.X, a.World.Geo.Platforms[i].X)
	}
	a.World.Geo.Platforms[0].HP = 1
	assert.NotEqual(t, 1.0, b.World.Geo.Platforms[0].HP, "sessions get private copies")
}

func TestLoadedAmmo(t *testing.T) {
	init := testInit(protocol.StatusLobby)
	init.LoadedAmmo = true
	s, err := NewSession(init, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, sim.LoadedAmmo(), s.Self.Ammo)
}

func TestRemoteTanksInterpolate(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	foe := s.World.Tank("foe")

	s.ApplySnapshot(protocol.Snapshot{Players: []protocol.PlayerState{
		{ID: "me", Lives: 5, MaxHP: 100},
		{ID: "foe", Team: 2, X: 5700, Y: -500, HP: 90, MaxHP: 100, Lives: 5, TurretAngle: 200},
	}})
	assert.Equal(t, 5800.0, foe.X, "snapshots only move the target")
	assert.Equal(t, 90.0, foe.HP)
	assert.Equal(t, 200.0, foe.TurretAngle)

	s.Step()
	assert.InDelta(t, 5780.0, foe.X, 1e-9)
	assert.InDelta(t, -500.0, foe.Y, 1e-9, "remote tanks have no gravity")

	s.ApplySnapshot(protocol.Snapshot{Players: []protocol.PlayerState{
		{ID: "me", Lives: 5, MaxHP: 100},
		{ID: "foe", Team: 2, X: 1000, Y: 800, HP: 100, MaxHP: 100, Lives: 5},
	}})
	s.Step()
	assert.Equal(t, 1000.0, foe.X, "large jumps snap")
	assert.Equal(t, 800.0, foe.Y)
}

func TestSnapshotLeavesSelfPosition(t *testing.T) {
	s := newSession(t, protocol.StatusLobby)
	x, y := s.Self.X, s.Self.Y

	s.ApplySnapshot(protocol.Snapshot{Players: []protocol.PlayerState{
		{ID: "me", X: 3000, Y: 100, HP: 1, MaxHP: 200, Lives: 3},
	}})
	assert.Equal(t, x, s.Self.X)
	assert.Equal(t, y, s.Self.Y)
	assert.Equal(t, 100.0, s.Self.HP)
	assert.Equal(t, 3, s.Self.Lives)
	assert.Equal(t, 200.0, s.Self.MaxHP)
}

func TestSnapshotAddsAndDropsPlayers(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)

	s.ApplySnapshot(protocol.Snapshot{Players: []protocol.PlayerState{
		{ID: "me", Lives: 5, MaxHP: 100},
		{ID: "new", Team: 2, X: 4000, Y: 900, HP: 100, MaxHP: 100, Lives: 5},
	}})
	assert.Nil(t, s.World.Tank("foe"))
	added := s.World.Tank("new")
	require.NotNil(t, added)
	assert.Equal(t, 4000.0, added.X)
	assert.NotNil(t, s.World.Tank("me"))
}

func TestSnapshotRevivesDeadRemote(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	require.NoError(t, s.Apply(env(t, protocol.MsgPlayerDied, protocol.DeathMsg{ID: "foe", Lives: 4})))
	foe := s.World.Tank("foe")
	assert.True(t, foe.Dead)
	assert.Equal(t, 4, foe.Lives)

	s.ApplySnapshot(protocol.Snapshot{Players: []protocol.PlayerState{
		{ID: "me", Lives: 5, MaxHP: 100},
		{ID: "foe", Team: 2, X: 2500, Y: -500, HP: 100, MaxHP: 100, Lives: 4},
	}})
	assert.False(t, foe.Dead)
	assert.Equal(t, 2500.0, foe.X)
}

func TestSnapshotSyncsPlanes(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)

	s.ApplySnapshot(protocol.Snapshot{
		Players: []protocol.PlayerState{{ID: "me", Lives: 5, MaxHP: 100}},
		Planes:  []protocol.PlaneState{{ID: "p1", X: 100, Y: 200, VX: 5, HP: 50}},
	})
	pl := s.World.Plane("p1")
	require.NotNil(t, pl)

	s.ApplySnapshot(protocol.Snapshot{
		Players: []protocol.PlayerState{{ID: "me", Lives: 5, MaxHP: 100}},
		Planes:  []protocol.PlaneState{{ID: "p1", X: 150, Y: 200, VX: 5, HP: 40}},
	})
	assert.Equal(t, 150.0, pl.X)
	assert.Equal(t, 40.0, pl.HP)

	s.Step()
	assert.Equal(t, 150.0, pl.X, "networked planes move only by snapshot")

	s.ApplySnapshot(protocol.Snapshot{Players: []protocol.PlayerState{{ID: "me", Lives: 5, MaxHP: 100}}})
	assert.Nil(t, s.World.Plane("p1"))
}

func TestStepReportsWhilePlaying(t *testing.T) {
	lobby := newSession(t, protocol.StatusLobby)
	for i := 0; i < 4; i++ {
		assert.Empty(t, ofType(lobby.Step(), protocol.MsgState))
	}

	s := newSession(t, protocol.StatusLobby)
	require.NoError(t, s.Apply(env(t, protocol.MsgGameStarted, nil)))
	assert.True(t, s.World.Active)

	var reports []protocol.Envelope
	for i := 0; i < 4; i++ {
		reports = append(reports, ofType(s.Step(), protocol.MsgState)...)
	}
	require.Len(t, reports, 2)
	rep, ok := reports[1].Data.(protocol.StateReport)
	require.True(t, ok)
	assert.Equal(t, s.Self.Report(), rep)
}

func TestFireGoesOutOnce(t *testing.T) {
	lobby := newSession(t, protocol.StatusLobby)
	assert.False(t, lobby.Fire(10))

	s := newSession(t, protocol.StatusPlaying)
	angle := s.Self.TurretAngle
	require.True(t, s.Fire(12))
	require.Len(t, s.World.Projectiles, 1)
	assert.Equal(t, sim.OwnerPlayer, s.World.Projectiles[0].Owner)

	fired := ofType(s.Step(), protocol.MsgFire)
	require.Len(t, fired, 1)
	f := fired[0].Data.(protocol.FireMsg)
	assert.Equal(t, "standard", f.Munition)
	assert.Equal(t, 12.0, f.Power)
	assert.Equal(t, angle, f.Angle)
	assert.Empty(t, f.ID, "the room stamps the shooter")

	assert.Empty(t, ofType(s.Step(), protocol.MsgFire))
}

func TestOwnDeathWaitsForRoom(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	s.Self.TakeDamage(s.World, 200, "foe")

	died := ofType(s.Step(), protocol.MsgDied)
	require.Len(t, died, 1)
	assert.Equal(t, "foe", died[0].Data.(protocol.DiedMsg).KillerID)
	assert.Equal(t, 5, s.Self.Lives, "lives belong to the room")

	for i := 0; i < 4; i++ {
		assert.Empty(t, ofType(s.Step(), protocol.MsgState), "dead tanks stay quiet")
	}

	require.NoError(t, s.Apply(env(t, protocol.MsgPlayerDied, protocol.DeathMsg{ID: "me", KillerID: "foe", Lives: 4})))
	assert.Equal(t, 4, s.Self.Lives)

	require.NoError(t, s.Apply(env(t, protocol.MsgPlayerRespawn, protocol.PlayerState{ID: "me", X: 3000, Y: -500, HP: 100, MaxHP: 100, Lives: 4})))
	assert.False(t, s.Self.Dead)
	assert.Equal(t, 3000.0, s.Self.X)
	assert.Equal(t, 100.0, s.Self.HP)
}

func TestRelayedShots(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)

	require.NoError(t, s.Apply(env(t, protocol.MsgPlayerFired, protocol.FireMsg{ID: "foe", X: 5000, Y: 500, Angle: 180, Power: 10, Munition: "scatter"})))
	require.Len(t, s.World.Projectiles, 3)
	for _, p := range s.World.Projectiles {
		assert.Equal(t, sim.OwnerEnemy, p.Owner)
		assert.Equal(t, 2, p.Team)
		assert.Equal(t, "foe", p.OwnerID)
	}

	require.NoError(t, s.Apply(env(t, protocol.MsgPlayerFired, protocol.FireMsg{ID: "me", Munition: "standard"})))
	assert.Len(t, s.World.Projectiles, 3, "own shots are already in flight")

	assert.Error(t, s.Apply(env(t, protocol.MsgPlayerFired, protocol.FireMsg{ID: "foe", Munition: "railgun"})))
}

func TestBuildWaitsForEcho(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	before := len(s.World.Geo.Platforms)
	require.True(t, s.Self.SelectWeapon(sim.MunitionBuilder))
	require.True(t, s.Build(100, 900, 300, 900))
	assert.Len(t, s.World.Geo.Platforms, before)

	built := ofType(s.Step(), protocol.MsgCreatePlatform)
	require.Len(t, built, 1)
	ps := built[0].Data.(protocol.PlatformState)
	assert.Equal(t, 200.0, ps.Width)

	require.NoError(t, s.Apply(env(t, protocol.MsgPlatformCreated, ps)))
	require.NoError(t, s.Apply(env(t, protocol.MsgPlatformCreated, ps)))
	assert.Len(t, s.World.Geo.Platforms, before+1)
}

func TestRoomEventsApply(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	dyn := protocol.PlatformState{ID: "dyn_x", X: 100, Y: 900, Width: 150, Height: 20, HP: 200, MaxHP: 200, Kind: "standard"}
	require.NoError(t, s.Apply(env(t, protocol.MsgPlatformCreated, dyn)))

	require.NoError(t, s.Apply(env(t, protocol.MsgPlatformDamaged, protocol.PlatformDamageMsg{ID: "dyn_x", Damage: 50})))
	assert.Equal(t, 150.0, s.World.Platform("dyn_x").HP)
	require.NoError(t, s.Apply(env(t, protocol.MsgPlatformDestroyed, protocol.IDMsg{ID: "dyn_x"})))
	assert.Nil(t, s.World.Platform("dyn_x"))
	require.NoError(t, s.Apply(env(t, protocol.MsgPlatformDestroyed, protocol.IDMsg{ID: "dyn_x"})), "stale ids are no-ops")

	block := s.World.Geo.Blocks[0].ID
	require.NoError(t, s.Apply(env(t, protocol.MsgBlockDestroyed, protocol.IDMsg{ID: block})))
	assert.Nil(t, s.World.Block(block))

	require.NoError(t, s.Apply(env(t, protocol.MsgCrateSpawned, protocol.CrateState{ID: "c1", X: 500, Y: -100, Kind: "shield"})))
	assert.Len(t, s.World.Crates, 1)
	require.NoError(t, s.Apply(env(t, protocol.MsgCrateRemoved, protocol.IDMsg{ID: "c1"})))
	assert.Empty(t, s.World.Crates)

	require.NoError(t, s.Apply(env(t, protocol.MsgPlaneSpawned, protocol.PlaneState{ID: "p1", X: -200, Y: 150, VX: 5, HP: 50})))
	assert.NotNil(t, s.World.Plane("p1"))
	require.NoError(t, s.Apply(env(t, protocol.MsgPlaneDestroyed, protocol.PlaneDestroyedMsg{ID: "p1", KillerID: "foe"})))
	assert.Nil(t, s.World.Plane("p1"))

	require.NoError(t, s.Apply(env(t, protocol.MsgClusterBomb, protocol.ClusterBombMsg{X: 3000, Y: 200, Seed: 99})))
	assert.Len(t, s.World.Projectiles, sim.ClusterShells)

	require.NoError(t, s.Apply(env(t, protocol.MsgHostChanged, protocol.IDMsg{ID: "foe"})))
	assert.False(t, s.Host)

	require.NoError(t, s.Apply(env(t, protocol.MsgPlayerJoined, protocol.PlayerState{ID: "late", Team: 1, X: 200, Y: -500, MaxHP: 100, HP: 100, Lives: 5})))
	assert.NotNil(t, s.World.Tank("late"))
	require.NoError(t, s.Apply(env(t, protocol.MsgPlayerLeft, protocol.IDMsg{ID: "late"})))
	assert.Nil(t, s.World.Tank("late"))

	assert.ErrorIs(t, s.Apply(protocol.InEnvelope{T: "teleport"}), protocol.ErrUnknownMessage)
}

func TestClusterBombsMatchAcrossSessions(t *testing.T) {
	a := newSession(t, protocol.StatusPlaying)
	b := newSession(t, protocol.StatusPlaying)
	msg := env(t, protocol.MsgClusterBomb, protocol.ClusterBombMsg{X: 3000, Y: 200, Seed: 7})
	require.NoError(t, a.Apply(msg))
	require.NoError(t, b.Apply(msg))

	require.Len(t, b.World.Projectiles, len(a.World.Projectiles))
	for i := range a.World.Projectiles {
		assert.Equal(t, a.World.Projectiles[i].VX, b.World.Projectiles[i].VX)
		assert.Equal(t, a.World.Projectiles[i].VY, b.World.Projectiles[i].VY)
	}
}

func TestSuperpowerAndGameOver(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	require.NoError(t, s.Apply(env(t, protocol.MsgSuperpower, nil)))
	assert.Equal(t, sim.SuperTankHP, s.Self.HP)
	assert.Equal(t, 6, s.Self.Lives)
	assert.Equal(t, sim.SuperNukes, s.Self.Ammo[sim.MunitionNuke])

	require.NoError(t, s.Apply(env(t, protocol.MsgGameOver, protocol.GameOverMsg{Winner: protocol.WinnerRed})))
	assert.Equal(t, protocol.StatusOver, s.Status)
	assert.Equal(t, protocol.WinnerRed, s.Winner)
	assert.False(t, s.World.Active)
	assert.False(t, s.Fire(10))
}

func TestTranslateEvents(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	tests := []struct {
		event sim.Event
		want  string
	}{
		{sim.Event{Kind: sim.EventPlaneHit, TargetID: "p1", Damage: sim.PlaneHitDamage}, protocol.MsgPlaneHit},
		{sim.Event{Kind: sim.EventHit, TankID: "me", TargetID: "foe", Damage: 20}, protocol.MsgHit},
		{sim.Event{Kind: sim.EventCrateCollected, TankID: "me", TargetID: "c1"}, protocol.MsgCrateCollected},
		{sim.Event{Kind: sim.EventBlockDestroyed, TargetID: "block_0_0"}, protocol.MsgBlockDestroyed},
		{sim.Event{Kind: sim.EventPlatformDamaged, TargetID: "static_1", Damage: 25}, protocol.MsgPlatformDamage},
		{sim.Event{Kind: sim.EventPlatformDestroyed, TargetID: "static_1"}, protocol.MsgPlatformDestroyed},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			s.translate(tt.event)
			require.Len(t, s.out, 1)
			assert.Equal(t, tt.want, s.out[0].T)
			s.out = nil
		})
	}

	s.translate(sim.Event{Kind: sim.EventDeath, TankID: "foe"})
	s.translate(sim.Event{Kind: sim.EventHit, TankID: "foe", Damage: 20})
	s.translate(sim.Event{Kind: sim.EventExplosion})
	assert.Empty(t, s.out)
}

func TestHitReachesOtherSessions(t *testing.T) {
	me := newSession(t, protocol.StatusPlaying)
	foeInit := testInit(protocol.StatusPlaying)
	foeInit.SelfID = "foe"
	foeInit.IsHost = false
	foe, err := NewSession(foeInit, nil, zerolog.Nop())
	require.NoError(t, err)

	// a foe shell landing on the own tank
	shot := protocol.FireMsg{ID: "foe", X: me.Self.X, Y: me.Self.Y, Angle: 90, Power: sim.MinFirePower, Munition: "standard"}
	require.NoError(t, me.Apply(env(t, protocol.MsgPlayerFired, shot)))
	hits := ofType(me.Step(), protocol.MsgHit)
	require.Len(t, hits, 1)
	hit := hits[0].Data.(protocol.HitMsg)
	assert.Equal(t, "foe", hit.KillerID)
	assert.Equal(t, 20.0, hit.Damage)
	assert.Equal(t, 80.0, me.Self.HP)

	// the room relays it stamped with the victim
	hit.ID = "me"
	require.NoError(t, foe.Apply(env(t, protocol.MsgHitConfirmed, hit)))
	assert.Equal(t, 80.0, foe.World.Tank("me").HP)
	assert.Equal(t, 100.0, foe.Self.HP, "a hit on someone else never touches the own tank")
}

func TestConfirmedHitDrainsShieldFirst(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	foe := s.World.Tank("foe")
	foe.Shield = 10

	require.NoError(t, s.Apply(env(t, protocol.MsgHitConfirmed, protocol.HitMsg{ID: "foe", Damage: 30})))
	assert.Zero(t, foe.Shield)
	assert.Equal(t, 80.0, foe.HP)

	require.NoError(t, s.Apply(env(t, protocol.MsgHitConfirmed, protocol.HitMsg{ID: "foe", Damage: 500})))
	assert.Zero(t, foe.HP)
	require.NoError(t, s.Apply(env(t, protocol.MsgHitConfirmed, protocol.HitMsg{ID: "ghost", Damage: 5})))
}

func TestRelayedPowerIsClamped(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	require.NoError(t, s.Apply(env(t, protocol.MsgPlayerFired, protocol.FireMsg{ID: "foe", X: 5000, Y: 500, Angle: 180, Power: 1e7, Munition: "laser"})))
	require.Len(t, s.World.Projectiles, 1)
	p := s.World.Projectiles[0]
	assert.InDelta(t, sim.MaxFirePower*sim.MunitionLaser.Profile().SpeedScale, p.Speed(), 1e-9)
}

func TestShotFromUnknownPlayerDropped(t *testing.T) {
	s := newSession(t, protocol.StatusPlaying)
	require.NoError(t, s.Apply(env(t, protocol.MsgPlayerFired, protocol.FireMsg{ID: "ghost", X: 5000, Y: 500, Power: 10, Munition: "nuke"})))
	assert.Empty(t, s.World.Projectiles)
}
