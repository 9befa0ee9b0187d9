package reconcile

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/gillesie/tankwars-online/internal/protocol"
	"github.com/gillesie/tankwars-online/internal/sim"
)

// ReportInterval is the number of sim ticks between self reports. The sim
// runs at 60 ticks/s and rooms at 30.
const ReportInterval = 2

// fxSalt separates the session's effect stream from the level stream
const fxSalt = 0x68E31DA4

// ErrNoSelf is returned when an init message does not list the receiver
var ErrNoSelf = errors.New("init does not include own player")

// Session is one client's view of a room. The own tank is simulated in
// full; every other tank follows the room's snapshots.
type Session struct {
	World  *sim.World
	Self   *sim.Tank
	Room   string
	Token  string
	Host   bool
	Status string
	Winner string

	log zerolog.Logger
	out []protocol.Envelope
}

// NewSession rebuilds the room from its init message. The level comes from
// cache when one is given.
func NewSession(init protocol.InitMsg, cache *sim.GeometryCache, log zerolog.Logger) (*Session, error) {
	profile := sim.DefaultProfile()
	if init.Width > 0 {
		profile.Width = init.Width
	}
	destroyed := sim.NewDestroyedSet(init.DestroyedPlatforms, init.DestroyedBlocks)

	var geo *sim.Geometry
	if cache != nil {
		geo = cache.Get(init.Seed, profile, destroyed)
	} else {
		geo = sim.GenerateSeeded(init.Seed, profile, destroyed)
	}

	s := &Session{
		World: sim.NewWorld(sim.Config{
			Geometry:  geo,
			Networked: true,
			FXSeed:    init.Seed ^ fxSalt,
			Logger:    log,
		}),
		Room:  init.Room,
		Token: init.Token,
		Host:  init.IsHost,
		log:   log.With().Str("player", init.SelfID).Logger(),
	}

	for _, p := range init.Platforms {
		s.World.AddPlatform(sim.PlatformFromState(p))
	}
	for _, c := range init.Crates {
		s.World.AddCrate(sim.CrateFromState(c))
	}
	for _, p := range init.Planes {
		s.World.SpawnPlane(sim.PlaneFromState(p))
	}
	for _, p := range init.Players {
		if p.ID != init.SelfID {
			s.addRemote(p)
			continue
		}
		s.Self = sim.NewTank(p.ID, p.Name, p.Team, s.World.Width(), &sim.LocalControl{})
		if init.LoadedAmmo {
			s.Self.Ammo = sim.LoadedAmmo()
		}
		s.Self.X, s.Self.Y = p.X, p.Y
		s.Self.HP, s.Self.Shield = p.HP, p.Shield
		applyState(s.Self, p)
		s.World.AddTank(s.Self)
	}
	if s.Self == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSelf, init.SelfID)
	}
	s.setStatus(init.Status)
	return s, nil
}

// SetIntent replaces the own tank's input for the next ticks
func (s *Session) SetIntent(in sim.Intent) {
	if c, ok := s.Self.Control.(*sim.LocalControl); ok {
		c.Intent = in
	}
}

// Fire shoots the selected munition; the relay goes out with the next Step
func (s *Session) Fire(power float64) bool {
	return s.Self.Fire(s.World, power)
}

// Build turns a builder drag into a platform request
func (s *Session) Build(x0, y0, x1, y1 float64) bool {
	_, ok := s.World.BuildPlatform(s.Self, x0, y0, x1, y1)
	return ok
}

// Step advances the local world one tick and returns the messages to send
func (s *Session) Step() []protocol.Envelope {
	s.World.Step()
	for _, e := range s.World.DrainEvents() {
		s.translate(e)
	}
	if s.Status == protocol.StatusPlaying && !s.Self.Dead && s.World.Tick%ReportInterval == 0 {
		s.push(protocol.MsgState, s.Self.Report())
	}
	out := s.out
	s.out = nil
	return out
}

func (s *Session) push(t string, payload interface{}) {
	s.out = append(s.out, protocol.Envelope{T: t, Data: payload})
}

// translate turns local events into room messages. Only events about the
// own tank or its shells leave the session.
func (s *Session) translate(e sim.Event) {
	switch e.Kind {
	case sim.EventFire:
		s.push(protocol.MsgFire, protocol.FireMsg{X: e.X, Y: e.Y, Angle: e.Angle, Power: e.Power, Munition: e.Munition.String()})
	case sim.EventHit:
		if e.TankID == s.Self.ID {
			s.push(protocol.MsgHit, protocol.HitMsg{KillerID: e.TargetID, Damage: e.Damage, X: e.X, Y: e.Y})
		}
	case sim.EventDeath:
		if e.TankID == s.Self.ID {
			s.push(protocol.MsgDied, protocol.DiedMsg{KillerID: e.TargetID})
		}
	case sim.EventPlatformDamaged:
		s.push(protocol.MsgPlatformDamage, protocol.PlatformDamageMsg{ID: e.TargetID, Damage: e.Damage})
	case sim.EventPlatformDestroyed:
		s.push(protocol.MsgPlatformDestroyed, protocol.IDMsg{ID: e.TargetID})
	case sim.EventPlatformBuilt:
		s.push(protocol.MsgCreatePlatform, e.Platform.ToState())
	case sim.EventBlockDestroyed:
		s.push(protocol.MsgBlockDestroyed, protocol.IDMsg{ID: e.TargetID})
	case sim.EventCrateCollected:
		s.push(protocol.MsgCrateCollected, protocol.IDMsg{ID: e.TargetID})
	case sim.EventPlaneHit:
		s.push(protocol.MsgPlaneHit, protocol.PlaneHitMsg{ID: e.TargetID, Damage: e.Damage})
	}
}

// ApplySnapshot stores the room's player map as interpolation targets.
// The own tank only takes its lives and max hp from it.
func (s *Session) ApplySnapshot(snap protocol.Snapshot) {
	seen := make(map[string]struct{}, len(snap.Players))
	for _, p := range snap.Players {
		seen[p.ID] = struct{}{}
		if p.ID == s.Self.ID {
			s.Self.Lives = p.Lives
			s.Self.MaxHP = p.MaxHP
			continue
		}
		t := s.World.Tank(p.ID)
		if t == nil {
			s.addRemote(p)
			continue
		}
		if t.Dead && !p.Dead {
			t.Respawn(p.X, p.Y)
		}
		applyState(t, p)
	}
	for _, t := range append([]*sim.Tank(nil), s.World.Tanks...) {
		if _, ok := seen[t.ID]; !ok && t != s.Self {
			s.World.RemoveTank(t.ID)
		}
	}

	planes := make(map[string]struct{}, len(snap.Planes))
	for _, ps := range snap.Planes {
		planes[ps.ID] = struct{}{}
		if pl := s.World.Plane(ps.ID); pl != nil {
			pl.X, pl.Y, pl.VX, pl.HP = ps.X, ps.Y, ps.VX, ps.HP
			continue
		}
		s.World.SpawnPlane(sim.PlaneFromState(ps))
	}
	for _, pl := range append([]*sim.Plane(nil), s.World.Planes...) {
		if _, ok := planes[pl.ID]; !ok {
			s.World.RemovePlane(pl.ID)
		}
	}
}

// Apply handles one text message from the room. Messages about entities
// that are already gone are no-ops.
func (s *Session) Apply(env protocol.InEnvelope) error {
	switch env.T {
	case protocol.MsgPlayerJoined:
		p, err := protocol.DecodePayload[protocol.PlayerState](env)
		if err != nil {
			return err
		}
		if s.World.Tank(p.ID) == nil {
			s.addRemote(p)
		}
	case protocol.MsgPlayerLeft:
		m, err := protocol.DecodePayload[protocol.IDMsg](env)
		if err != nil {
			return err
		}
		if m.ID != s.Self.ID {
			s.World.RemoveTank(m.ID)
		}
	case protocol.MsgHostChanged:
		m, err := protocol.DecodePayload[protocol.IDMsg](env)
		if err != nil {
			return err
		}
		s.Host = m.ID == s.Self.ID
	case protocol.MsgGameStarted:
		s.setStatus(protocol.StatusPlaying)
	case protocol.MsgGameOver:
		m, err := protocol.DecodePayload[protocol.GameOverMsg](env)
		if err != nil {
			return err
		}
		s.Winner = m.Winner
		s.setStatus(protocol.StatusOver)
	case protocol.MsgPlayerFired:
		f, err := protocol.DecodePayload[protocol.FireMsg](env)
		if err != nil {
			return err
		}
		return s.relayShot(f)
	case protocol.MsgHitConfirmed:
		m, err := protocol.DecodePayload[protocol.HitMsg](env)
		if err != nil {
			return err
		}
		if t := s.World.Tank(m.ID); t != nil && t != s.Self && !t.Dead {
			absorb(t, m.Damage)
		}
	case protocol.MsgPlayerDied:
		m, err := protocol.DecodePayload[protocol.DeathMsg](env)
		if err != nil {
			return err
		}
		if t := s.World.Tank(m.ID); t != nil {
			t.Dead = true
			t.HP = 0
			t.Lives = m.Lives
		}
	case protocol.MsgPlayerRespawn:
		p, err := protocol.DecodePayload[protocol.PlayerState](env)
		if err != nil {
			return err
		}
		if t := s.World.Tank(p.ID); t != nil {
			t.MaxHP = p.MaxHP
			t.Respawn(p.X, p.Y)
			t.Lives = p.Lives
		}
	case protocol.MsgPlatformCreated:
		p, err := protocol.DecodePayload[protocol.PlatformState](env)
		if err != nil {
			return err
		}
		s.World.AddPlatform(sim.PlatformFromState(p))
	case protocol.MsgPlatformDamaged:
		m, err := protocol.DecodePayload[protocol.PlatformDamageMsg](env)
		if err != nil {
			return err
		}
		s.World.DamagePlatform(m.ID, m.Damage, false)
	case protocol.MsgPlatformDestroyed:
		m, err := protocol.DecodePayload[protocol.IDMsg](env)
		if err != nil {
			return err
		}
		s.World.RemovePlatform(m.ID)
	case protocol.MsgBlockDestroyed:
		m, err := protocol.DecodePayload[protocol.IDMsg](env)
		if err != nil {
			return err
		}
		s.World.RemoveBlock(m.ID)
	case protocol.MsgCrateSpawned:
		c, err := protocol.DecodePayload[protocol.CrateState](env)
		if err != nil {
			return err
		}
		s.World.AddCrate(sim.CrateFromState(c))
	case protocol.MsgCrateRemoved:
		m, err := protocol.DecodePayload[protocol.IDMsg](env)
		if err != nil {
			return err
		}
		s.World.RemoveCrate(m.ID)
	case protocol.MsgPlaneSpawned:
		p, err := protocol.DecodePayload[protocol.PlaneState](env)
		if err != nil {
			return err
		}
		if s.World.Plane(p.ID) == nil {
			s.World.SpawnPlane(sim.PlaneFromState(p))
		}
	case protocol.MsgPlaneDestroyed:
		m, err := protocol.DecodePayload[protocol.PlaneDestroyedMsg](env)
		if err != nil {
			return err
		}
		s.World.RemovePlane(m.ID)
	case protocol.MsgClusterBomb:
		m, err := protocol.DecodePayload[protocol.ClusterBombMsg](env)
		if err != nil {
			return err
		}
		s.World.DropClusterBomb(m.X, m.Y, m.Seed)
	case protocol.MsgSuperpower:
		s.Self.Promote()
		s.Self.GrantSuperpower()
	case protocol.MsgNotification, protocol.MsgError:
		m, err := protocol.DecodePayload[protocol.NotificationMsg](env)
		if err != nil {
			return err
		}
		s.log.Info().Str("type", env.T).Msg(m.Msg)
	case protocol.MsgRoomList, protocol.MsgInit:
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnknownMessage, env.T)
	}
	return nil
}

func (s *Session) relayShot(f protocol.FireMsg) error {
	if f.ID == s.Self.ID {
		return nil
	}
	m, err := sim.ParseMunition(f.Munition)
	if err != nil {
		return err
	}
	shooter := s.World.Tank(f.ID)
	if shooter == nil {
		s.log.Debug().Str("shooter", f.ID).Msg("shot from unknown player dropped")
		return nil
	}
	power := sim.Clamp(f.Power, sim.MinFirePower, sim.MaxFirePower)
	s.World.Launch(f.X, f.Y, f.Angle, power, m, shooter.Team, f.ID, sim.OwnerEnemy)
	return nil
}

// absorb shows a confirmed hit on a remote tank until the next snapshot
// carries its real health
func absorb(t *sim.Tank, amount float64) {
	if t.Shield > 0 {
		t.Shield -= amount
		if t.Shield >= 0 {
			return
		}
		amount = -t.Shield
		t.Shield = 0
	}
	t.HP = math.Max(t.HP-amount, 0)
}

func (s *Session) setStatus(status string) {
	s.Status = status
	s.World.Active = status == protocol.StatusPlaying
}

func (s *Session) addRemote(p protocol.PlayerState) {
	t := sim.NewTank(p.ID, p.Name, p.Team, s.World.Width(), &sim.RemoteControl{})
	t.X, t.Y = p.X, p.Y
	applyState(t, p)
	s.World.AddTank(t)
}

// applyState copies the room's view onto t. Remote tanks get the position
// as a target; the own tank keeps its simulated position.
func applyState(t *sim.Tank, p protocol.PlayerState) {
	if t.IsLocal() {
		t.Lives = p.Lives
		t.MaxHP = p.MaxHP
		t.Dead = p.Dead
		return
	}
	t.SetTarget(p.X, p.Y)
	t.Angle = p.Angle
	t.TurretAngle = p.TurretAngle
	t.HP = p.HP
	t.MaxHP = p.MaxHP
	t.Shield = p.Shield
	t.Lives = p.Lives
	t.Dead = p.Dead
}
