package modes

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gillesie/tankwars-online/internal/sim"
)

const (
	RewardRounds        = 5 // rounds of the reward munition added per completed level
	enemiesPerDiff      = 3
	linearSpawnMargin   = 800.0
	linearFinishMargin  = 300.0
	bossOffset          = 500.0
	bossHPPerDifficulty = 500.0
	bossAIDifficulty    = 10
	helpCrateChance     = 0.001
	helpCrateSpread     = 500.0
	campaignStartX      = 200.0
	campaignRespawnBack = 300.0
	completionPause     = 2.0 // seconds
	completeKey         = "campaign:complete"
)

// Campaign tracks progress through the level graph
type Campaign struct {
	levels    map[int]Level
	unlocked  map[int]bool
	completed map[int]bool
	rewards   []sim.Munition
	log       zerolog.Logger
}

// NewCampaign validates the level graph and unlocks its starting levels
func NewCampaign(levels []Level, log zerolog.Logger) (*Campaign, error) {
	byID, roots, err := validateLevels(levels)
	if err != nil {
		return nil, fmt.Errorf("campaign: %w", err)
	}
	c := &Campaign{
		levels:    byID,
		unlocked:  make(map[int]bool),
		completed: make(map[int]bool),
		log:       log.With().Str("mode", "campaign").Logger(),
	}
	for _, id := range roots {
		c.unlocked[id] = true
	}
	return c, nil
}

// Level looks a level up by id
func (c *Campaign) Level(id int) (Level, error) {
	l, ok := c.levels[id]
	if !ok {
		return Level{}, fmt.Errorf("level %d: %w", id, ErrUnknownLevel)
	}
	return l, nil
}

// Unlocked reports whether the level may be played
func (c *Campaign) Unlocked(id int) bool { return c.unlocked[id] }

// Completed reports whether the level has been won
func (c *Campaign) Completed(id int) bool { return c.completed[id] }

// Available lists unlocked level ids in ascending order
func (c *Campaign) Available() []int {
	out := make([]int, 0, len(c.unlocked))
	for id := range c.unlocked {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Complete records a won level, unlocks its successors and banks its
// reward. Completing a level twice changes nothing.
func (c *Campaign) Complete(id int) error {
	l, err := c.Level(id)
	if err != nil {
		return err
	}
	if !c.unlocked[id] {
		return fmt.Errorf("level %d: %w", id, ErrLevelLocked)
	}
	if c.completed[id] {
		return nil
	}
	c.completed[id] = true
	for _, n := range l.Next {
		c.unlocked[n] = true
	}
	if l.HasReward() {
		c.rewards = append(c.rewards, l.Reward)
	}
	c.log.Info().Int("level", id).Str("name", l.Name).Msg("sector secured")
	return nil
}

// Finished reports whether a final level has been completed
func (c *Campaign) Finished() bool {
	for id := range c.completed {
		if len(c.levels[id].Next) == 0 {
			return true
		}
	}
	return false
}

// Loadout is the starting ammo including every banked reward
func (c *Campaign) Loadout(loaded bool) sim.Ammo {
	a := sim.DefaultAmmo()
	if loaded {
		a = sim.LoadedAmmo()
	}
	for _, m := range c.rewards {
		a.Add(m, RewardRounds)
	}
	return a
}

// Mission is one attempt at a campaign level
type Mission struct {
	Level  Level
	World  *sim.World
	Player *sim.Tank

	campaign *Campaign
	boss     *sim.Tank
	status   Status
	finished bool
	seq      int
	log      zerolog.Logger
}

// Begin builds the level's world, player and enemies. The level must be
// unlocked.
func (c *Campaign) Begin(id int, seed uint32, loaded bool) (*Mission, error) {
	l, err := c.Level(id)
	if err != nil {
		return nil, err
	}
	if !c.unlocked[id] {
		return nil, fmt.Errorf("level %d: %w", id, ErrLevelLocked)
	}

	w := sim.NewWorld(sim.Config{
		Geometry: sim.GenerateSeeded(seed, l.Profile(), nil),
		FXSeed:   seed ^ uint32(id)*0x85EBCA6B,
		Logger:   c.log,
	})
	player := sim.NewTank("player", "COMMANDER", TeamBlue, w.Width(), &sim.LocalControl{})
	player.X, player.Y = campaignStartX, sim.TankSpawnY
	player.Ammo = c.Loadout(loaded)
	w.AddTank(player)

	m := &Mission{
		Level:    l,
		World:    w,
		Player:   player,
		campaign: c,
		log:      c.log.With().Int("level", id).Logger(),
	}
	w.SpawnPoint = m.respawnPoint
	m.spawnEnemies()
	w.Active = true
	m.log.Info().Str("name", l.Name).Str("type", l.Type.String()).Msg("mission start")
	return m, nil
}

// Status implements Mode
func (m *Mission) Status() Status { return m.status }

// Boss returns the boss tank on boss levels
func (m *Mission) Boss() *sim.Tank { return m.boss }

func (m *Mission) spawnEnemies() {
	w := m.World
	l := m.Level
	hp := WaveEnemyBaseHP + WaveEnemyHPStep*float64(l.Difficulty)

	if l.Type == LevelBoss {
		x := l.Length - bossOffset
		boss := sim.NewTank("boss_1", "MEGA TANK", TeamRed, w.Width(), sim.NewAIControl(w, bossAIDifficulty, sim.BehaviorBoss, x))
		boss.X, boss.Y = x, sim.TankSpawnY
		boss.MaxHP = bossHPPerDifficulty * float64(l.Difficulty)
		boss.HP = boss.MaxHP
		w.AddTank(boss)
		m.boss = boss
		return
	}

	for i := 0; i < l.Difficulty*enemiesPerDiff; i++ {
		x := sim.Range(w.FX(), linearSpawnMargin, l.Length-linearSpawnMargin)
		var b sim.Behavior
		switch r := sim.Next(w.FX()); {
		case r < 0.3:
			b = sim.BehaviorStatic
		case r < 0.6:
			b = sim.BehaviorPatrol
		default:
			b = sim.BehaviorChase
		}
		t := sim.NewTank(fmt.Sprintf("enemy_%d", i), fmt.Sprintf("ENEMY %d", i+1), TeamRed, w.Width(), sim.NewAIControl(w, l.Difficulty, b, x))
		t.X, t.Y = x, sim.TankSpawnY
		t.MaxHP = hp
		t.HP = hp
		w.AddTank(t)
	}
}

// respawnPoint puts the player back a little behind where they fell
func (m *Mission) respawnPoint(t *sim.Tank) (float64, float64) {
	return math.Max(campaignStartX, t.X-campaignRespawnBack), sim.TankSpawnY
}

// Handle implements Mode
func (m *Mission) Handle(events []sim.Event) {
	if m.status != StatusRunning || m.finished {
		return
	}
	for _, e := range events {
		switch e.Kind {
		case sim.EventEliminated:
			if e.TankID == m.Player.ID {
				m.status = StatusLost
				m.World.Active = false
				m.log.Info().Msg("mission failed")
				return
			}
		case sim.EventKill:
			if m.boss != nil && e.TankID == m.boss.ID {
				m.finish()
				return
			}
		}
	}

	if m.Level.Type == LevelLinear && !m.Player.Dead && m.Player.X > m.Level.Length-linearFinishMargin {
		m.finish()
		return
	}
	m.maybeHelpCrate()
}

func (m *Mission) maybeHelpCrate() {
	w := m.World
	if !sim.Chance(w.FX(), helpCrateChance) {
		return
	}
	m.seq++
	x := m.Player.X + sim.Range(w.FX(), -helpCrateSpread, helpCrateSpread)
	kind := randomCrate(w, []sim.CrateKind{sim.CrateRepair, sim.CrateAmmo})
	w.AddCrate(&sim.Crate{ID: fmt.Sprintf("drop_%d", m.seq), X: x, Y: sim.TankSpawnY, Kind: kind})
}

// finish freezes the level and records the win after a short pause
func (m *Mission) finish() {
	m.finished = true
	m.World.Active = false
	m.log.Info().Msg("mission accomplished")
	m.World.Sched.After(seconds(completionPause), completeKey, func() {
		if err := m.campaign.Complete(m.Level.ID); err != nil {
			m.log.Error().Err(err).Msg("record completion")
			m.status = StatusLost
			return
		}
		m.status = StatusWon
	})
}
