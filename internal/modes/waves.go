package modes

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/gillesie/tankwars-online/internal/sim"
)

const (
	WaveBaseEnemies  = 3
	WaveMaxEnemies   = 10
	WaveEnemyBaseHP  = 50.0
	WaveEnemyHPStep  = 10.0
	WaveClearHeal    = 50.0
	WaveCrateChance  = 0.5
	waveSpawnSpacing = 1.0 // seconds between enemies
	waveBreak        = 5.0 // seconds between waves
	waveSpawnMinX    = 1000.0
	waveSpawnMaxX    = 5000.0
	waveSpawnKey     = "wave:spawn"
	waveNextKey      = "wave:next"
)

// WaveSize is the number of enemies in wave n
func WaveSize(n int) int {
	return min(WaveBaseEnemies+n, WaveMaxEnemies)
}

// Waves is the co-op survival mode: ever larger waves of AI tanks against
// a single local player
type Waves struct {
	World  *sim.World
	Player *sim.Tank
	Wave   int
	Kills  int

	inProgress bool
	spawned    int
	seq        int
	status     Status
	log        zerolog.Logger
}

// NewWaves sets up a waves match on the default map
func NewWaves(seed uint32, loaded bool, log zerolog.Logger) *Waves {
	w := sim.NewWorld(sim.Config{
		Geometry: sim.GenerateSeeded(seed, sim.DefaultProfile(), nil),
		FXSeed:   seed ^ 0x9E3779B9,
		Logger:   log,
	})
	player := sim.NewTank("player", "HERO", TeamBlue, w.Width(), &sim.LocalControl{})
	if loaded {
		player.Ammo = sim.LoadedAmmo()
	}
	w.AddTank(player)
	return &Waves{World: w, Player: player, log: log.With().Str("mode", "waves").Logger()}
}

// Start activates the world and launches wave 1
func (m *Waves) Start() {
	m.World.Active = true
	m.startWave(1)
}

// Status implements Mode
func (m *Waves) Status() Status { return m.status }

func (m *Waves) startWave(n int) {
	m.Wave = n
	m.inProgress = true
	m.spawned = 0
	m.pruneDead()
	m.log.Info().Int("wave", n).Int("enemies", WaveSize(n)).Msg("wave approaching")

	for i := 0; i < WaveSize(n); i++ {
		m.World.Sched.After(seconds(waveSpawnSpacing*float64(i+1)), waveSpawnKey, m.spawnEnemy)
	}
}

func (m *Waves) spawnEnemy() {
	if !m.World.Active {
		return
	}
	w := m.World
	m.seq++
	ctrl := sim.NewAIControl(w, m.Wave, sim.BehaviorChase, 0)
	t := sim.NewTank(fmt.Sprintf("cpu_%d", m.seq), fmt.Sprintf("CPU %d", m.seq), TeamRed, w.Width(), ctrl)
	t.X = sim.Range(w.FX(), waveSpawnMinX, waveSpawnMaxX)
	t.Y = sim.TankSpawnY
	ctrl.HomeX = t.X
	t.MaxHP = WaveEnemyBaseHP + WaveEnemyHPStep*float64(m.Wave)
	t.HP = t.MaxHP
	w.AddTank(t)
	m.spawned++
}

// pruneDead removes enemies killed in earlier waves
func (m *Waves) pruneDead() {
	for _, t := range append([]*sim.Tank(nil), m.World.Tanks...) {
		if t.IsAI() && t.Dead {
			m.World.RemoveTank(t.ID)
		}
	}
}

// Handle implements Mode
func (m *Waves) Handle(events []sim.Event) {
	if m.status != StatusRunning {
		return
	}
	for _, e := range events {
		switch e.Kind {
		case sim.EventKill:
			m.Kills++
			m.dropCrate(e.X, e.Y)
		case sim.EventEliminated:
			if e.TankID == m.Player.ID {
				m.end()
				return
			}
		}
	}

	if m.inProgress && m.spawned == WaveSize(m.Wave) && m.aliveEnemies() == 0 {
		m.inProgress = false
		m.Player.HP = math.Min(m.Player.HP+WaveClearHeal, m.Player.MaxHP)
		m.log.Info().Int("wave", m.Wave).Msg("sector clear")
		next := m.Wave + 1
		m.World.Sched.After(seconds(waveBreak), waveNextKey, func() {
			if m.World.Active {
				m.startWave(next)
			}
		})
	}
}

func (m *Waves) dropCrate(x, y float64) {
	w := m.World
	if !sim.Chance(w.FX(), WaveCrateChance) {
		return
	}
	m.seq++
	w.AddCrate(&sim.Crate{ID: fmt.Sprintf("crate_%d", m.seq), X: x, Y: y, Kind: randomCrate(w, sim.CrateKinds())})
}

func (m *Waves) aliveEnemies() int {
	n := 0
	for _, t := range m.World.Tanks {
		if t.IsAI() && !t.Dead {
			n++
		}
	}
	return n
}

func (m *Waves) end() {
	m.status = StatusLost
	m.World.Active = false
	m.World.Sched.CancelKey(waveSpawnKey)
	m.World.Sched.CancelKey(waveNextKey)
	m.log.Info().Int("waves", m.Wave).Int("kills", m.Kills).Msg("game over")
}
