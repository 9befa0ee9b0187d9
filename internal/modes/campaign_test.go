package modes

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gillesie/tankwars-online/internal/sim"
)

func defaultCampaign(t *testing.T) *Campaign {
	c, err := NewCampaign(DefaultLevels(), zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestDefaultCampaignStartsAtNormandy(t *testing.T) {
	c := defaultCampaign(t)
	assert.Equal(t, []int{1}, c.Available())

	_, err := c.Begin(2, 1, false)
	assert.True(t, errors.Is(err, ErrLevelLocked))
	_, err = c.Begin(99, 1, false)
	assert.True(t, errors.Is(err, ErrUnknownLevel))
}

func TestCompletionUnlocksBranches(t *testing.T) {
	c := defaultCampaign(t)
	require.NoError(t, c.Complete(1))
	assert.True(t, c.Unlocked(2))
	assert.True(t, errors.Is(c.Complete(3), ErrLevelLocked))

	require.NoError(t, c.Complete(2))
	assert.Equal(t, []int{1, 2, 3, 8}, c.Available())

	require.NoError(t, c.Complete(8))
	assert.True(t, c.Unlocked(4), "either branch leads to Berlin")
	assert.False(t, c.Finished())
}

func TestRewardsJoinLoadout(t *testing.T) {
	c := defaultCampaign(t)
	require.NoError(t, c.Complete(1))
	require.NoError(t, c.Complete(1))

	a := c.Loadout(false)
	assert.Equal(t, sim.DefaultAmmo()[sim.MunitionScatter]+RewardRounds, a[sim.MunitionScatter])
	assert.Equal(t, sim.Unlimited, a[sim.MunitionStandard])
}

func TestLevelGraphValidation(t *testing.T) {
	_, err := NewCampaign([]Level{
		{ID: 1, Length: 1000, Next: []int{2}},
		{ID: 2, Length: 1000, Next: []int{3}},
		{ID: 3, Length: 1000, Next: []int{2}},
	}, zerolog.Nop())
	assert.ErrorContains(t, err, "cycle")

	_, err = NewCampaign([]Level{{ID: 1, Length: 1000, Next: []int{5}}}, zerolog.Nop())
	assert.True(t, errors.Is(err, ErrUnknownLevel))

	_, err = NewCampaign([]Level{{ID: 1, Length: 1000}, {ID: 1, Length: 2000}}, zerolog.Nop())
	assert.ErrorContains(t, err, "duplicate")
}

func TestLinearMissionWonAtTheFarEnd(t *testing.T) {
	c := defaultCampaign(t)
	m, err := c.Begin(1, 77, false)
	require.NoError(t, err)
	assert.Len(t, enemies(m.World), 3)
	for _, e := range enemies(m.World) {
		assert.Equal(t, 60.0, e.HP)
		assert.GreaterOrEqual(t, e.X, 800.0)
		assert.Less(t, e.X, 3200.0)
	}
	assert.Equal(t, 4000.0, m.World.Width())

	m.Player.X = 3800
	Step(m.World, m)
	assert.False(t, m.World.Active)
	assert.Equal(t, StatusRunning, m.Status())

	stepN(m.World, m, 2*TicksPerSecond)
	assert.Equal(t, StatusWon, m.Status())
	assert.True(t, c.Completed(1))
	assert.True(t, c.Unlocked(2))
}

func TestBossMissionWonWhenBossDies(t *testing.T) {
	c, err := NewCampaign([]Level{{ID: 1, Name: "ARENA", Type: LevelBoss, Difficulty: 2, Length: 2000}}, zerolog.Nop())
	require.NoError(t, err)
	m, err := c.Begin(1, 5, false)
	require.NoError(t, err)

	boss := m.Boss()
	require.NotNil(t, boss)
	assert.Equal(t, 1000.0, boss.MaxHP)
	assert.Equal(t, 1500.0, boss.X)
	assert.Len(t, enemies(m.World), 1)

	boss.TakeDamage(m.World, 5000, m.Player.ID)
	stepN(m.World, m, 2*TicksPerSecond+1)
	assert.Equal(t, StatusWon, m.Status())
	assert.True(t, c.Finished())
}

func TestMissionFailsWhenLivesRunOut(t *testing.T) {
	c := defaultCampaign(t)
	m, err := c.Begin(1, 77, false)
	require.NoError(t, err)

	m.Player.Lives = 1
	m.Player.TakeDamage(m.World, 1000, "enemy_0")
	Step(m.World, m)
	assert.Equal(t, StatusLost, m.Status())
	assert.False(t, c.Completed(1))
}

func TestMissionRespawnsBehindTheFall(t *testing.T) {
	c := defaultCampaign(t)
	m, err := c.Begin(1, 77, false)
	require.NoError(t, err)
	m.Player.X = 2000

	m.Player.TakeDamage(m.World, 1000, "enemy_0")
	stepN(m.World, m, sim.RespawnDelayTicks)
	assert.False(t, m.Player.Dead)
	assert.Equal(t, 1700.0, m.Player.X)
	assert.Equal(t, sim.TankLives-1, m.Player.Lives)
}
