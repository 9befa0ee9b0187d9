package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrateLandsOnTerrain(t *testing.T) {
	w := newFlatWorld()
	w.AddCrate(&Crate{ID: "c", X: 2000, Y: 0, Kind: CrateNuke})
	for i := 0; i < 700; i++ {
		w.Step()
	}
	require.Len(t, w.Crates, 1)
	c := w.Crates[0]
	assert.True(t, c.Landed)
	assert.Equal(t, 1200-CrateRestOffset, c.Y)
}

func TestCrateLandsOnPlatform(t *testing.T) {
	w := newFlatWorld()
	w.Geo.Platforms = []*Platform{{ID: "p", X: 1800, Y: 600, Width: 400, Height: 20, HP: 200, MaxHP: 200}}
	w.AddCrate(&Crate{ID: "c", X: 2000, Y: 0})
	for i := 0; i < 400; i++ {
		w.Step()
	}
	assert.True(t, w.Crates[0].Landed)
	assert.Equal(t, 600-CrateRestOffset, w.Crates[0].Y)
}

func TestCrateCollectedByLocalTank(t *testing.T) {
	w := newFlatWorld()
	tank := groundedTank(w, "a", 1, 2000)
	remote := NewTank("r", "R", 2, w.Width(), &RemoteControl{})
	remote.Respawn(3000, 1190)
	w.AddTank(remote)
	tank.HP = 50

	w.AddCrate(&Crate{ID: "near", X: 2000, Y: 1185, Kind: CrateRepair, Landed: true})
	w.AddCrate(&Crate{ID: "far", X: 3000, Y: 1185, Kind: CrateShieldKind, Landed: true})
	assert.False(t, w.AddCrate(&Crate{ID: "near"}))
	w.Step()

	assert.Equal(t, 80.0, tank.HP)
	require.Len(t, w.Crates, 1)
	assert.Equal(t, "far", w.Crates[0].ID)
	assert.Zero(t, remote.Shield)

	got := eventsOf(w.DrainEvents(), EventCrateCollected)
	require.Len(t, got, 1)
	assert.Equal(t, "near", got[0].TargetID)
	assert.Equal(t, CrateRepair, got[0].Crate)
}

func TestCrateEffects(t *testing.T) {
	tank := NewTank("a", "A", 1, 6000, &LocalControl{})
	tank.HP = 90
	CrateRepair.Apply(tank)
	assert.Equal(t, TankMaxHP, tank.HP)

	CrateShieldKind.Apply(tank)
	assert.Equal(t, CrateShield, tank.Shield)

	CrateNuke.Apply(tank)
	assert.Equal(t, 1, tank.Ammo[MunitionNuke])

	CrateAmmo.Apply(tank)
	assert.Equal(t, 10, tank.Ammo[MunitionScatter])
	assert.Equal(t, Unlimited, tank.Ammo[MunitionStandard])
}

func TestCrateKindText(t *testing.T) {
	for _, k := range CrateKinds() {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var back CrateKind
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, k, back)
	}
	var k CrateKind
	assert.Error(t, k.UnmarshalText([]byte("bogus")))
}

func TestPlaneShotDownLocally(t *testing.T) {
	w := newFlatWorld()
	shooter := groundedTank(w, "me", 1, 4000)
	w.SpawnPlane(&Plane{ID: "pl", X: 1000, Y: 300, HP: PlaneHitDamage})
	w.Launch(1000, 250, 90, 5, MunitionStandard, 1, "me", OwnerPlayer)
	stepUntilQuiet(w, 100)

	assert.Nil(t, w.Plane("pl"))
	assert.Equal(t, SuperTankHP, shooter.MaxHP)
	assert.Equal(t, TankLives+1, shooter.Lives)
	assert.Equal(t, SuperNukes, shooter.Ammo[MunitionNuke])
	assert.Equal(t, SuperLasers, shooter.Ammo[MunitionLaser])
	assert.Len(t, eventsOf(w.DrainEvents(), EventPlaneHit), 1)
}

func TestNetworkedPlaneHitOnlyReports(t *testing.T) {
	w := NewWorld(Config{Geometry: flatGeometry(TerrainWidth, 1200), Networked: true})
	w.Active = true
	w.SpawnPlane(&Plane{ID: "pl", X: 1000, Y: 300, VX: PlaneSpeed, HP: PlaneHP})
	w.Launch(1000, 250, 90, 5, MunitionStandard, 1, "me", OwnerPlayer)
	stepUntilQuiet(w, 100)

	require.NotNil(t, w.Plane("pl"))
	assert.Equal(t, PlaneHP, w.Plane("pl").HP)
	assert.Equal(t, 1000.0, w.Plane("pl").X, "networked planes move by snapshot")
	hits := eventsOf(w.DrainEvents(), EventPlaneHit)
	require.Len(t, hits, 1)
	assert.Equal(t, "me", hits[0].TankID)
}

func TestPlaneLeavesLevel(t *testing.T) {
	w := newFlatWorld()
	w.SpawnPlane(&Plane{ID: "pl", X: w.Width() + 900, Y: 200, VX: PlaneSpeed, HP: PlaneHP})
	for i := 0; i < 30; i++ {
		w.Step()
	}
	assert.Empty(t, w.Planes)
}

func TestBallisticAngleHitsTarget(t *testing.T) {
	for _, tc := range []struct{ dx, dy, v float64 }{
		{400, 0, 14},
		{-500, -50, 16},
		{300, 200, 15},
	} {
		a, ok := BallisticAngle(tc.dx, tc.dy, tc.v)
		require.True(t, ok)
		vx, vy := tc.v*cosDeg(a), tc.v*sinDeg(a)
		assert.Equal(t, tc.dx > 0, vx > 0)
		tt := tc.dx / vx
		assert.InDelta(t, tc.dy, vy*tt+0.5*Gravity*tt*tt, 1e-6)
	}

	_, ok := BallisticAngle(5000, 0, 2)
	assert.False(t, ok)
}
