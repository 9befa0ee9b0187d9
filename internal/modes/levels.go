package modes

import (
	"errors"
	"fmt"

	"github.com/gillesie/tankwars-online/internal/sim"
)

var (
	ErrUnknownLevel = errors.New("unknown level")
	ErrLevelLocked  = errors.New("level locked")
)

// LevelType selects how a campaign level is won
type LevelType uint8

const (
	LevelLinear LevelType = iota // reach the far end
	LevelBoss                    // destroy the boss
)

func (t LevelType) String() string {
	if t == LevelBoss {
		return "boss"
	}
	return "linear"
}

// Level is one node of the campaign map. Reward is the munition unlocked
// on completion; MunitionStandard means none.
type Level struct {
	ID         int
	Name       string
	Type       LevelType
	Difficulty int
	Length     float64
	Reward     sim.Munition
	Next       []int
	MapX, MapY float64
}

// HasReward reports whether completing the level unlocks a munition
func (l Level) HasReward() bool {
	return l.Reward != sim.MunitionStandard
}

// Profile returns the terrain profile the level is generated with
func (l Level) Profile() sim.Profile {
	mode := sim.ProfileCampaign
	if l.Type == LevelBoss {
		mode = sim.ProfileBossArena
	}
	return sim.Profile{Width: l.Length, Mode: mode}
}

// DefaultLevels is the built-in campaign map
func DefaultLevels() []Level {
	return []Level{
		{ID: 1, Name: "NORMANDY BEACH", Type: LevelLinear, Difficulty: 1, Length: 4000, Reward: sim.MunitionScatter, Next: []int{2}, MapX: 150, MapY: 450},
		{ID: 2, Name: "PARIS RUINS", Type: LevelLinear, Difficulty: 2, Length: 5000, Reward: sim.MunitionSeeker, Next: []int{3, 8}, MapX: 250, MapY: 400},
		{ID: 3, Name: "ALPS PASS", Type: LevelLinear, Difficulty: 3, Length: 5000, Reward: sim.MunitionLaser, Next: []int{4}, MapX: 380, MapY: 350},
		{ID: 8, Name: "RHINE CROSSING", Type: LevelLinear, Difficulty: 3, Length: 4500, Reward: sim.MunitionLaser, Next: []int{4}, MapX: 330, MapY: 300},
		{ID: 4, Name: "BERLIN OUTSKIRTS", Type: LevelLinear, Difficulty: 4, Length: 6000, Next: []int{5}, MapX: 450, MapY: 280},
		{ID: 5, Name: "WARSAW GATE", Type: LevelBoss, Difficulty: 5, Length: 2000, Reward: sim.MunitionNuke, Next: []int{6}, MapX: 550, MapY: 250},
		{ID: 6, Name: "MINSK FACTORY", Type: LevelLinear, Difficulty: 6, Length: 6000, Next: []int{7}, MapX: 650, MapY: 220},
		{ID: 7, Name: "MOSCOW CITADEL", Type: LevelBoss, Difficulty: 8, Length: 3000, MapX: 750, MapY: 180},
	}
}

// validateLevels checks ids are unique, successors exist and the graph has
// no cycles. It returns the levels without predecessors.
func validateLevels(levels []Level) (map[int]Level, []int, error) {
	byID := make(map[int]Level, len(levels))
	for _, l := range levels {
		if _, dup := byID[l.ID]; dup {
			return nil, nil, fmt.Errorf("duplicate level %d", l.ID)
		}
		if l.Length <= 0 {
			return nil, nil, fmt.Errorf("level %d: length must be positive", l.ID)
		}
		byID[l.ID] = l
	}

	hasParent := make(map[int]bool)
	for _, l := range levels {
		for _, n := range l.Next {
			if _, ok := byID[n]; !ok {
				return nil, nil, fmt.Errorf("level %d: successor %d: %w", l.ID, n, ErrUnknownLevel)
			}
			hasParent[n] = true
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int]int, len(levels))
	var visit func(id int) error
	visit = func(id int) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("campaign cycle through level %d", id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, n := range byID[id].Next {
			if err := visit(n); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	var roots []int
	for _, l := range levels {
		if err := visit(l.ID); err != nil {
			return nil, nil, err
		}
		if !hasParent[l.ID] {
			roots = append(roots, l.ID)
		}
	}
	return byID, roots, nil
}
