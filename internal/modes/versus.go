package modes

import (
	"math"

	"github.com/gillesie/tankwars-online/internal/protocol"
	"github.com/gillesie/tankwars-online/internal/sim"
)

// Team ids
const (
	TeamBlue = 1
	TeamRed  = 2
)

const versusRespawnMargin = 500.0

// Outcome is the result of a versus win check
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeBlue
	OutcomeRed
	OutcomeDraw
)

// Winner returns the gameOver label, empty while the match goes on
func (o Outcome) Winner() string {
	switch o {
	case OutcomeBlue:
		return protocol.WinnerBlue
	case OutcomeRed:
		return protocol.WinnerRed
	case OutcomeDraw:
		return protocol.WinnerDraw
	default:
		return ""
	}
}

// Member is the part of a participant the win check looks at
type Member struct {
	Team  int
	Lives int
}

// CheckWin decides a versus match. A team is alive while any member has
// lives left; a team with no members counts as beaten.
func CheckWin(members []Member) Outcome {
	var blue, red bool
	for _, m := range members {
		if m.Lives <= 0 {
			continue
		}
		switch m.Team {
		case TeamBlue:
			blue = true
		case TeamRed:
			red = true
		}
	}
	switch {
	case !blue && !red:
		return OutcomeDraw
	case !blue:
		return OutcomeRed
	case !red:
		return OutcomeBlue
	default:
		return OutcomeNone
	}
}

// CanStart reports whether both sides have at least one player
func CanStart(blue, red int) bool {
	return blue > 0 && red > 0
}

// AssignTeam honours a valid requested team, otherwise picks the smaller
// side with blue winning ties
func AssignTeam(requested, blue, red int) int {
	if requested == TeamBlue || requested == TeamRed {
		return requested
	}
	if red < blue {
		return TeamRed
	}
	return TeamBlue
}

// RespawnX draws a respawn position away from the level edges
func RespawnX(rng *uint32, width float64) float64 {
	return math.Floor(sim.Range(rng, versusRespawnMargin, width-versusRespawnMargin))
}
