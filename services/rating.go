package services

import (
	"match-engine/models"
)

const (
	MaxScoreDelta = 5
	MinSkillScore = 0
	MaxSkillScore = 999
	LevelBand     = 100 // score span of one level before promotion
)

// Adjustment is the result of applying one match outcome to a skill record.
type Adjustment struct {
	Delta    int               `json:"delta"`
	NewLevel models.SkillLevel `json:"new_level"`
	NewScore int               `json:"new_score"`
	Promoted bool              `json:"promoted"`
	Demoted  bool              `json:"demoted"`
}

// rawDelta[outcome] = {opponent weaker, even, opponent stronger}
var rawDelta = map[models.Outcome][3]int{
	models.OutcomeWon:  {1, 2, 3},
	models.OutcomeLost: {-3, -2, 0},
	models.OutcomeDraw: {-1, 0, 1},
}

// Adjust computes the bounded score change for one participant and applies at
// most one promotion or demotion. Only WON, LOST and DRAW are scoreable.
func Adjust(outcome models.Outcome, userLevel, opponentLevel models.SkillLevel, currentScore int) (Adjustment, error) {
	deltas, ok := rawDelta[outcome]
	if !ok {
		return Adjustment{}, validationf("outcome %q cannot be scored", outcome)
	}

	levelDiff := opponentLevel.Ordinal() - userLevel.Ordinal()
	var delta int
	switch {
	case levelDiff < 0:
		delta = deltas[0]
	case levelDiff == 0:
		delta = deltas[1]
	default:
		delta = deltas[2]
	}
	delta = clamp(delta, -MaxScoreDelta, MaxScoreDelta)

	adj := Adjustment{
		Delta:    delta,
		NewLevel: models.LevelFromOrdinal(userLevel.Ordinal()),
		NewScore: currentScore + delta,
	}

	switch {
	case adj.NewScore >= LevelBand && !adj.NewLevel.Top():
		adj.NewLevel = models.LevelFromOrdinal(adj.NewLevel.Ordinal() + 1)
		adj.NewScore -= LevelBand
		adj.Promoted = true
	case adj.NewScore < 0 && !adj.NewLevel.Bottom():
		adj.NewLevel = models.LevelFromOrdinal(adj.NewLevel.Ordinal() - 1)
		adj.NewScore = LevelBand + adj.NewScore
		adj.Demoted = true
	}

	adj.NewScore = clamp(adj.NewScore, MinSkillScore, MaxSkillScore)
	return adj, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
