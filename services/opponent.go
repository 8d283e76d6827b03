package services

import (
	"match-engine/models"
)

// OpponentPolicy picks the single skill level a participant is rated against
// when the other side has several members.
type OpponentPolicy interface {
	OpponentLevel(opponents []models.Participant, levels map[string]models.SkillLevel) (models.SkillLevel, bool)
}

// AverageLevelPolicy rates against the mean ordinal of the opposing side,
// rounded half-up.
type AverageLevelPolicy struct{}

func (AverageLevelPolicy) OpponentLevel(opponents []models.Participant, levels map[string]models.SkillLevel) (models.SkillLevel, bool) {
	if len(opponents) == 0 {
		return "", false
	}
	sum := 0
	for _, p := range opponents {
		sum += levels[p.UserID].Ordinal()
	}
	n := len(opponents)
	return models.LevelFromOrdinal((2*sum + n) / (2 * n)), true
}

// FirstJoinedPolicy rates against the earliest joined opponent.
type FirstJoinedPolicy struct{}

func (FirstJoinedPolicy) OpponentLevel(opponents []models.Participant, levels map[string]models.SkillLevel) (models.SkillLevel, bool) {
	if len(opponents) == 0 {
		return "", false
	}
	first := opponents[0]
	for _, p := range opponents[1:] {
		if p.JoinedAt.Before(first.JoinedAt) {
			first = p
		}
	}
	return models.LevelFromOrdinal(levels[first.UserID].Ordinal()), true
}

// PolicyByName resolves the configured policy name.
func PolicyByName(name string) (OpponentPolicy, error) {
	switch name {
	case "", "average":
		return AverageLevelPolicy{}, nil
	case "first":
		return FirstJoinedPolicy{}, nil
	}
	return nil, validationf("unknown opponent policy %q", name)
}

// opponentsOf returns the participants user is rated against: the other team
// in team matches, everyone else otherwise.
func opponentsOf(user models.Participant, participants []models.Participant, teamMatch bool) []models.Participant {
	var out []models.Participant
	for _, p := range participants {
		if p.UserID == user.UserID {
			continue
		}
		if teamMatch && p.TeamNumber() == user.TeamNumber() {
			continue
		}
		out = append(out, p)
	}
	return out
}
