package services

import (
	"math"

	"match-engine/models"
)

const sizeImbalanceWeight = 0.5

// TeamMember is the balancer's view of an already-seated participant.
type TeamMember struct {
	Team  int // 1 or 2; anything else is ignored
	Level models.SkillLevel
}

// AssignTeam picks team 1 or 2 for a joining player so that the skill totals and
// team sizes stay as even as possible. Ties go to team 1.
func AssignTeam(existing []TeamMember, joining models.SkillLevel) int {
	var total, size [3]int
	for _, m := range existing {
		if m.Team != 1 && m.Team != 2 {
			continue
		}
		total[m.Team] += m.Level.Ordinal()
		size[m.Team]++
	}

	switch {
	case size[1] == 0:
		return 1
	case size[2] == 0:
		return 2
	}

	j := joining.Ordinal()
	score := func(team int) float64 {
		other := 3 - team
		skill := math.Abs(float64(total[team] + j - total[other]))
		sz := math.Abs(float64(size[team] + 1 - size[other]))
		return skill + sizeImbalanceWeight*sz
	}

	if score(2) < score(1) {
		return 2
	}
	return 1
}
