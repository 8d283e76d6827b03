package services

import (
	"testing"

	"match-engine/models"

	"github.com/stretchr/testify/assert"
)

func TestAssignTeam_FirstJoinersFillEmptyTeams(t *testing.T) {
	assert.Equal(t, 1, AssignTeam(nil, models.SkillProfessional))
	assert.Equal(t, 2, AssignTeam([]TeamMember{{Team: 1, Level: models.SkillBeginner}}, models.SkillProfessional))
	assert.Equal(t, 1, AssignTeam([]TeamMember{{Team: 2, Level: models.SkillBeginner}}, models.SkillBeginner))
}

func TestAssignTeam_TiesFavorTeamOne(t *testing.T) {
	existing := []TeamMember{
		{Team: 1, Level: models.SkillIntermediate},
		{Team: 2, Level: models.SkillIntermediate},
	}
	assert.Equal(t, 1, AssignTeam(existing, models.SkillIntermediate))
}

func TestAssignTeam_WeakJoinerGoesToStrongerTeam(t *testing.T) {
	existing := []TeamMember{
		{Team: 1, Level: models.SkillProfessional},
		{Team: 2, Level: models.SkillBeginner},
	}
	// team 1: |3+1-1| + 0.5*1 = 3.5, team 2: |1+1-3| + 0.5*1 = 1.5
	assert.Equal(t, 2, AssignTeam(existing, models.SkillBeginner))
}

func TestAssignTeam_SizeTermBreaksEqualSkill(t *testing.T) {
	existing := []TeamMember{
		{Team: 1, Level: models.SkillProfessional},
		{Team: 2, Level: models.SkillBeginner},
		{Team: 2, Level: models.SkillBeginner},
		{Team: 2, Level: models.SkillBeginner},
	}
	// team 1: |3+2-3| + 0.5*|2-3| = 2.5, team 2: |3+2-3| + 0.5*|4-1| = 3.5
	assert.Equal(t, 1, AssignTeam(existing, models.SkillIntermediate))
}

func TestAssignTeam_IgnoresUnassignedMembers(t *testing.T) {
	existing := []TeamMember{{Team: 0, Level: models.SkillProfessional}}
	assert.Equal(t, 1, AssignTeam(existing, models.SkillBeginner))
}

func TestAssignTeam_IdenticalSkillStaysSizeBalanced(t *testing.T) {
	for _, level := range []models.SkillLevel{models.SkillBeginner, models.SkillIntermediate, models.SkillProfessional} {
		var members []TeamMember
		for n := 0; n < 21; n++ {
			members = append(members, TeamMember{Team: AssignTeam(members, level), Level: level})

			var sizes [3]int
			for _, m := range members {
				sizes[m.Team]++
			}
			diff := sizes[1] - sizes[2]
			assert.LessOrEqual(t, diff, 1, "level %s after %d joins", level, n+1)
			assert.GreaterOrEqual(t, diff, -1, "level %s after %d joins", level, n+1)
		}
	}
}
