package services

import (
	"sort"

	"match-engine/models"
)

// Verdict is the dispute resolver's reading of a match's claims.
//
// For team matches Outcome is expressed from team 1's point of view; team 2
// gets the complement. For non-team matches Outcome is the claim of Reporter
// and every other participant gets the complement.
type Verdict struct {
	Outcome   models.Outcome
	Disputed  bool
	TeamMatch bool
	Reporter  string // non-team only: the user whose claim decided the match
}

// Decided reports whether the verdict carries a scoreable outcome.
func (v Verdict) Decided() bool {
	return !v.Disputed && v.Outcome.Result()
}

// OutcomeForTeam returns the final outcome of team 1 or team 2.
func (v Verdict) OutcomeForTeam(team int) (models.Outcome, bool) {
	if !v.Decided() {
		return models.OutcomeNone, false
	}
	if team == 2 {
		return v.Outcome.Complement()
	}
	return v.Outcome, true
}

// Resolve derives the match verdict from participants and their claims.
// Teams are compared by consensus; a dispute is both teams claiming WON or
// both claiming LOST. Matches without team assignments are never disputed.
func Resolve(participants []models.Participant, claims []models.OutcomeClaim) Verdict {
	teamOf := make(map[string]int, len(participants))
	teamMatch := false
	for _, p := range participants {
		teamOf[p.UserID] = p.TeamNumber()
		if p.Team != nil {
			teamMatch = true
		}
	}

	if !teamMatch {
		return resolveSingle(teamOf, claims)
	}

	var byTeam [3][]models.Outcome
	for _, c := range claims {
		t, ok := teamOf[c.UserID]
		if !ok || (t != 1 && t != 2) {
			continue
		}
		byTeam[t] = append(byTeam[t], c.Outcome)
	}

	c1 := teamConsensus(byTeam[1])
	c2 := teamConsensus(byTeam[2])

	v := Verdict{TeamMatch: true}
	switch {
	case c1 != models.OutcomeNone && c1 == c2 && (c1 == models.OutcomeWon || c1 == models.OutcomeLost):
		v.Disputed = true
	case c1 != models.OutcomeNone:
		v.Outcome = c1
	case c2 != models.OutcomeNone:
		v.Outcome, _ = c2.Complement()
	}
	return v
}

// teamConsensus is the single result every reporting member agrees on.
// NO_SHOW and DISPUTED claims are not results and do not take part.
func teamConsensus(outcomes []models.Outcome) models.Outcome {
	consensus := models.OutcomeNone
	for _, o := range outcomes {
		if !o.Result() {
			continue
		}
		if consensus == models.OutcomeNone {
			consensus = o
			continue
		}
		if consensus != o {
			return models.OutcomeNone
		}
	}
	return consensus
}

// resolveSingle takes the earliest reported result claim.
func resolveSingle(members map[string]int, claims []models.OutcomeClaim) Verdict {
	ordered := make([]models.OutcomeClaim, 0, len(claims))
	for _, c := range claims {
		if _, ok := members[c.UserID]; ok && c.Outcome.Result() {
			ordered = append(ordered, c)
		}
	}
	if len(ordered) == 0 {
		return Verdict{}
	}
	// earliest first; a user's own claim beats one derived for them at the same instant
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.ReportedAt.Equal(b.ReportedAt) {
			return a.ReportedAt.Before(b.ReportedAt)
		}
		return a.ReportedBy == a.UserID && b.ReportedBy != b.UserID
	})
	return Verdict{Outcome: ordered[0].Outcome, Reporter: ordered[0].UserID}
}
