// handlers/match.go
package handlers

import (
	"time"

	"match-engine/middleware"
	"match-engine/models"
	"match-engine/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type MatchHandler struct {
	Matches *services.MatchService
	Ledger  *services.OutcomeLedger
	Skills  *services.SkillService
	Sweeps  *services.SweepRunner
	Log     *zap.Logger
}

func NewMatchHandler(matches *services.MatchService, ledger *services.OutcomeLedger, skills *services.SkillService, sweeps *services.SweepRunner, log *zap.Logger) *MatchHandler {
	return &MatchHandler{Matches: matches, Ledger: ledger, Skills: skills, Sweeps: sweeps, Log: log.Named("http")}
}

func (h *MatchHandler) CreateMatch(c *fiber.Ctx) error {
	type Req struct {
		GameID          string    `json:"game_id"`
		ScheduledAt     time.Time `json:"scheduled_at"`
		DurationMinutes int       `json:"duration_minutes"`
		MaxParticipants int       `json:"max_participants"`
		TeamMatch       bool      `json:"team_match"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON", err)
	}

	match, err := h.Matches.CreateMatch(c.UserContext(), services.CreateMatchInput{
		GameID:          req.GameID,
		CreatorID:       middleware.UserID(c),
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		MaxParticipants: req.MaxParticipants,
		TeamMatch:       req.TeamMatch,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(match)
}

func (h *MatchHandler) GetMatch(c *fiber.Ctx) error {
	match, err := h.Matches.GetMatch(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(match)
}

func (h *MatchHandler) JoinMatch(c *fiber.Ctx) error {
	participant, err := h.Matches.JoinMatch(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(participant)
}

func (h *MatchHandler) LeaveMatch(c *fiber.Ctx) error {
	result, err := h.Matches.LeaveMatch(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(result)
}

func (h *MatchHandler) CancelMatch(c *fiber.Ctx) error {
	type Req struct {
		Reason models.CancelReason `json:"reason"`
		Note   string              `json:"note"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON", err)
	}

	match, err := h.Matches.CancelMatch(c.UserContext(), services.CancelInput{
		MatchID: c.Params("id"),
		Actor: services.Actor{
			UserID: middleware.UserID(c),
			Admin:  middleware.HasRole(c, middleware.RoleAdmin),
		},
		Reason: req.Reason,
		Note:   req.Note,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(match)
}

func (h *MatchHandler) ReportOutcome(c *fiber.Ctx) error {
	type Req struct {
		Outcome models.Outcome `json:"outcome"`
		ForAll  bool           `json:"for_all"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON", err)
	}

	matchID, userID := c.Params("id"), middleware.UserID(c)
	if req.ForAll {
		claims, err := h.Ledger.RecordOutcomeForAll(c.UserContext(), matchID, userID, req.Outcome)
		if err != nil {
			return respondError(c, h.Log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"claims": claims})
	}

	claim, err := h.Ledger.RecordOutcome(c.UserContext(), matchID, userID, req.Outcome)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"claims": []models.OutcomeClaim{*claim}})
}

func (h *MatchHandler) ListOutcomes(c *fiber.Ctx) error {
	claims, err := h.Ledger.ListClaims(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(fiber.Map{"claims": claims})
}

func (h *MatchHandler) GetSkill(c *fiber.Ctx) error {
	rec, err := h.Skills.Get(c.UserContext(), c.Params("user_id"), c.Params("game_id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(rec)
}

func (h *MatchHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.Matches.PlayerStats(c.UserContext(), c.Params("user_id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(stats)
}

// RunSweep runs one pass of a sweep on demand (operational re-run).
func (h *MatchHandler) RunSweep(c *fiber.Ctx) error {
	name := c.Params("name")
	result, err := h.Sweeps.Run(c.UserContext(), name)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.Log.Info("sweep run on demand", zap.String("sweep", name), zap.String("by", middleware.UserID(c)))
	return c.JSON(fiber.Map{"sweep": name, "result": result})
}
