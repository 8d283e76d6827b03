// handlers/routes.go
package handlers

import (
	"match-engine/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupMatchRoutes(app *fiber.App, h *MatchHandler, log *zap.Logger) {
	// 🔐 Secured routes: require user context (userID, roles)
	secured := app.Group("/", middleware.UserContextMiddleware(log))

	secured.Post("/matches", h.CreateMatch)
	secured.Get("/matches/:id", h.GetMatch)
	secured.Post("/matches/:id/join", h.JoinMatch)
	secured.Post("/matches/:id/leave", h.LeaveMatch)
	secured.Post("/matches/:id/cancel", h.CancelMatch)

	secured.Post("/matches/:id/outcomes", h.ReportOutcome)
	secured.Get("/matches/:id/outcomes", h.ListOutcomes)

	secured.Get("/users/:user_id/skills/:game_id", h.GetSkill)
	secured.Get("/users/:user_id/stats", h.GetStats)

	admin := secured.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.Post("/sweeps/:name", h.RunSweep)
}
