package services

import (
	"context"

	"match-engine/models"

	"go.uber.org/zap"
)

// Notifier delivers signals to users. Implementations may fail; the engine
// never rolls back the transition that produced a signal.
type Notifier interface {
	Emit(ctx context.Context, userID string, signal models.SignalType, payload map[string]any) error
}

// NopNotifier drops every signal.
type NopNotifier struct{}

func (NopNotifier) Emit(context.Context, string, models.SignalType, map[string]any) error { return nil }

// emit is fire-and-forget: delivery errors are logged and swallowed.
func emit(ctx context.Context, n Notifier, log *zap.Logger, userID string, signal models.SignalType, payload map[string]any) {
	if err := n.Emit(ctx, userID, signal, payload); err != nil {
		log.Warn("signal delivery failed",
			zap.String("user_id", userID),
			zap.String("signal", string(signal)),
			zap.Error(err),
		)
	}
}

func emitAll(ctx context.Context, n Notifier, log *zap.Logger, participants []models.Participant, signal models.SignalType, payload map[string]any) {
	for _, p := range participants {
		emit(ctx, n, log, p.UserID, signal, payload)
	}
}
