package notify

import (
	"context"

	"match-engine/models"

	"go.uber.org/zap"
)

// LogNotifier writes signals to the log. Used when no transport is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("signals")}
}

func (l *LogNotifier) Emit(_ context.Context, userID string, signal models.SignalType, payload map[string]any) error {
	l.log.Info("signal",
		zap.String("signal", string(signal)),
		zap.String("user_id", userID),
		zap.Any("payload", payload),
	)
	return nil
}
