package notify

import (
	"context"
	"errors"

	"match-engine/models"
	"match-engine/services"
)

// Fanout delivers every signal to all sinks and joins their errors.
type Fanout []services.Notifier

func (f Fanout) Emit(ctx context.Context, userID string, signal models.SignalType, payload map[string]any) error {
	var errs []error
	for _, n := range f {
		if err := n.Emit(ctx, userID, signal, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
