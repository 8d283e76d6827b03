package services

import (
	"context"

	"match-engine/models"
)

// PaymentAuthorizer gates a participant out of PENDING_PAYMENT. The engine
// treats it as opaque and does not retry it.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, matchID, userID string) (models.PaymentStatus, error)
}

// NoChargeAuthorizer confirms every participant (free matches).
type NoChargeAuthorizer struct{}

func (NoChargeAuthorizer) Authorize(context.Context, string, string) (models.PaymentStatus, error) {
	return models.PaymentConfirmed, nil
}
