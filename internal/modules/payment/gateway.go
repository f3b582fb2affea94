package payment

import (
	"context"

	"github.com/google/uuid"

	"ridehail/internal/types"
)

type ChargeRequest struct {
	RideID types.ID
	UserID types.ID
	Amount types.Money
	Method types.PaymentMethod
	// IdempotencyKey is stable per ride so a retried charge is not taken twice.
	IdempotencyKey string
}

// Gateway charges card and UPI payments. A decline is reported as ErrDeclined.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (txnID string, err error)
}

// OfflineGateway approves every charge and mints a local transaction id.
type OfflineGateway struct{}

func (OfflineGateway) Charge(_ context.Context, req ChargeRequest) (string, error) {
	return string(req.Method) + "_" + uuid.NewString(), nil
}
