package notification

import (
	"context"

	"ridehail/internal/types"
)

// Nop discards every notification.
type Nop struct{}

func (Nop) NotifyRideStatus(context.Context, RideInfo, string, Recipient) {}
func (Nop) NotifyRatingRequest(context.Context, RideInfo, Recipient) {}
func (Nop) NotifyRideRequest(context.Context, RideInfo, []types.ID) {}
