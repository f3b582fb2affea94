// README: Notification payloads. RideInfo is a flat copy of the ride so this package stays below ride.
package notification

import (
	"time"

	"ridehail/internal/types"
)

type Kind string

const (
	KindRideStatus    Kind = "ride_status"
	KindRatingRequest Kind = "rating_request"
	KindRideRequest   Kind = "ride_request"
)

type RideInfo struct {
	ID            types.ID        `json:"ride_id"`
	RiderID       types.ID        `json:"rider_id"`
	DriverID      types.ID        `json:"driver_id,omitempty"`
	Class         types.RideClass `json:"ride_class"`
	Status        string          `json:"status"`
	PickupAddress string          `json:"pickup_address,omitempty"`
	DropAddress   string          `json:"drop_address,omitempty"`
	Pickup        types.Point     `json:"pickup"`
	EstimatedFare types.Money     `json:"estimated_fare"`
}

type Recipient struct {
	UserID types.ID   `json:"user_id"`
	Role   types.Role `json:"role"`
}

type Message struct {
	Kind      Kind              `json:"type"`
	Recipient Recipient         `json:"recipient"`
	RideID    types.ID          `json:"ride_id"`
	Status    string            `json:"status,omitempty"`
	Class     types.RideClass   `json:"ride_class,omitempty"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
