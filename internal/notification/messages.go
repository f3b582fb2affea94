package notification

import (
	"fmt"

	"ridehail/internal/types"
)

const defaultStatusMessage = "Ride status updated"

var statusMessages = map[types.Role]map[string]string{
	types.RoleRider: {
		"requested": "Looking for a driver...",
		"accepted":  "Driver found! They are on their way.",
		"started":   "Your ride has started. Enjoy your trip!",
		"completed": "Ride completed. Thanks for using our service!",
		"cancelled": "Your ride has been cancelled.",
	},
	types.RoleDriver: {
		"accepted":  "Ride accepted. Navigate to pickup location.",
		"started":   "Trip started. Drive safely!",
		"completed": "Trip completed successfully.",
		"cancelled": "Ride has been cancelled.",
	},
}

// StatusMessage returns the text shown to role when a ride enters status.
func StatusMessage(role types.Role, status string) string {
	if msg, ok := statusMessages[role][status]; ok {
		return msg
	}
	return defaultStatusMessage
}

func RatingRequestMessage(role types.Role) string {
	if role == types.RoleDriver {
		return "How was your passenger? Please rate the rider."
	}
	return "How was your ride? Please rate your driver."
}

func RideRequestMessage(ride RideInfo) string {
	return fmt.Sprintf("Ride request from %s to %s", orCoords(ride.PickupAddress), orCoords(ride.DropAddress))
}

func orCoords(addr string) string {
	if addr == "" {
		return "your area"
	}
	return addr
}
