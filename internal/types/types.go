// README: Shared identifiers, geo points and the enumerations persisted by several modules.
package types

import "math"

type ID string

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p is a finite decimal-degree coordinate.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

type RideClass string

const (
	ClassEconomy RideClass = "economy"
	ClassComfort RideClass = "comfort"
	ClassPremium RideClass = "premium"
)

var classRank = map[RideClass]int{
	ClassEconomy: 1,
	ClassComfort: 2,
	ClassPremium: 3,
}

func (c RideClass) Valid() bool {
	_, ok := classRank[c]
	return ok
}

// Serves reports whether a vehicle registered as c may take a ride booked as requested.
func (c RideClass) Serves(requested RideClass) bool {
	return classRank[c] >= classRank[requested] && requested.Valid()
}

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodWallet PaymentMethod = "wallet"
	MethodCard   PaymentMethod = "card"
	MethodUPI    PaymentMethod = "upi"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodWallet, MethodCard, MethodUPI:
		return true
	}
	return false
}

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleRider || r == RoleDriver || r == RoleAdmin
}
