// README: Post-ride ratings between rider and driver.
package rating

import (
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

type Direction string

const (
	RiderToDriver Direction = "rider_to_driver"
	DriverToRider Direction = "driver_to_rider"
)

const (
	MinScore       = 1
	MaxScore       = 5
	MaxFeedbackLen = 500
)

var (
	ErrDuplicate   = apperr.New(apperr.KindAlreadyProcessed, "rating already submitted for this ride")
	ErrNotRateable = apperr.New(apperr.KindInvalidState, "ride is not completed")
	ErrNotParty    = apperr.New(apperr.KindUnauthorized, "not authorized to rate this ride")
)

type Rating struct {
	ID        string    `json:"id"`
	RideID    types.ID  `json:"ride_id"`
	RaterID   types.ID  `json:"rater_id"`
	RateeID   types.ID  `json:"rated_user_id"`
	Direction Direction `json:"rating_type"`
	Score     int       `json:"rating"`
	Feedback  string    `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Stats struct {
	UserID       types.ID    `json:"user_id"`
	Total        int         `json:"total_ratings"`
	Average      float64     `json:"average_rating"`
	Distribution map[int]int `json:"rating_distribution"`
}

func emptyStats(userID types.ID) Stats {
	dist := make(map[int]int, MaxScore)
	for s := MinScore; s <= MaxScore; s++ {
		dist[s] = 0
	}
	return Stats{UserID: userID, Distribution: dist}
}

// add folds one score into the totals; Average is finalized by finish.
func (s *Stats) add(score int) {
	s.Total++
	s.Distribution[score]++
}

func (s *Stats) finish() {
	if s.Total == 0 {
		s.Average = 0
		return
	}
	sum := 0
	for score, n := range s.Distribution {
		sum += score * n
	}
	s.Average = roundTo2(float64(sum) / float64(s.Total))
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// Eligibility is the CanRate answer; Reason is empty when CanRate is true.
type Eligibility struct {
	CanRate bool   `json:"can_rate"`
	Reason  string `json:"reason,omitempty"`
}
