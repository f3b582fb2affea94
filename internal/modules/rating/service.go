// README: Rating service validates the rater against the completed ride and refreshes averages.
package rating

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"ridehail/internal/apperr"
	"ridehail/internal/logger"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type Rides interface {
	Get(ctx context.Context, id types.ID) (*ride.Ride, error)
}

type DriverRatings interface {
	ApplyRating(ctx context.Context, id types.ID, avg float64, count int) error
}

type Service struct {
	store   Store
	rides   Rides
	drivers DriverRatings
	log     logger.ILogger
	now     func() time.Time
}

func NewService(store Store, rides Rides, drivers DriverRatings, log logger.ILogger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, rides: rides, drivers: drivers, log: log, now: time.Now}
}

type SubmitCommand struct {
	RideID   types.ID
	RaterID  types.ID
	Role     types.Role
	Score    int
	Feedback string
}

func directionFor(role types.Role) (Direction, bool) {
	switch role {
	case types.RoleRider:
		return RiderToDriver, true
	case types.RoleDriver:
		return DriverToRider, true
	}
	return "", false
}

// ratee resolves who is rated, or ErrNotParty when the rater does not hold
// the side of the ride that dir implies.
func ratee(r *ride.Ride, raterID types.ID, dir Direction) (types.ID, error) {
	switch dir {
	case RiderToDriver:
		if r.RiderID != raterID || r.DriverID == nil {
			return "", ErrNotParty
		}
		return *r.DriverID, nil
	case DriverToRider:
		if !r.IsDriver(raterID) {
			return "", ErrNotParty
		}
		return r.RiderID, nil
	}
	return "", ErrNotParty
}

func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Rating, error) {
	dir, ok := directionFor(cmd.Role)
	if !ok {
		return nil, ErrNotParty
	}
	r, err := s.rides.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.Status != ride.StatusCompleted {
		return nil, ErrNotRateable
	}
	rateeID, err := ratee(r, cmd.RaterID, dir)
	if err != nil {
		return nil, err
	}
	if cmd.Score < MinScore || cmd.Score > MaxScore {
		return nil, apperr.Validation("rating", "must be between 1 and 5")
	}
	feedback := strings.TrimSpace(cmd.Feedback)
	if utf8.RuneCountInString(feedback) > MaxFeedbackLen {
		return nil, apperr.Validation("feedback", "must be at most 500 characters")
	}

	out := &Rating{
		ID:        uuid.NewString(),
		RideID:    r.ID,
		RaterID:   cmd.RaterID,
		RateeID:   rateeID,
		Direction: dir,
		Score:     cmd.Score,
		Feedback:  feedback,
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, out); err != nil {
		return nil, err
	}
	s.refreshAverage(ctx, rateeID, dir)

	s.log.Info("rating submitted",
		logger.String("ride_id", string(r.ID)),
		logger.String("rater_id", string(cmd.RaterID)),
		logger.String("rating_type", string(dir)),
		logger.Int("score", cmd.Score),
	)
	return out, nil
}

// refreshAverage pushes the new driver average to the directory. Rider
// averages are served from Stats directly.
func (s *Service) refreshAverage(ctx context.Context, rateeID types.ID, dir Direction) {
	if dir != RiderToDriver || s.drivers == nil {
		return
	}
	st, err := s.store.Stats(ctx, rateeID, dir)
	if err == nil {
		err = s.drivers.ApplyRating(ctx, rateeID, st.Average, st.Total)
	}
	if err != nil {
		s.log.Error("update average rating failed", logger.String("user_id", string(rateeID)), logger.Error(err))
	}
}

func (s *Service) CanRate(ctx context.Context, rideID, userID types.ID, role types.Role) (Eligibility, error) {
	dir, ok := directionFor(role)
	if !ok {
		return Eligibility{Reason: "Not authorized"}, nil
	}
	r, err := s.rides.Get(ctx, rideID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Eligibility{Reason: "Ride not completed"}, nil
	}
	if err != nil {
		return Eligibility{}, err
	}
	if r.Status != ride.StatusCompleted {
		return Eligibility{Reason: "Ride not completed"}, nil
	}
	if _, err := ratee(r, userID, dir); err != nil {
		return Eligibility{Reason: "Not authorized"}, nil
	}
	rated, err := s.store.Exists(ctx, rideID, userID)
	if err != nil {
		return Eligibility{}, err
	}
	if rated {
		return Eligibility{Reason: "Already rated"}, nil
	}
	return Eligibility{CanRate: true}, nil
}

// Stats summarizes the ratings a user received in their role: riders see
// what drivers gave them and drivers see what riders gave them.
func (s *Service) Stats(ctx context.Context, userID types.ID, role types.Role) (Stats, error) {
	dir := RiderToDriver
	if role == types.RoleRider {
		dir = DriverToRider
	}
	return s.store.Stats(ctx, userID, dir)
}

// Received lists the newest ratings userID got while acting in role.
func (s *Service) Received(ctx context.Context, userID types.ID, role types.Role, limit int) ([]Rating, error) {
	dir := RiderToDriver
	if role == types.RoleRider {
		dir = DriverToRider
	}
	return s.store.ListForUser(ctx, userID, dir, limit)
}

// ForRide lists both ratings of a ride. Only its rider, its driver or an
// admin may read them.
func (s *Service) ForRide(ctx context.Context, rideID, callerID types.ID, role types.Role) ([]Rating, error) {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if role != types.RoleAdmin && !r.IsParty(callerID) {
		return nil, ride.ErrForbidden
	}
	return s.store.ListForRide(ctx, rideID)
}
