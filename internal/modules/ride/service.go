// README: Ride service implements the lifecycle transitions, driver claims and settlement hand-off.
package ride

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/cache"
	"ridehail/internal/logger"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/payment"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/notification"
	"ridehail/internal/types"
)

const (
	rideCacheTTL     = time.Minute
	locationCacheTTL = 5 * time.Minute
)

var (
	ErrAlreadyAccepted   = apperr.New(apperr.KindInvalidState, "ride already accepted")
	ErrRideCancelled     = apperr.New(apperr.KindInvalidState, "ride has been cancelled")
	ErrConflict          = apperr.New(apperr.KindInvalidState, "ride state changed concurrently")
	ErrNotAssigned       = apperr.New(apperr.KindUnauthorized, "caller is not the assigned driver")
	ErrForbidden         = apperr.New(apperr.KindUnauthorized, "not permitted for this ride")
	ErrDriverUnavailable = apperr.New(apperr.KindDriverUnavailable, "driver is not available")
	ErrNotOffered        = apperr.New(apperr.KindDriverUnavailable, "ride was not offered to this driver")
)

type Pricing interface {
	EstimateTrip(ctx context.Context, pickup, drop types.Point, class types.RideClass) (pricing.Quote, error)
	Fare(distanceKm float64, durationSec int64, class types.RideClass) types.Money
}

type Drivers interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	Claim(ctx context.Context, id types.ID) (bool, error)
	Release(ctx context.Context, id types.ID) error
	RecordTrip(ctx context.Context, id types.ID, earnings types.Money) error
}

type Matcher interface {
	Dispatch(ctx context.Context, rideID types.ID, pickup types.Point, class types.RideClass) ([]types.ID, error)
	WasOffered(ctx context.Context, rideID, driverID types.ID) (bool, error)
	RequireOffer() bool
	Clear(ctx context.Context, rideID types.ID) error
}

type Settler interface {
	Split(fare types.Money) (commission, driverShare types.Money)
	Settle(ctx context.Context, r payment.SettleRide) (*payment.Payment, error)
	Refund(ctx context.Context, rideID types.ID, amount types.Money, reason string) (*payment.Payment, error)
	Payment(ctx context.Context, rideID types.ID) (*payment.Payment, error)
}

type Service struct {
	store    Store
	pricing  Pricing
	drivers  Drivers
	matcher  Matcher
	settler  Settler
	notifier notification.Notifier
	cache    cache.Cache
	log      logger.ILogger
	now      func() time.Time
}

type Deps struct {
	Store    Store
	Pricing  Pricing
	Drivers  Drivers
	Matcher  Matcher
	Settler  Settler
	Notifier notification.Notifier
	Cache    cache.Cache
	Log      logger.ILogger
}

func NewService(d Deps) *Service {
	if d.Notifier == nil {
		d.Notifier = notification.Nop{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Service{
		store:    d.Store,
		pricing:  d.Pricing,
		drivers:  d.Drivers,
		matcher:  d.Matcher,
		settler:  d.Settler,
		notifier: d.Notifier,
		cache:    d.Cache,
		log:      d.Log,
		now:      time.Now,
	}
}

type BookCommand struct {
	RiderID       types.ID
	Pickup        Place
	Drop          Place
	Class         types.RideClass
	PaymentMethod types.PaymentMethod
}

type CompleteCommand struct {
	RideID           types.ID
	DriverID         types.ID
	ActualDistanceKm *float64
}

type CancelCommand struct {
	RideID  types.ID
	ActorID types.ID
	Role    types.Role
	Reason  string
}

type TrackCommand struct {
	RideID types.ID
	// DriverID, when set, must be the assigned driver.
	DriverID types.ID
	Point    types.Point
}

func (s *Service) EstimateFare(ctx context.Context, pickup, drop types.Point, class types.RideClass) (pricing.Quote, error) {
	if class == "" {
		class = types.ClassEconomy
	}
	return s.pricing.EstimateTrip(ctx, pickup, drop, class)
}

func (s *Service) BookRide(ctx context.Context, cmd BookCommand) (*Ride, error) {
	if cmd.RiderID == "" {
		return nil, apperr.Validation("rider_id", "is required")
	}
	if cmd.Class == "" {
		cmd.Class = types.ClassEconomy
	}
	if !cmd.Class.Valid() {
		return nil, apperr.Validation("ride_class", "must be economy, comfort or premium")
	}
	if cmd.PaymentMethod == "" {
		cmd.PaymentMethod = types.MethodCash
	}
	if !cmd.PaymentMethod.Valid() {
		return nil, apperr.Validation("payment_method", "must be cash, wallet, card or upi")
	}
	if !cmd.Pickup.Point().Valid() {
		return nil, apperr.Validation("pickup", "coordinates out of range")
	}
	if !cmd.Drop.Point().Valid() {
		return nil, apperr.Validation("drop", "coordinates out of range")
	}

	active, err := s.store.HasActiveByRider(ctx, cmd.RiderID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveRide
	}

	quote, err := s.pricing.EstimateTrip(ctx, cmd.Pickup.Point(), cmd.Drop.Point(), cmd.Class)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &Ride{
		ID:                   newRideID(now),
		RiderID:              cmd.RiderID,
		Class:                cmd.Class,
		Status:               StatusRequested,
		StatusVersion:        0,
		Pickup:               cmd.Pickup,
		Drop:                 cmd.Drop,
		PaymentMethod:        cmd.PaymentMethod,
		PaymentStatus:        PaymentPending,
		EstimatedDistanceKm:  quote.DistanceKm,
		EstimatedDurationSec: quote.DurationSec,
		EstimatedFare:        quote.Fare,
		RequestedAt:          now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusRequested,
		ActorType:  string(types.RoleRider),
		ActorID:    &cmd.RiderID,
		CreatedAt:  now,
	})
	s.cacheRide(ctx, r)

	info := toInfo(r)
	offered, err := s.matcher.Dispatch(ctx, r.ID, r.Pickup.Point(), r.Class)
	if err != nil {
		s.log.Warning("dispatch failed", logger.String("ride_id", string(r.ID)), logger.Error(err))
	} else if len(offered) > 0 {
		s.notifier.NotifyRideRequest(ctx, info, offered)
	}
	s.notifier.NotifyRideStatus(ctx, info, string(StatusRequested), rider(r))

	s.log.Info("ride booked",
		logger.String("ride_id", string(r.ID)),
		logger.String("rider_id", string(r.RiderID)),
		logger.String("class", string(r.Class)),
		logger.Int64("estimated_fare", r.EstimatedFare.Amount),
		logger.Int("offered", len(offered)),
	)
	return r, nil
}

func (s *Service) AcceptRide(ctx context.Context, driverID, rideID types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	switch {
	case r.Status == StatusCancelled:
		return nil, ErrRideCancelled
	case r.DriverID != nil:
		return nil, ErrAlreadyAccepted
	case !CanTransition(r.Status, StatusAccepted):
		return nil, invalidTransition(r.Status, StatusAccepted)
	}

	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !d.CanTakeRides() || !d.Serves(r.Class) {
		return nil, ErrDriverUnavailable
	}
	if s.matcher.RequireOffer() {
		offered, err := s.matcher.WasOffered(ctx, rideID, driverID)
		if err != nil {
			return nil, err
		}
		if !offered {
			return nil, ErrNotOffered
		}
	}

	claimed, err := s.drivers.Claim(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrDriverUnavailable
	}

	vehicleID := d.Vehicle.ID
	ok, err := s.store.UpdateStatus(ctx, r.ID, StatusRequested, StatusAccepted, r.StatusVersion, Patch{
		At:        s.now(),
		DriverID:  &driverID,
		VehicleID: &vehicleID,
	})
	if err != nil || !ok {
		s.release(ctx, driverID)
		if err != nil {
			return nil, err
		}
		return nil, s.lostAccept(ctx, r.ID)
	}

	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusRequested,
		ToStatus:   StatusAccepted,
		ActorType:  string(types.RoleDriver),
		ActorID:    &driverID,
		CreatedAt:  s.now(),
	})
	if err := s.matcher.Clear(ctx, r.ID); err != nil {
		s.log.Warning("clear offer set failed", logger.String("ride_id", string(r.ID)), logger.Error(err))
	}

	out, err := s.reload(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	s.notifyParties(ctx, out, StatusAccepted)
	s.log.Info("ride accepted", logger.String("ride_id", string(r.ID)), logger.String("driver_id", string(driverID)))
	return out, nil
}

// lostAccept explains why a CAS to accepted found the ride already moved.
func (s *Service) lostAccept(ctx context.Context, id types.ID) error {
	cur, err := s.store.Get(ctx, id)
	if err == nil && cur.Status == StatusCancelled {
		return ErrRideCancelled
	}
	return ErrAlreadyAccepted
}

func (s *Service) StartRide(ctx context.Context, driverID, rideID types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusStarted) {
		return nil, invalidTransition(r.Status, StatusStarted)
	}
	mustHaveDriver(r)
	if !r.IsDriver(driverID) {
		return nil, ErrNotAssigned
	}

	ok, err := s.store.UpdateStatus(ctx, r.ID, StatusAccepted, StatusStarted, r.StatusVersion, Patch{At: s.now()})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusAccepted,
		ToStatus:   StatusStarted,
		ActorType:  string(types.RoleDriver),
		ActorID:    &driverID,
		CreatedAt:  s.now(),
	})

	out, err := s.reload(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	s.notifyParties(ctx, out, StatusStarted)
	s.log.Info("ride started", logger.String("ride_id", string(r.ID)))
	return out, nil
}

func (s *Service) CompleteRide(ctx context.Context, cmd CompleteCommand) (*Ride, error) {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusCompleted) {
		return nil, invalidTransition(r.Status, StatusCompleted)
	}
	mustHaveDriver(r)
	if !r.IsDriver(cmd.DriverID) {
		return nil, ErrNotAssigned
	}
	if r.StartedAt == nil {
		panic(fmt.Sprintf("ride %s is started without a start time", r.ID))
	}

	distanceKm, err := s.actualDistance(ctx, r, cmd.ActualDistanceKm)
	if err != nil {
		return nil, err
	}
	now := s.now()
	durationSec := int64(now.Sub(*r.StartedAt) / time.Second)
	if durationSec < 0 {
		durationSec = 0
	}
	fare := s.pricing.Fare(distanceKm, durationSec, r.Class)

	ok, err := s.store.UpdateStatus(ctx, r.ID, StatusStarted, StatusCompleted, r.StatusVersion, Patch{
		At:                now,
		ActualDistanceKm:  &distanceKm,
		ActualDurationSec: &durationSec,
		ActualFare:        &fare,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	driverID := *r.DriverID
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusStarted,
		ToStatus:   StatusCompleted,
		ActorType:  string(types.RoleDriver),
		ActorID:    &driverID,
		CreatedAt:  now,
	})

	s.release(ctx, driverID)
	_, share := s.settler.Split(fare)
	if err := s.drivers.RecordTrip(ctx, driverID, share); err != nil {
		s.log.Error("record driver trip failed", logger.String("driver_id", string(driverID)), logger.Error(err))
	}
	s.settle(ctx, r, fare)

	out, err := s.reload(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	info := toInfo(out)
	s.notifyParties(ctx, out, StatusCompleted)
	s.notifier.NotifyRatingRequest(ctx, info, rider(out))
	s.notifier.NotifyRatingRequest(ctx, info, notification.Recipient{UserID: driverID, Role: types.RoleDriver})
	s.log.Info("ride completed",
		logger.String("ride_id", string(r.ID)),
		logger.Float64("distance_km", distanceKm),
		logger.Int64("duration_sec", durationSec),
		logger.Int64("fare", fare.Amount),
	)
	return out, nil
}

// actualDistance prefers the supplied value, then the tracked path, then the estimate.
func (s *Service) actualDistance(ctx context.Context, r *Ride, supplied *float64) (float64, error) {
	if supplied != nil {
		if math.IsNaN(*supplied) || math.IsInf(*supplied, 0) || *supplied < 0 {
			return 0, apperr.Validation("actual_distance_km", "must be a non-negative number")
		}
		return *supplied, nil
	}
	points, err := s.store.ListTracking(ctx, r.ID)
	if err != nil {
		return 0, err
	}
	if len(points) >= 2 {
		path := make([]types.Point, len(points))
		for i, p := range points {
			path[i] = p.Point
		}
		return location.PathLength(path), nil
	}
	return r.EstimatedDistanceKm, nil
}

// settle runs payment for a just-completed ride. Failures leave the ride
// completed with payment_status=failed so the rider can pay later.
func (s *Service) settle(ctx context.Context, r *Ride, fare types.Money) {
	_, err := s.settler.Settle(ctx, payment.SettleRide{
		RideID:   r.ID,
		RiderID:  r.RiderID,
		DriverID: *r.DriverID,
		Fare:     fare,
		Method:   r.PaymentMethod,
	})
	if errors.Is(err, payment.ErrSettlementBusy) {
		// A concurrent Pay owns the reservation and writes the outcome.
		return
	}
	status := PaymentPaid
	if err != nil && !errors.Is(err, apperr.ErrAlreadyProcessed) {
		status = PaymentFailed
		s.log.Warning("settlement failed",
			logger.String("ride_id", string(r.ID)),
			logger.String("method", string(r.PaymentMethod)),
			logger.Error(err),
		)
	}
	if err := s.store.SetPaymentStatus(ctx, r.ID, status); err != nil {
		s.log.Error("set payment status failed", logger.String("ride_id", string(r.ID)), logger.Error(err))
	}
}

func (s *Service) CancelRide(ctx context.Context, cmd CancelCommand) (*Ride, error) {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return nil, invalidTransition(r.Status, StatusCancelled)
	}
	if r.Status == StatusAccepted {
		mustHaveDriver(r)
	}

	var by types.Role
	switch {
	case cmd.Role == types.RoleAdmin:
		by = types.RoleAdmin
	case cmd.ActorID != "" && cmd.ActorID == r.RiderID:
		by = types.RoleRider
	case cmd.ActorID != "" && r.IsDriver(cmd.ActorID):
		by = types.RoleDriver
	default:
		return nil, ErrForbidden
	}

	reason := cmd.Reason
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusCancelled, r.StatusVersion, Patch{
		At:                 s.now(),
		CancellationReason: &reason,
		CancelledBy:        &by,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	actor := cmd.ActorID
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   StatusCancelled,
		ActorType:  string(by),
		ActorID:    &actor,
		CreatedAt:  s.now(),
	})
	if r.DriverID != nil {
		s.release(ctx, *r.DriverID)
	}
	if err := s.matcher.Clear(ctx, r.ID); err != nil {
		s.log.Warning("clear offer set failed", logger.String("ride_id", string(r.ID)), logger.Error(err))
	}

	out, err := s.reload(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	s.notifyParties(ctx, out, StatusCancelled)
	s.log.Info("ride cancelled",
		logger.String("ride_id", string(r.ID)),
		logger.String("cancelled_by", string(by)),
		logger.String("reason", reason),
	)
	return out, nil
}

func (s *Service) TrackLocation(ctx context.Context, cmd TrackCommand) (TrackingPoint, error) {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return TrackingPoint{}, err
	}
	if r.Status != StatusAccepted && r.Status != StatusStarted {
		return TrackingPoint{}, apperr.InvalidState("ride is %s, tracking requires accepted or started", r.Status)
	}
	if cmd.DriverID != "" && !r.IsDriver(cmd.DriverID) {
		return TrackingPoint{}, ErrNotAssigned
	}
	if !cmd.Point.Valid() {
		return TrackingPoint{}, apperr.Validation("location", "coordinates out of range")
	}
	p := TrackingPoint{RideID: r.ID, Point: cmd.Point, RecordedAt: s.now()}
	if err := s.store.AppendTracking(ctx, p); err != nil {
		return TrackingPoint{}, err
	}
	if err := cache.SetJSON(ctx, s.cache, locationKey(r.ID), p, locationCacheTTL); err != nil {
		s.log.Warning("cache ride location failed", logger.String("ride_id", string(r.ID)), logger.Error(err))
	}
	return p, nil
}

// LastLocation returns the latest tracked point of a ride while it is cached.
func (s *Service) LastLocation(ctx context.Context, rideID types.ID) (TrackingPoint, bool, error) {
	var p TrackingPoint
	ok, err := cache.GetJSON(ctx, s.cache, locationKey(rideID), &p)
	return p, ok, err
}

// GetRide returns the ride to its rider, its assigned driver, or an admin.
func (s *Service) GetRide(ctx context.Context, rideID, userID types.ID, role types.Role) (*Ride, error) {
	var r Ride
	ok, err := cache.GetJSON(ctx, s.cache, rideKey(rideID), &r)
	if err != nil {
		s.log.Warning("read ride cache failed", logger.String("ride_id", string(rideID)), logger.Error(err))
	}
	out := &r
	if !ok {
		if out, err = s.store.Get(ctx, rideID); err != nil {
			return nil, err
		}
		s.cacheRide(ctx, out)
	}
	if role != types.RoleAdmin && !out.IsParty(userID) {
		return nil, ErrForbidden
	}
	return out, nil
}

// Pay settles a completed ride whose automatic settlement failed.
func (s *Service) Pay(ctx context.Context, riderID, rideID types.ID) (*payment.Payment, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.RiderID != riderID {
		return nil, ErrForbidden
	}
	if r.Status != StatusCompleted {
		return nil, apperr.InvalidState("ride is %s, payment requires completed", r.Status)
	}
	if r.PaymentStatus == PaymentPaid || r.PaymentStatus == PaymentRefunded {
		return nil, payment.ErrAlreadySettled
	}
	mustHaveDriver(r)
	p, err := s.settler.Settle(ctx, payment.SettleRide{
		RideID:   r.ID,
		RiderID:  r.RiderID,
		DriverID: *r.DriverID,
		Fare:     *r.ActualFare,
		Method:   r.PaymentMethod,
	})
	if errors.Is(err, apperr.ErrAlreadyProcessed) {
		_ = s.store.SetPaymentStatus(ctx, r.ID, PaymentPaid)
		s.invalidate(ctx, r.ID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPaymentStatus(ctx, r.ID, PaymentPaid); err != nil {
		return nil, err
	}
	s.invalidate(ctx, r.ID)
	return p, nil
}

// Payment returns the settlement record of a ride the caller may see.
func (s *Service) Payment(ctx context.Context, rideID, userID types.ID, role types.Role) (*payment.Payment, error) {
	if _, err := s.GetRide(ctx, rideID, userID, role); err != nil {
		return nil, err
	}
	return s.settler.Payment(ctx, rideID)
}

// Refund returns part or all of a ride's fare to the rider's wallet. Admin only.
func (s *Service) Refund(ctx context.Context, role types.Role, rideID types.ID, amount types.Money, reason string) (*payment.Payment, error) {
	if role != types.RoleAdmin {
		return nil, ErrForbidden
	}
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusCompleted {
		return nil, apperr.InvalidState("ride is %s, refund requires completed", r.Status)
	}
	p, err := s.settler.Refund(ctx, rideID, amount, reason)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPaymentStatus(ctx, rideID, PaymentRefunded); err != nil {
		return nil, err
	}
	s.invalidate(ctx, rideID)
	return p, nil
}

func (s *Service) release(ctx context.Context, driverID types.ID) {
	if err := s.drivers.Release(ctx, driverID); err != nil {
		s.log.Error("release driver failed", logger.String("driver_id", string(driverID)), logger.Error(err))
	}
}

// reload drops the cached copy after a write and reads the store. Only reads
// fill the cache.
func (s *Service) reload(ctx context.Context, id types.ID) (*Ride, error) {
	s.invalidate(ctx, id)
	return s.store.Get(ctx, id)
}

func (s *Service) cacheRide(ctx context.Context, r *Ride) {
	if err := cache.SetJSON(ctx, s.cache, rideKey(r.ID), r, rideCacheTTL); err != nil {
		s.log.Warning("cache ride failed", logger.String("ride_id", string(r.ID)), logger.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, id types.ID) {
	if err := s.cache.Delete(ctx, rideKey(id)); err != nil {
		s.log.Warning("invalidate ride cache failed", logger.String("ride_id", string(id)), logger.Error(err))
	}
}

func (s *Service) notifyParties(ctx context.Context, r *Ride, status Status) {
	info := toInfo(r)
	s.notifier.NotifyRideStatus(ctx, info, string(status), rider(r))
	if r.DriverID != nil {
		s.notifier.NotifyRideStatus(ctx, info, string(status), notification.Recipient{UserID: *r.DriverID, Role: types.RoleDriver})
	}
}

func mustHaveDriver(r *Ride) {
	if r.DriverID == nil {
		panic(fmt.Sprintf("ride %s is %s without a driver", r.ID, r.Status))
	}
}

func invalidTransition(from, to Status) error {
	return apperr.InvalidState("cannot move ride from %s to %s", from, to)
}

func rider(r *Ride) notification.Recipient {
	return notification.Recipient{UserID: r.RiderID, Role: types.RoleRider}
}

func toInfo(r *Ride) notification.RideInfo {
	info := notification.RideInfo{
		ID:            r.ID,
		RiderID:       r.RiderID,
		Class:         r.Class,
		Status:        string(r.Status),
		PickupAddress: r.Pickup.Address,
		DropAddress:   r.Drop.Address,
		Pickup:        r.Pickup.Point(),
		EstimatedFare: r.EstimatedFare,
	}
	if r.DriverID != nil {
		info.DriverID = *r.DriverID
	}
	return info
}

func rideKey(id types.ID) string     { return "ride_" + string(id) }
func locationKey(id types.ID) string { return "ride_location_" + string(id) }
