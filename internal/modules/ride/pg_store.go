// README: Ride store backed by PostgreSQL.
package ride

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/types"
)

const (
	uniqueViolation = "23505"
	activeRideIndex = "rides_one_active_per_rider"
)

type PGStore struct {
	db       *pgxpool.Pool
	currency string
}

func NewPGStore(db *pgxpool.Pool, currency string) *PGStore {
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return &PGStore{db: db, currency: currency}
}

func (s *PGStore) Create(ctx context.Context, r *Ride) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, rider_id, driver_id, vehicle_id, ride_class, status, status_version,
			pickup_lat, pickup_lng, pickup_address, drop_lat, drop_lng, drop_address,
			estimated_distance_km, estimated_duration_sec, estimated_fare,
			payment_method, payment_status, requested_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16,
			$17, $18, $19
		)`,
		string(r.ID), string(r.RiderID), idPtr(r.DriverID), idPtr(r.VehicleID),
		string(r.Class), string(r.Status), r.StatusVersion,
		r.Pickup.Lat, r.Pickup.Lng, r.Pickup.Address,
		r.Drop.Lat, r.Drop.Lng, r.Drop.Address,
		r.EstimatedDistanceKm, r.EstimatedDurationSec, r.EstimatedFare.Amount,
		string(r.PaymentMethod), string(r.PaymentStatus), r.RequestedAt,
	)
	if isActiveRideViolation(err) {
		return ErrActiveRide
	}
	if err != nil {
		return fmt.Errorf("insert ride %s: %w", r.ID, err)
	}
	return nil
}

const selectRide = `
	SELECT id, rider_id, driver_id, vehicle_id, ride_class, status, status_version,
	       pickup_lat, pickup_lng, pickup_address, drop_lat, drop_lng, drop_address,
	       estimated_distance_km, estimated_duration_sec, estimated_fare,
	       actual_distance_km, actual_duration_sec, actual_fare,
	       payment_method, payment_status,
	       requested_at, accepted_at, started_at, completed_at, cancelled_at,
	       cancellation_reason, cancelled_by
	FROM rides`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	r, err := s.scanRide(s.db.QueryRow(ctx, selectRide+` WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ride %s: %w", id, err)
	}
	return r, nil
}

func (s *PGStore) CompletedByDriver(ctx context.Context, driverID types.ID, since time.Time) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, selectRide+`
		WHERE driver_id = $1 AND status = 'completed' AND completed_at >= $2
		ORDER BY completed_at DESC`, string(driverID), since)
	if err != nil {
		return nil, fmt.Errorf("list completed rides for %s: %w", driverID, err)
	}
	defer rows.Close()

	var out []*Ride
	for rows.Next() {
		r, err := s.scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) CountCompleted(ctx context.Context, driverID types.ID, w StatsWindows) (CompletedCounts, error) {
	var c CompletedCounts
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE completed_at >= $2),
		       count(*) FILTER (WHERE completed_at >= $3),
		       count(*) FILTER (WHERE completed_at >= $4),
		       count(*)
		FROM rides
		WHERE driver_id = $1 AND status = 'completed'`,
		string(driverID), w.Today, w.Week, w.Month,
	).Scan(&c.Today, &c.Week, &c.Month, &c.Total)
	if err != nil {
		return CompletedCounts{}, fmt.Errorf("count completed rides for %s: %w", driverID, err)
	}
	return c, nil
}

func (s *PGStore) scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var driverID, vehicleID, reason, cancelledBy sql.NullString
	var actualKm sql.NullFloat64
	var actualSec, actualFare sql.NullInt64
	var acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.RiderID, &driverID, &vehicleID, &r.Class, &r.Status, &r.StatusVersion,
		&r.Pickup.Lat, &r.Pickup.Lng, &r.Pickup.Address, &r.Drop.Lat, &r.Drop.Lng, &r.Drop.Address,
		&r.EstimatedDistanceKm, &r.EstimatedDurationSec, &r.EstimatedFare.Amount,
		&actualKm, &actualSec, &actualFare,
		&r.PaymentMethod, &r.PaymentStatus,
		&r.RequestedAt, &acceptedAt, &startedAt, &completedAt, &cancelledAt,
		&reason, &cancelledBy,
	)
	if err != nil {
		return nil, err
	}

	r.EstimatedFare.Currency = s.currency
	if driverID.Valid {
		v := types.ID(driverID.String)
		r.DriverID = &v
	}
	if vehicleID.Valid {
		v := types.ID(vehicleID.String)
		r.VehicleID = &v
	}
	if actualKm.Valid {
		r.ActualDistanceKm = &actualKm.Float64
	}
	if actualSec.Valid {
		r.ActualDurationSec = &actualSec.Int64
	}
	if actualFare.Valid {
		r.ActualFare = &types.Money{Amount: actualFare.Int64, Currency: s.currency}
	}
	r.AcceptedAt = toTimePtr(acceptedAt)
	r.StartedAt = toTimePtr(startedAt)
	r.CompletedAt = toTimePtr(completedAt)
	r.CancelledAt = toTimePtr(cancelledAt)
	if reason.Valid {
		r.CancellationReason = &reason.String
	}
	if cancelledBy.Valid {
		v := types.Role(cancelledBy.String)
		r.CancelledBy = &v
	}
	return &r, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error) {
	var fare *int64
	if patch.ActualFare != nil {
		fare = &patch.ActualFare.Amount
	}
	var cancelledBy *string
	if patch.CancelledBy != nil {
		v := string(*patch.CancelledBy)
		cancelledBy = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    vehicle_id = COALESCE($3, vehicle_id),
		    actual_distance_km = COALESCE($4, actual_distance_km),
		    actual_duration_sec = COALESCE($5, actual_duration_sec),
		    actual_fare = COALESCE($6, actual_fare),
		    cancellation_reason = COALESCE($7, cancellation_reason),
		    cancelled_by = COALESCE($8, cancelled_by),
		    accepted_at = CASE WHEN $1 = 'accepted' THEN $9 ELSE accepted_at END,
		    started_at = CASE WHEN $1 = 'started' THEN $9 ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN $9 ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN $9 ELSE cancelled_at END
		WHERE id = $10 AND status = $11 AND status_version = $12`,
		string(to),
		idPtr(patch.DriverID),
		idPtr(patch.VehicleID),
		patch.ActualDistanceKm,
		patch.ActualDurationSec,
		fare,
		patch.CancellationReason,
		cancelledBy,
		patch.At,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, fmt.Errorf("update ride %s status: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetPaymentStatus(ctx context.Context, id types.ID, status PaymentStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE rides SET payment_status = $1 WHERE id = $2`, string(status), string(id))
	if err != nil {
		return fmt.Errorf("set ride %s payment status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) HasActiveByRider(ctx context.Context, riderID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rides
			WHERE rider_id = $1
			  AND status IN ('requested','accepted','started')
		)`, string(riderID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_state_events (
			ride_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.RideID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *PGStore) AppendTracking(ctx context.Context, p TrackingPoint) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ride_tracking (ride_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		string(p.RideID), p.Point.Lat, p.Point.Lng, p.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append tracking for ride %s: %w", p.RideID, err)
	}
	return nil
}

func (s *PGStore) ListTracking(ctx context.Context, rideID types.ID) ([]TrackingPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT lat, lng, recorded_at
		FROM ride_tracking
		WHERE ride_id = $1
		ORDER BY recorded_at, id`, string(rideID))
	if err != nil {
		return nil, fmt.Errorf("list tracking for ride %s: %w", rideID, err)
	}
	defer rows.Close()

	var out []TrackingPoint
	for rows.Next() {
		p := TrackingPoint{RideID: rideID}
		if err := rows.Scan(&p.Point.Lat, &p.Point.Lng, &p.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func isActiveRideViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeRideIndex
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
