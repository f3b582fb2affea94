// README: Driver store backed by PostgreSQL; availability changes are single conditional UPDATEs.
package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/types"
)

type PGStore struct {
	db       *pgxpool.Pool
	currency string
}

func NewPGStore(db *pgxpool.Pool, currency string) *PGStore {
	return &PGStore{db: db, currency: currency}
}

const selectDriver = `
	SELECT d.id, d.is_online, d.is_available, d.is_verified,
	       d.current_lat, d.current_lng, d.location_updated_at,
	       d.total_rides, d.total_earnings, d.average_rating, d.rating_count, d.updated_at,
	       v.id, v.vehicle_class, v.is_active, v.is_verified
	FROM drivers d
	LEFT JOIN vehicles v ON v.id = d.vehicle_id`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, selectDriver+` WHERE d.id = $1`, string(id))
	d, err := s.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver %s: %w", id, err)
	}
	return d, nil
}

func (s *PGStore) GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*Driver, error) {
	out := make(map[types.ID]*Driver, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	rows, err := s.db.Query(ctx, selectDriver+` WHERE d.id = ANY($1)`, raw)
	if err != nil {
		return nil, fmt.Errorf("get drivers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		d, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

func (s *PGStore) ToggleOnline(ctx context.Context, id types.ID) (*Driver, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET is_online = NOT is_online,
		    is_available = NOT is_online,
		    updated_at = NOW()
		WHERE id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *PGStore) ToggleAvailable(ctx context.Context, id types.ID) (*Driver, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET is_available = NOT is_available,
		    updated_at = NOW()
		WHERE id = $1 AND is_online`, string(id))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrOffline
	}
	return s.Get(ctx, id)
}

func (s *PGStore) SetLocation(ctx context.Context, id types.ID, loc Location) error {
	return s.exec(ctx, `
		UPDATE drivers
		SET current_lat = $2, current_lng = $3, location_updated_at = $4
		WHERE id = $1`, string(id), loc.Point.Lat, loc.Point.Lng, loc.RecordedAt)
}

func (s *PGStore) Claim(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET is_available = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_online AND is_available AND is_verified`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) Release(ctx context.Context, id types.ID) error {
	return s.exec(ctx, `
		UPDATE drivers
		SET is_available = is_online, updated_at = NOW()
		WHERE id = $1`, string(id))
}

func (s *PGStore) RecordTrip(ctx context.Context, id types.ID, earnings types.Money) error {
	return s.exec(ctx, `
		UPDATE drivers
		SET total_rides = total_rides + 1,
		    total_earnings = total_earnings + $2,
		    updated_at = NOW()
		WHERE id = $1`, string(id), earnings.Amount)
}

func (s *PGStore) SetRating(ctx context.Context, id types.ID, avg float64, count int) error {
	return s.exec(ctx, `
		UPDATE drivers
		SET average_rating = $2, rating_count = $3, updated_at = NOW()
		WHERE id = $1`, string(id), avg, count)
}

func (s *PGStore) exec(ctx context.Context, q string, args ...any) error {
	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) scan(row pgx.Row) (*Driver, error) {
	var d Driver
	var lat, lng sql.NullFloat64
	var locAt sql.NullTime
	var vehicleID, vehicleClass sql.NullString
	var vehicleActive, vehicleVerified sql.NullBool

	err := row.Scan(
		&d.ID, &d.Online, &d.Available, &d.Verified,
		&lat, &lng, &locAt,
		&d.TotalRides, &d.TotalEarnings.Amount, &d.AverageRating, &d.RatingCount, &d.UpdatedAt,
		&vehicleID, &vehicleClass, &vehicleActive, &vehicleVerified,
	)
	if err != nil {
		return nil, err
	}
	d.TotalEarnings.Currency = s.currency
	if lat.Valid && lng.Valid && locAt.Valid {
		d.Location = &Location{Point: types.Point{Lat: lat.Float64, Lng: lng.Float64}, RecordedAt: locAt.Time}
	}
	if vehicleID.Valid {
		d.Vehicle = &Vehicle{
			ID:       types.ID(vehicleID.String),
			Class:    types.RideClass(vehicleClass.String),
			Active:   vehicleActive.Bool,
			Verified: vehicleVerified.Bool,
		}
	}
	return &d, nil
}
