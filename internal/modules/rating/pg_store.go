// README: Rating store backed by PostgreSQL; (ride_id, rater_id) is unique.
package rating

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const selectRating = `
	SELECT id, ride_id, rater_id, ratee_id, rating_type, score, feedback, created_at
	FROM ratings`

func (s *PGStore) Create(ctx context.Context, r *Rating) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ratings (id, ride_id, rater_id, ratee_id, rating_type, score, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, string(r.RideID), string(r.RaterID), string(r.RateeID),
		string(r.Direction), r.Score, r.Feedback, r.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert rating for ride %s: %w", r.RideID, err)
	}
	return nil
}

func (s *PGStore) Exists(ctx context.Context, rideID, raterID types.ID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ratings WHERE ride_id = $1 AND rater_id = $2)`,
		string(rideID), string(raterID),
	).Scan(&exists)
	return exists, err
}

func (s *PGStore) Stats(ctx context.Context, rateeID types.ID, dir Direction) (Stats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT score, COUNT(*)
		FROM ratings
		WHERE ratee_id = $1 AND rating_type = $2
		GROUP BY score`, string(rateeID), string(dir))
	if err != nil {
		return Stats{}, fmt.Errorf("rating stats %s: %w", rateeID, err)
	}
	defer rows.Close()

	st := emptyStats(rateeID)
	for rows.Next() {
		var score, n int
		if err := rows.Scan(&score, &n); err != nil {
			return Stats{}, err
		}
		st.Distribution[score] += n
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	st.finish()
	return st, nil
}

func (s *PGStore) ListForUser(ctx context.Context, rateeID types.ID, dir Direction, limit int) ([]Rating, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, selectRating+`
		WHERE ratee_id = $1 AND rating_type = $2
		ORDER BY created_at DESC
		LIMIT $3`, string(rateeID), string(dir), limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *PGStore) ListForRide(ctx context.Context, rideID types.ID) ([]Rating, error) {
	rows, err := s.db.Query(ctx, selectRating+` WHERE ride_id = $1 ORDER BY created_at`, string(rideID))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Rating, error) {
	defer rows.Close()
	var out []Rating
	for rows.Next() {
		var r Rating
		var dir string
		if err := rows.Scan(&r.ID, &r.RideID, &r.RaterID, &r.RateeID, &dir, &r.Score, &r.Feedback, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Direction = Direction(dir)
		out = append(out, r)
	}
	return out, rows.Err()
}
