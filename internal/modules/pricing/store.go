// README: Pricing store backed by PostgreSQL; holds per-class multiplier overrides.
package pricing

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// LoadRates returns base with any multipliers found in fare_rates applied on top.
func (s *Store) LoadRates(ctx context.Context, base Rates) (Rates, error) {
	rows, err := s.db.Query(ctx, `SELECT ride_class, multiplier FROM fare_rates`)
	if err != nil {
		return base, err
	}
	defer rows.Close()

	out := base
	out.Multipliers = make(map[types.RideClass]float64, len(base.Multipliers))
	for k, v := range base.Multipliers {
		out.Multipliers[k] = v
	}
	for rows.Next() {
		var class string
		var mult float64
		if err := rows.Scan(&class, &mult); err != nil {
			return base, err
		}
		if c := types.RideClass(class); c.Valid() && mult > 0 {
			out.Multipliers[c] = mult
		}
	}
	return out, rows.Err()
}
