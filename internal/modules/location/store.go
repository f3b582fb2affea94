// README: Driver location history backed by PostgreSQL, with a bounded in-memory variant.
package location

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_location_history (driver_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		string(snap.DriverID), snap.Position.Lat, snap.Position.Lng, snap.RecordedAt,
	)
	return err
}

func (s *Store) ListSnapshots(ctx context.Context, driverID types.ID, limit int) ([]Snapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, driver_id, lat, lng, recorded_at
		FROM driver_location_history
		WHERE driver_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`, string(driverID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.DriverID, &snap.Position.Lat, &snap.Position.Lng, &snap.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// MemoryHistory keeps the last perDriver snapshots of each driver.
type MemoryHistory struct {
	perDriver int

	mu    sync.Mutex
	seq   int64
	snaps map[types.ID][]Snapshot
}

func NewMemoryHistory(perDriver int) *MemoryHistory {
	if perDriver <= 0 {
		perDriver = 500
	}
	return &MemoryHistory{perDriver: perDriver, snaps: make(map[types.ID][]Snapshot)}
}

func (m *MemoryHistory) AppendSnapshot(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	snap.ID = m.seq
	list := append(m.snaps[snap.DriverID], snap)
	if len(list) > m.perDriver {
		list = list[len(list)-m.perDriver:]
	}
	m.snaps[snap.DriverID] = list
	return nil
}

func (m *MemoryHistory) ListSnapshots(_ context.Context, driverID types.ID, limit int) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.snaps[driverID]
	out := make([]Snapshot, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}
