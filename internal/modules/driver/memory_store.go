package driver

import (
	"context"
	"sync"
	"time"

	"ridehail/internal/types"
)

// MemoryStore keeps drivers in process. Every method applies its change under
// one lock, which gives the same conditional-write guarantees as PGStore.
type MemoryStore struct {
	mu      sync.Mutex
	drivers map[types.ID]*Driver
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[types.ID]*Driver), now: time.Now}
}

// Save inserts or replaces a driver record.
func (m *MemoryStore) Save(d Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clone(&d)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = m.now()
	}
	m.drivers[d.ID] = cp
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(d), nil
}

func (m *MemoryStore) GetMany(_ context.Context, ids []types.ID) (map[types.ID]*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[types.ID]*Driver, len(ids))
	for _, id := range ids {
		if d, ok := m.drivers[id]; ok {
			out[id] = clone(d)
		}
	}
	return out, nil
}

func (m *MemoryStore) ToggleOnline(_ context.Context, id types.ID) (*Driver, error) {
	return m.update(id, func(d *Driver) error {
		d.Online = !d.Online
		d.Available = d.Online
		return nil
	})
}

func (m *MemoryStore) ToggleAvailable(_ context.Context, id types.ID) (*Driver, error) {
	return m.update(id, func(d *Driver) error {
		if !d.Online {
			return ErrOffline
		}
		d.Available = !d.Available
		return nil
	})
}

func (m *MemoryStore) SetLocation(_ context.Context, id types.ID, loc Location) error {
	_, err := m.update(id, func(d *Driver) error {
		d.Location = &Location{Point: loc.Point, RecordedAt: loc.RecordedAt}
		return nil
	})
	return err
}

func (m *MemoryStore) Claim(_ context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return false, ErrNotFound
	}
	if !d.Online || !d.Available || !d.Verified {
		return false, nil
	}
	d.Available = false
	d.UpdatedAt = m.now()
	return true, nil
}

func (m *MemoryStore) Release(_ context.Context, id types.ID) error {
	_, err := m.update(id, func(d *Driver) error {
		d.Available = d.Online
		return nil
	})
	return err
}

func (m *MemoryStore) RecordTrip(_ context.Context, id types.ID, earnings types.Money) error {
	_, err := m.update(id, func(d *Driver) error {
		d.TotalRides++
		d.TotalEarnings = d.TotalEarnings.Add(earnings)
		return nil
	})
	return err
}

func (m *MemoryStore) SetRating(_ context.Context, id types.ID, avg float64, count int) error {
	_, err := m.update(id, func(d *Driver) error {
		d.AverageRating = avg
		d.RatingCount = count
		return nil
	})
	return err
}

func (m *MemoryStore) update(id types.ID, fn func(d *Driver) error) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := clone(d)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = m.now()
	m.drivers[id] = next
	return clone(next), nil
}

func clone(d *Driver) *Driver {
	cp := *d
	if d.Location != nil {
		loc := *d.Location
		cp.Location = &loc
	}
	if d.Vehicle != nil {
		v := *d.Vehicle
		cp.Vehicle = &v
	}
	return &cp
}
