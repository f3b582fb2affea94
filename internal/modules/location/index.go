// README: Driver position index interface and its in-process implementation.
package location

import (
	"context"
	"sync"
	"time"

	"ridehail/internal/types"
)

// Index stores the latest known position of every online driver.
type Index interface {
	Upsert(ctx context.Context, driverID types.ID, p types.Point, recordedAt time.Time) error
	Remove(ctx context.Context, driverID types.ID) error
	// Nearby returns drivers within radiusKm of center. Ordering is not guaranteed.
	Nearby(ctx context.Context, center types.Point, radiusKm float64) ([]Nearby, error)
}

type indexEntry struct {
	point      types.Point
	recordedAt time.Time
}

type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[types.ID]indexEntry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[types.ID]indexEntry)}
}

func (m *MemoryIndex) Upsert(_ context.Context, driverID types.ID, p types.Point, recordedAt time.Time) error {
	m.mu.Lock()
	m.entries[driverID] = indexEntry{point: p, recordedAt: recordedAt}
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Remove(_ context.Context, driverID types.ID) error {
	m.mu.Lock()
	delete(m.entries, driverID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Nearby(_ context.Context, center types.Point, radiusKm float64) ([]Nearby, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Nearby
	for id, e := range m.entries {
		d := Distance(center, e.point)
		if d <= radiusKm {
			out = append(out, Nearby{DriverID: id, Point: e.point, DistanceKm: d, RecordedAt: e.recordedAt})
		}
	}
	return out, nil
}
