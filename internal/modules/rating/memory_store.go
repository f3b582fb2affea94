package rating

import (
	"context"
	"sort"
	"sync"

	"ridehail/internal/types"
)

type MemoryStore struct {
	mu      sync.Mutex
	ratings []Rating
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Create(_ context.Context, r *Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ratings {
		if existing.RideID == r.RideID && existing.RaterID == r.RaterID {
			return ErrDuplicate
		}
	}
	m.ratings = append(m.ratings, *r)
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, rideID, raterID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.ratings {
		if r.RideID == rideID && r.RaterID == raterID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Stats(_ context.Context, rateeID types.ID, dir Direction) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := emptyStats(rateeID)
	for _, r := range m.ratings {
		if r.RateeID == rateeID && r.Direction == dir {
			st.add(r.Score)
		}
	}
	st.finish()
	return st, nil
}

func (m *MemoryStore) ListForUser(_ context.Context, rateeID types.ID, dir Direction, limit int) ([]Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Rating
	for _, r := range m.ratings {
		if r.RateeID == rateeID && r.Direction == dir {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListForRide(_ context.Context, rideID types.ID) ([]Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Rating
	for _, r := range m.ratings {
		if r.RideID == rideID {
			out = append(out, r)
		}
	}
	return out, nil
}
