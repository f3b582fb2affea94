package ride

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridehail/internal/types"
)

type MemoryStore struct {
	mu       sync.Mutex
	rides    map[types.ID]*Ride
	events   []Event
	tracking map[types.ID][]TrackingPoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:    make(map[types.ID]*Ride),
		tracking: make(map[types.ID][]TrackingPoint),
	}
}

func (m *MemoryStore) Create(_ context.Context, r *Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Status.Active() && m.hasActive(r.RiderID) {
		return ErrActiveRide
	}
	m.rides[r.ID] = cloneRide(r)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRide(r), nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok || r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	r.Status = to
	r.StatusVersion++
	at := patch.At
	switch to {
	case StatusAccepted:
		r.AcceptedAt = &at
	case StatusStarted:
		r.StartedAt = &at
	case StatusCompleted:
		r.CompletedAt = &at
	case StatusCancelled:
		r.CancelledAt = &at
	}
	if patch.DriverID != nil {
		v := *patch.DriverID
		r.DriverID = &v
	}
	if patch.VehicleID != nil {
		v := *patch.VehicleID
		r.VehicleID = &v
	}
	if patch.ActualDistanceKm != nil {
		v := *patch.ActualDistanceKm
		r.ActualDistanceKm = &v
	}
	if patch.ActualDurationSec != nil {
		v := *patch.ActualDurationSec
		r.ActualDurationSec = &v
	}
	if patch.ActualFare != nil {
		v := *patch.ActualFare
		r.ActualFare = &v
	}
	if patch.CancellationReason != nil {
		v := *patch.CancellationReason
		r.CancellationReason = &v
	}
	if patch.CancelledBy != nil {
		v := *patch.CancelledBy
		r.CancelledBy = &v
	}
	return true, nil
}

func (m *MemoryStore) SetPaymentStatus(_ context.Context, id types.ID, status PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok {
		return ErrNotFound
	}
	r.PaymentStatus = status
	return nil
}

func (m *MemoryStore) HasActiveByRider(_ context.Context, riderID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasActive(riderID), nil
}

func (m *MemoryStore) hasActive(riderID types.ID) bool {
	for _, r := range m.rides {
		if r.RiderID == riderID && r.Status.Active() {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CompletedByDriver(_ context.Context, driverID types.ID, since time.Time) ([]*Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Ride
	for _, r := range m.rides {
		if completedBy(r, driverID, since) {
			out = append(out, cloneRide(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(*out[j].CompletedAt) })
	return out, nil
}

func (m *MemoryStore) CountCompleted(_ context.Context, driverID types.ID, w StatsWindows) (CompletedCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c CompletedCounts
	for _, r := range m.rides {
		if !completedBy(r, driverID, time.Time{}) {
			continue
		}
		c.Total++
		if !r.CompletedAt.Before(w.Today) {
			c.Today++
		}
		if !r.CompletedAt.Before(w.Week) {
			c.Week++
		}
		if !r.CompletedAt.Before(w.Month) {
			c.Month++
		}
	}
	return c, nil
}

func completedBy(r *Ride, driverID types.ID, since time.Time) bool {
	return r.Status == StatusCompleted && r.IsDriver(driverID) &&
		r.CompletedAt != nil && !r.CompletedAt.Before(since)
}

func (m *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = int64(len(m.events) + 1)
	m.events = append(m.events, cp)
	return nil
}

// Events returns the recorded transitions for a ride in write order.
func (m *MemoryStore) Events(rideID types.ID) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.RideID == rideID {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemoryStore) AppendTracking(_ context.Context, p TrackingPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracking[p.RideID] = append(m.tracking[p.RideID], p)
	return nil
}

func (m *MemoryStore) ListTracking(_ context.Context, rideID types.ID) ([]TrackingPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TrackingPoint(nil), m.tracking[rideID]...), nil
}

func cloneRide(r *Ride) *Ride {
	cp := *r
	cp.DriverID = clonePtr(r.DriverID)
	cp.VehicleID = clonePtr(r.VehicleID)
	cp.ActualDistanceKm = clonePtr(r.ActualDistanceKm)
	cp.ActualDurationSec = clonePtr(r.ActualDurationSec)
	cp.ActualFare = clonePtr(r.ActualFare)
	cp.AcceptedAt = clonePtr(r.AcceptedAt)
	cp.StartedAt = clonePtr(r.StartedAt)
	cp.CompletedAt = clonePtr(r.CompletedAt)
	cp.CancelledAt = clonePtr(r.CancelledAt)
	cp.CancellationReason = clonePtr(r.CancellationReason)
	cp.CancelledBy = clonePtr(r.CancelledBy)
	return &cp
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
