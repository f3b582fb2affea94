// README: Driver store contract; PGStore and MemoryStore implement it.
package driver

import (
	"context"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

var (
	ErrNotFound = apperr.New(apperr.KindNotFound, "driver not found")
	ErrOffline  = apperr.New(apperr.KindInvalidState, "driver is offline")
)

type Store interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	GetMany(ctx context.Context, ids []types.ID) (map[types.ID]*Driver, error)
	// ToggleOnline flips the online flag; available follows the new value.
	ToggleOnline(ctx context.Context, id types.ID) (*Driver, error)
	// ToggleAvailable flips the available flag of an online driver.
	ToggleAvailable(ctx context.Context, id types.ID) (*Driver, error)
	SetLocation(ctx context.Context, id types.ID, loc Location) error
	// Claim marks an eligible driver unavailable. It returns false when the
	// driver is not online, available and verified at the time of the write.
	Claim(ctx context.Context, id types.ID) (bool, error)
	// Release makes the driver available again if still online.
	Release(ctx context.Context, id types.ID) error
	RecordTrip(ctx context.Context, id types.ID, earnings types.Money) error
	SetRating(ctx context.Context, id types.ID, avg float64, count int) error
}
