// README: Ledger store contract. Every method that moves money is a single atomic write.
package payment

import (
	"context"
	"time"

	"ridehail/internal/types"
)

type Store interface {
	GetPayment(ctx context.Context, rideID types.ID) (*Payment, error)
	// Reserve claims the ride for settlement by writing p as pending. Only a
	// missing or failed payment can be claimed: a pending one returns
	// ErrSettlementBusy, a completed or refunded one ErrAlreadySettled.
	Reserve(ctx context.Context, p *Payment) error
	// Record completes the pending payment for p.RideID and applies postings
	// together. A debit past zero returns ErrInsufficientFunds and writes nothing.
	Record(ctx context.Context, p *Payment, postings []Posting) ([]Transaction, error)
	// MarkFailed releases a pending reservation so the ride can be paid again.
	MarkFailed(ctx context.Context, rideID types.ID) error
	Post(ctx context.Context, postings []Posting) ([]Transaction, error)
	// MarkRefunded flips a completed payment to refunded and applies the
	// refund posting in the same write.
	MarkRefunded(ctx context.Context, rideID types.ID, amount types.Money, reason string, at time.Time, posting Posting) (*Payment, error)
	Wallet(ctx context.Context, userID types.ID) (*Wallet, error)
	Transactions(ctx context.Context, userID types.ID, limit int) ([]Transaction, error)
}
