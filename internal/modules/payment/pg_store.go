// README: Ledger store backed by PostgreSQL. Wallet rows are locked FOR UPDATE in user id order.
package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/types"
)

type PGStore struct {
	db       *pgxpool.Pool
	currency string
}

func NewPGStore(db *pgxpool.Pool, currency string) *PGStore {
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return &PGStore{db: db, currency: currency}
}

const selectPayment = `
	SELECT id, ride_id, rider_id, driver_id, amount, driver_share, commission,
	       payment_method, status, gateway_transaction_id,
	       refund_amount, refund_reason, created_at, refunded_at
	FROM payments`

func (s *PGStore) GetPayment(ctx context.Context, rideID types.ID) (*Payment, error) {
	p, err := s.scanPayment(s.db.QueryRow(ctx, selectPayment+` WHERE ride_id = $1`, string(rideID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment for ride %s: %w", rideID, err)
	}
	return p, nil
}

func (s *PGStore) Reserve(ctx context.Context, p *Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	// A failed attempt is reclaimed in place; any other existing row wins.
	err := s.db.QueryRow(ctx, `
		INSERT INTO payments (
			id, ride_id, rider_id, driver_id, amount, driver_share, commission,
			payment_method, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9)
		ON CONFLICT (ride_id) DO UPDATE
		SET amount = EXCLUDED.amount, driver_share = EXCLUDED.driver_share,
		    commission = EXCLUDED.commission, payment_method = EXCLUDED.payment_method,
		    status = 'pending', gateway_transaction_id = NULL
		WHERE payments.status = 'failed'
		RETURNING id, created_at`,
		p.ID, string(p.RideID), string(p.RiderID), string(p.DriverID),
		p.Amount.Amount, p.DriverShare.Amount, p.Commission.Amount,
		string(p.Method), p.CreatedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var status Status
		if err := s.db.QueryRow(ctx, `SELECT status FROM payments WHERE ride_id = $1`, string(p.RideID)).
			Scan(&status); err != nil {
			return fmt.Errorf("read payment status for ride %s: %w", p.RideID, err)
		}
		if status == StatusPending {
			return ErrSettlementBusy
		}
		return ErrAlreadySettled
	}
	if err != nil {
		return fmt.Errorf("reserve payment for ride %s: %w", p.RideID, err)
	}
	p.Status = StatusPending
	return nil
}

func (s *PGStore) Record(ctx context.Context, p *Payment, postings []Posting) ([]Transaction, error) {
	var txs []Transaction
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE payments SET status = 'completed', gateway_transaction_id = $1
			WHERE ride_id = $2 AND status = 'pending'`,
			nullString(p.GatewayTxnID), string(p.RideID),
		)
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadySettled
		}
		txs, err = s.apply(ctx, tx, postings)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.Status = StatusCompleted
	return txs, nil
}

func (s *PGStore) MarkFailed(ctx context.Context, rideID types.ID) error {
	if _, err := s.db.Exec(ctx, `UPDATE payments SET status = 'failed' WHERE ride_id = $1 AND status = 'pending'`,
		string(rideID)); err != nil {
		return fmt.Errorf("mark payment failed for ride %s: %w", rideID, err)
	}
	return nil
}

func (s *PGStore) Post(ctx context.Context, postings []Posting) ([]Transaction, error) {
	var txs []Transaction
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		txs, err = s.apply(ctx, tx, postings)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *PGStore) MarkRefunded(ctx context.Context, rideID types.ID, amount types.Money, reason string, at time.Time, posting Posting) (*Payment, error) {
	var out *Payment
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		p, err := s.scanPayment(tx.QueryRow(ctx, selectPayment+` WHERE ride_id = $1 FOR UPDATE`, string(rideID)))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		if p.Status != StatusCompleted {
			return ErrAlreadyRefunded
		}
		if _, err := tx.Exec(ctx, `
			UPDATE payments
			SET status = 'refunded', refund_amount = $1, refund_reason = $2, refunded_at = $3
			WHERE ride_id = $4`,
			amount.Amount, reason, at, string(rideID),
		); err != nil {
			return fmt.Errorf("mark payment refunded: %w", err)
		}
		if _, err := s.apply(ctx, tx, []Posting{posting}); err != nil {
			return err
		}
		p.Status = StatusRefunded
		p.RefundAmount = &amount
		p.RefundReason = reason
		p.RefundedAt = &at
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) Wallet(ctx context.Context, userID types.ID) (*Wallet, error) {
	w := &Wallet{UserID: userID, Balance: types.Money{Currency: s.currency}}
	var updated sql.NullTime
	err := s.db.QueryRow(ctx, `SELECT balance, updated_at FROM wallets WHERE user_id = $1`, string(userID)).
		Scan(&w.Balance.Amount, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet %s: %w", userID, err)
	}
	if updated.Valid {
		w.UpdatedAt = updated.Time
	}
	return w, nil
}

func (s *PGStore) Transactions(ctx context.Context, userID types.ID, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, transaction_type, amount, balance_before, balance_after,
		       reference_type, reference_id, description, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`, string(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions %s: %w", userID, err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var refID, desc sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount.Amount, &t.BalanceBefore.Amount, &t.BalanceAfter.Amount,
			&t.RefType, &refID, &desc, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Amount.Currency = s.currency
		t.BalanceBefore.Currency = s.currency
		t.BalanceAfter.Currency = s.currency
		t.RefID = refID.String
		t.Description = desc.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// apply must run inside tx. It creates missing wallets, locks all touched
// rows in id order, rejects any posting that would go negative, then writes.
func (s *PGStore) apply(ctx context.Context, tx pgx.Tx, postings []Posting) ([]Transaction, error) {
	seen := make(map[types.ID]bool, len(postings))
	var ids []string
	for _, p := range postings {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, string(p.UserID))
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
			INSERT INTO wallets (user_id, balance, currency) VALUES ($1, 0, $2)
			ON CONFLICT (user_id) DO NOTHING`, id, s.currency); err != nil {
			return nil, fmt.Errorf("ensure wallet %s: %w", id, err)
		}
	}

	balances := make(map[types.ID]int64, len(ids))
	rows, err := tx.Query(ctx, `
		SELECT user_id, balance FROM wallets
		WHERE user_id = ANY($1)
		ORDER BY user_id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock wallets: %w", err)
	}
	for rows.Next() {
		var id string
		var bal int64
		if err := rows.Scan(&id, &bal); err != nil {
			rows.Close()
			return nil, err
		}
		balances[types.ID(id)] = bal
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	check := make(map[types.ID]int64, len(balances))
	for id, b := range balances {
		check[id] = b
	}
	for _, p := range postings {
		check[p.UserID] += p.signed()
		if check[p.UserID] < 0 {
			return nil, ErrInsufficientFunds
		}
	}

	now := time.Now()
	txs := make([]Transaction, 0, len(postings))
	for _, p := range postings {
		before := balances[p.UserID]
		after := before + p.signed()
		balances[p.UserID] = after
		t := Transaction{
			ID:            uuid.NewString(),
			UserID:        p.UserID,
			Type:          p.Type,
			Amount:        types.Money{Amount: p.Amount.Amount, Currency: s.currency},
			BalanceBefore: types.Money{Amount: before, Currency: s.currency},
			BalanceAfter:  types.Money{Amount: after, Currency: s.currency},
			RefType:       p.RefType,
			RefID:         p.RefID,
			Description:   p.Description,
			CreatedAt:     now,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO wallet_transactions (
				id, user_id, transaction_type, amount, balance_before, balance_after,
				reference_type, reference_id, description, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			t.ID, string(t.UserID), string(t.Type), t.Amount.Amount, before, after,
			string(t.RefType), nullString(t.RefID), nullString(t.Description), now,
		); err != nil {
			return nil, fmt.Errorf("insert wallet transaction: %w", err)
		}
		txs = append(txs, t)
	}

	for id, bal := range balances {
		if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1, updated_at = $2 WHERE user_id = $3`,
			bal, now, string(id)); err != nil {
			return nil, fmt.Errorf("update wallet %s: %w", id, err)
		}
	}
	return txs, nil
}

func (s *PGStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var gateway, reason sql.NullString
	var refund sql.NullInt64
	var refundedAt sql.NullTime
	err := row.Scan(&p.ID, &p.RideID, &p.RiderID, &p.DriverID,
		&p.Amount.Amount, &p.DriverShare.Amount, &p.Commission.Amount,
		&p.Method, &p.Status, &gateway, &refund, &reason, &p.CreatedAt, &refundedAt)
	if err != nil {
		return nil, err
	}
	p.Amount.Currency = s.currency
	p.DriverShare.Currency = s.currency
	p.Commission.Currency = s.currency
	p.GatewayTxnID = gateway.String
	p.RefundReason = reason.String
	if refund.Valid {
		p.RefundAmount = &types.Money{Amount: refund.Int64, Currency: s.currency}
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		p.RefundedAt = &t
	}
	return &p, nil
}

func nullString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
