package payment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ridehail/internal/types"
)

type walletState struct {
	mu        sync.Mutex
	balance   int64
	txs       []Transaction
	updatedAt time.Time
}

// MemoryStore serializes ledger writes per wallet. Writers that touch more
// than one wallet lock them in user id order.
type MemoryStore struct {
	currency string
	now      func() time.Time

	mu      sync.Mutex
	wallets map[types.ID]*walletState

	// paymentsMu is always taken before any wallet lock.
	paymentsMu sync.Mutex
	payments   map[types.ID]*Payment
}

func NewMemoryStore(currency string) *MemoryStore {
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return &MemoryStore{
		currency: currency,
		now:      time.Now,
		wallets:  make(map[types.ID]*walletState),
		payments: make(map[types.ID]*Payment),
	}
}

func (m *MemoryStore) GetPayment(_ context.Context, rideID types.ID) (*Payment, error) {
	m.paymentsMu.Lock()
	defer m.paymentsMu.Unlock()
	p, ok := m.payments[rideID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (m *MemoryStore) Reserve(_ context.Context, p *Payment) error {
	m.paymentsMu.Lock()
	defer m.paymentsMu.Unlock()
	if cur, ok := m.payments[p.RideID]; ok {
		switch cur.Status {
		case StatusFailed:
			p.ID = cur.ID
		case StatusPending:
			return ErrSettlementBusy
		default:
			return ErrAlreadySettled
		}
	}
	cp := clonePayment(p)
	cp.Status = StatusPending
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	m.payments[p.RideID] = cp
	*p = *clonePayment(cp)
	return nil
}

func (m *MemoryStore) Record(_ context.Context, p *Payment, postings []Posting) ([]Transaction, error) {
	m.paymentsMu.Lock()
	defer m.paymentsMu.Unlock()
	cur, ok := m.payments[p.RideID]
	if !ok || cur.Status != StatusPending {
		return nil, ErrAlreadySettled
	}
	txs, err := m.apply(postings)
	if err != nil {
		return nil, err
	}
	cur.Status = StatusCompleted
	cur.GatewayTxnID = p.GatewayTxnID
	*p = *clonePayment(cur)
	return txs, nil
}

func (m *MemoryStore) MarkFailed(_ context.Context, rideID types.ID) error {
	m.paymentsMu.Lock()
	defer m.paymentsMu.Unlock()
	if cur, ok := m.payments[rideID]; ok && cur.Status == StatusPending {
		cur.Status = StatusFailed
	}
	return nil
}

func (m *MemoryStore) Post(_ context.Context, postings []Posting) ([]Transaction, error) {
	return m.apply(postings)
}

func (m *MemoryStore) MarkRefunded(_ context.Context, rideID types.ID, amount types.Money, reason string, at time.Time, posting Posting) (*Payment, error) {
	m.paymentsMu.Lock()
	defer m.paymentsMu.Unlock()
	p, ok := m.payments[rideID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if p.Status != StatusCompleted {
		return nil, ErrAlreadyRefunded
	}
	if _, err := m.apply([]Posting{posting}); err != nil {
		return nil, err
	}
	p.Status = StatusRefunded
	p.RefundAmount = &amount
	p.RefundReason = reason
	p.RefundedAt = &at
	return clonePayment(p), nil
}

func (m *MemoryStore) Wallet(_ context.Context, userID types.ID) (*Wallet, error) {
	w := m.wallet(userID)
	w.mu.Lock()
	defer w.mu.Unlock()
	return &Wallet{
		UserID:    userID,
		Balance:   types.Money{Amount: w.balance, Currency: m.currency},
		UpdatedAt: w.updatedAt,
	}, nil
}

func (m *MemoryStore) Transactions(_ context.Context, userID types.ID, limit int) ([]Transaction, error) {
	w := m.wallet(userID)
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Transaction, 0, len(w.txs))
	for i := len(w.txs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, w.txs[i])
	}
	return out, nil
}

func (m *MemoryStore) wallet(userID types.ID) *walletState {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		w = &walletState{}
		m.wallets[userID] = w
	}
	return w
}

// apply locks every touched wallet in id order, checks that no balance goes
// negative, then writes all postings.
func (m *MemoryStore) apply(postings []Posting) ([]Transaction, error) {
	ids := make([]types.ID, 0, len(postings))
	seen := make(map[types.ID]bool, len(postings))
	for _, p := range postings {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[types.ID]*walletState, len(ids))
	for _, id := range ids {
		w := m.wallet(id)
		w.mu.Lock()
		defer w.mu.Unlock()
		locked[id] = w
	}

	next := make(map[types.ID]int64, len(ids))
	for id, w := range locked {
		next[id] = w.balance
	}
	for _, p := range postings {
		next[p.UserID] += p.signed()
		if next[p.UserID] < 0 {
			return nil, ErrInsufficientFunds
		}
	}

	now := m.now()
	txs := make([]Transaction, 0, len(postings))
	for _, p := range postings {
		w := locked[p.UserID]
		before := w.balance
		w.balance += p.signed()
		w.updatedAt = now
		tx := Transaction{
			ID:            uuid.NewString(),
			UserID:        p.UserID,
			Type:          p.Type,
			Amount:        types.Money{Amount: p.Amount.Amount, Currency: m.currency},
			BalanceBefore: types.Money{Amount: before, Currency: m.currency},
			BalanceAfter:  types.Money{Amount: w.balance, Currency: m.currency},
			RefType:       p.RefType,
			RefID:         p.RefID,
			Description:   p.Description,
			CreatedAt:     now,
		}
		w.txs = append(w.txs, tx)
		txs = append(txs, tx)
	}
	return txs, nil
}

func clonePayment(p *Payment) *Payment {
	cp := *p
	if p.RefundAmount != nil {
		v := *p.RefundAmount
		cp.RefundAmount = &v
	}
	if p.RefundedAt != nil {
		v := *p.RefundedAt
		cp.RefundedAt = &v
	}
	return &cp
}
