package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"ridehail/internal/apperr"
	"ridehail/internal/config"
	"ridehail/internal/logger"
	"ridehail/internal/types"
)

func inr(major int64) types.Money { return types.FromMajor(major, types.DefaultCurrency) }

func newTestEngine(t *testing.T, gw Gateway) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(types.DefaultCurrency)
	cfg := config.SettlementConfig{CommissionRate: 0.10, Currency: types.DefaultCurrency}
	return NewEngine(store, gw, cfg, logger.Nop()), store
}

func seed(t *testing.T, store *MemoryStore, user types.ID, amount types.Money) {
	t.Helper()
	_, err := store.Post(context.Background(), []Posting{{
		UserID: user, Type: TxCredit, Amount: amount, RefType: RefAdminAdjustment, RefID: "seed",
	}})
	if err != nil {
		t.Fatalf("seed wallet %s: %v", user, err)
	}
}

func balance(t *testing.T, e *Engine, user types.ID) int64 {
	t.Helper()
	w, err := e.Wallet(context.Background(), user)
	if err != nil {
		t.Fatalf("wallet %s: %v", user, err)
	}
	return w.Balance.Amount
}

type declineGateway struct{}

func (declineGateway) Charge(context.Context, ChargeRequest) (string, error) {
	return "", ErrDeclined
}

// countingGateway records every charge and declines the first g.declines of them.
type countingGateway struct {
	mu       sync.Mutex
	declines int
	keys     []string
}

func (g *countingGateway) Charge(_ context.Context, req ChargeRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys = append(g.keys, req.IdempotencyKey)
	if len(g.keys) <= g.declines {
		return "", ErrDeclined
	}
	return fmt.Sprintf("txn_%d", len(g.keys)), nil
}

func (g *countingGateway) charges() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.keys...)
}

// settledOrBusy reports whether err is what a losing concurrent settle returns.
func settledOrBusy(err error) bool {
	return errors.Is(err, apperr.ErrAlreadyProcessed) || errors.Is(err, ErrSettlementBusy)
}

func TestSplit(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	tests := []struct {
		fare, commission, share int64
	}{
		{40600, 4060, 36540},
		{5000, 500, 4500},
		{12345, 1235, 11110},
		{1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.fare), func(t *testing.T) {
			c, s := e.Split(types.Money{Amount: tt.fare, Currency: "INR"})
			if c.Amount != tt.commission || s.Amount != tt.share {
				t.Fatalf("Split(%d) = %d/%d, want %d/%d", tt.fare, c.Amount, s.Amount, tt.commission, tt.share)
			}
			if c.Amount+s.Amount != tt.fare {
				t.Fatalf("split does not add up")
			}
		})
	}
}

func TestSettle_Cash(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	p, err := e.Settle(ctx, SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(406), Method: types.MethodCash})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if p.Status != StatusCompleted || p.DriverShare.Amount != 36540 || p.Commission.Amount != 4060 {
		t.Fatalf("unexpected payment: %+v", p)
	}
	if got := balance(t, e, "driver"); got != 36540 {
		t.Fatalf("driver balance = %d, want 36540", got)
	}
	if got := balance(t, e, "rider"); got != 0 {
		t.Fatalf("cash ride must not touch rider wallet, got %d", got)
	}
}

func TestSettle_Wallet(t *testing.T) {
	e, store := newTestEngine(t, nil)
	ctx := context.Background()
	seed(t, store, "rider", inr(500))

	if _, err := e.Settle(ctx, SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(406), Method: types.MethodWallet}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := balance(t, e, "rider"); got != 9400 {
		t.Fatalf("rider balance = %d, want 9400", got)
	}
	if got := balance(t, e, "driver"); got != 36540 {
		t.Fatalf("driver balance = %d, want 36540", got)
	}

	hist, err := e.History(ctx, "rider", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].RefType != RefRidePayment || hist[0].Type != TxDebit {
		t.Fatalf("expected ride payment as newest entry, got %+v", hist)
	}
	if hist[0].BalanceBefore.Amount != 50000 || hist[0].BalanceAfter.Amount != 9400 {
		t.Fatalf("unexpected balances on debit: %+v", hist[0])
	}
}

func TestSettle_InsufficientFundsWritesNothing(t *testing.T) {
	e, store := newTestEngine(t, nil)
	ctx := context.Background()
	seed(t, store, "rider", inr(100))

	_, err := e.Settle(ctx, SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(406), Method: types.MethodWallet})
	if !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := balance(t, e, "rider"); got != 10000 {
		t.Fatalf("rider balance changed to %d", got)
	}
	if got := balance(t, e, "driver"); got != 0 {
		t.Fatalf("driver credited on failed settlement: %d", got)
	}
	if p, err := e.Payment(ctx, "R1"); err != nil || p.Status != StatusFailed {
		t.Fatalf("expected failed payment after failed settlement, got %+v, %v", p, err)
	}
	if _, err := e.Refund(ctx, "R1", inr(1), "x"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("refund of failed payment: got %v", err)
	}

	// Topping up lets the rider pay later.
	seed(t, store, "rider", inr(400))
	if _, err := e.Settle(ctx, SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(406), Method: types.MethodWallet}); err != nil {
		t.Fatalf("retry settle: %v", err)
	}
}

func TestSettle_CardDeclined(t *testing.T) {
	e, _ := newTestEngine(t, declineGateway{})
	_, err := e.Settle(context.Background(), SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(200), Method: types.MethodCard})
	if !errors.Is(err, apperr.ErrPaymentDeclined) {
		t.Fatalf("expected declined, got %v", err)
	}
	if got := balance(t, e, "driver"); got != 0 {
		t.Fatalf("driver credited on decline: %d", got)
	}
}

func TestSettle_CardApproved(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	p, err := e.Settle(context.Background(), SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(200), Method: types.MethodUPI})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if p.GatewayTxnID == "" {
		t.Fatalf("expected gateway transaction id")
	}
}

func TestSettle_Idempotent(t *testing.T) {
	e, store := newTestEngine(t, nil)
	ctx := context.Background()
	seed(t, store, "rider", inr(5000))

	const attempts = 10
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.Settle(ctx, SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(406), Method: types.MethodWallet})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !settledOrBusy(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one settlement, got %d", success)
	}
	if got := balance(t, e, "rider"); got != 500000-40600 {
		t.Fatalf("rider debited more than once: %d", got)
	}
}

func TestSettle_ConcurrentCardRetryChargesOnce(t *testing.T) {
	gw := &countingGateway{declines: 1}
	e, _ := newTestEngine(t, gw)
	ctx := context.Background()
	ride := SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(200), Method: types.MethodCard}

	if _, err := e.Settle(ctx, ride); !errors.Is(err, apperr.ErrPaymentDeclined) {
		t.Fatalf("expected first charge declined, got %v", err)
	}

	const attempts = 5
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.Settle(ctx, ride)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !settledOrBusy(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one settlement, got %d", success)
	}
	keys := gw.charges()
	if len(keys) != 2 {
		t.Fatalf("gateway charged %d times, want 2 (decline + one retry)", len(keys))
	}
	for _, k := range keys {
		if k != "ride_R1" {
			t.Fatalf("idempotency key = %q, want ride_R1", k)
		}
	}
	p, err := e.Payment(ctx, "R1")
	if err != nil || p.Status != StatusCompleted || p.GatewayTxnID != "txn_2" {
		t.Fatalf("unexpected payment after retry: %+v, %v", p, err)
	}
	if got := balance(t, e, "driver"); got != 18000 {
		t.Fatalf("driver balance = %d, want 18000", got)
	}
}

func TestSettle_PendingReservationBlocksSecondCharge(t *testing.T) {
	gw := &countingGateway{}
	e, store := newTestEngine(t, gw)
	ctx := context.Background()
	if err := store.Reserve(ctx, &Payment{RideID: "R1", RiderID: "rider", DriverID: "driver", Amount: inr(200), Method: types.MethodCard}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, err := e.Settle(ctx, SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(200), Method: types.MethodCard})
	if !errors.Is(err, ErrSettlementBusy) || !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected settlement in progress, got %v", err)
	}
	if n := len(gw.charges()); n != 0 {
		t.Fatalf("gateway charged %d times while reservation pending", n)
	}
}

func TestWalletConservationUnderConcurrency(t *testing.T) {
	e, store := newTestEngine(t, nil)
	ctx := context.Background()
	users := []types.ID{"u_a", "u_b", "u_c", "u_d"}
	for _, u := range users {
		seed(t, store, u, inr(1000))
	}
	const total = 4 * 100000

	const rides = 200
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < rides; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rider := users[i%len(users)]
			drv := users[(i+1)%len(users)]
			_, err := e.Settle(ctx, SettleRide{
				RideID:   types.ID(fmt.Sprintf("R%d", i)),
				RiderID:  rider,
				DriverID: drv,
				Fare:     inr(int64(50 + i%7)),
				Method:   types.MethodWallet,
			})
			if err != nil && !errors.Is(err, apperr.ErrInsufficientFunds) {
				t.Errorf("settle %d: %v", i, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	var sum, commission int64
	for _, u := range users {
		sum += balance(t, e, u)
	}
	for i := 0; i < rides; i++ {
		p, err := e.Payment(ctx, types.ID(fmt.Sprintf("R%d", i)))
		if err == nil && p.Status == StatusCompleted {
			commission += p.Commission.Amount
		}
	}
	if sum+commission != total {
		t.Fatalf("money not conserved: wallets %d + commission %d != %d", sum, commission, total)
	}

	for _, u := range users {
		hist, err := e.History(ctx, u, 0)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(hist) > 0 && hist[0].BalanceAfter.Amount != balance(t, e, u) {
			t.Fatalf("ledger tail for %s does not match balance", u)
		}
		var running int64
		for i := len(hist) - 1; i >= 0; i-- {
			tx := hist[i]
			if tx.BalanceBefore.Amount != running {
				t.Fatalf("ledger gap for %s at %s", u, tx.ID)
			}
			if tx.Type == TxDebit {
				running -= tx.Amount.Amount
			} else {
				running += tx.Amount.Amount
			}
			if tx.BalanceAfter.Amount != running || running < 0 {
				t.Fatalf("bad running balance for %s at %s", u, tx.ID)
			}
		}
	}
}

func TestTopUp(t *testing.T) {
	tests := []struct {
		name    string
		amount  types.Money
		method  types.PaymentMethod
		wantErr error
	}{
		{"ok upi", inr(500), types.MethodUPI, nil},
		{"ok default method", inr(1), "", nil},
		{"too small", types.Money{Amount: 50, Currency: "INR"}, types.MethodCard, apperr.ErrValidation},
		{"too large", inr(50001), types.MethodCard, apperr.ErrValidation},
		{"cash not allowed", inr(100), types.MethodCash, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, nil)
			tx, err := e.TopUp(context.Background(), "rider", tt.amount, tt.method)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("top up: %v", err)
			}
			if tx.RefType != RefWalletTopUp || tx.BalanceAfter.Amount != tt.amount.Amount {
				t.Fatalf("unexpected transaction: %+v", tx)
			}
		})
	}
}

func TestTopUp_Declined(t *testing.T) {
	e, _ := newTestEngine(t, declineGateway{})
	if _, err := e.TopUp(context.Background(), "rider", inr(100), types.MethodCard); !errors.Is(err, apperr.ErrPaymentDeclined) {
		t.Fatalf("expected declined, got %v", err)
	}
	if got := balance(t, e, "rider"); got != 0 {
		t.Fatalf("declined top-up credited wallet: %d", got)
	}
}

func TestRefund(t *testing.T) {
	e, store := newTestEngine(t, nil)
	ctx := context.Background()
	seed(t, store, "rider", inr(500))
	if _, err := e.Settle(ctx, SettleRide{RideID: "R1", RiderID: "rider", DriverID: "driver", Fare: inr(406), Method: types.MethodWallet}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if _, err := e.Refund(ctx, "R1", inr(407), "overcharge"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("refund above amount: got %v", err)
	}
	if _, err := e.Refund(ctx, "missing", inr(1), "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("refund unknown ride: got %v", err)
	}

	p, err := e.Refund(ctx, "R1", inr(100), "detour")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if p.Status != StatusRefunded || p.RefundAmount == nil || p.RefundAmount.Amount != 10000 {
		t.Fatalf("unexpected refunded payment: %+v", p)
	}
	if got := balance(t, e, "rider"); got != 9400+10000 {
		t.Fatalf("rider balance after refund = %d", got)
	}
	if _, err := e.Refund(ctx, "R1", inr(100), "again"); !errors.Is(err, apperr.ErrAlreadyProcessed) {
		t.Fatalf("second refund: got %v", err)
	}
}
