// README: Settlement engine splits fares, posts wallet movements and handles top-ups and refunds.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/config"
	"ridehail/internal/logger"
	"ridehail/internal/types"
)

const (
	minTopUpMajor = 1
	maxTopUpMajor = 50000
)

type Engine struct {
	store    Store
	gateway  Gateway
	rate     float64
	currency string
	log      logger.ILogger
	now      func() time.Time
}

func NewEngine(store Store, gateway Gateway, cfg config.SettlementConfig, log logger.ILogger) *Engine {
	if gateway == nil {
		gateway = OfflineGateway{}
	}
	currency := cfg.Currency
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return &Engine{
		store:    store,
		gateway:  gateway,
		rate:     cfg.CommissionRate,
		currency: currency,
		log:      log,
		now:      time.Now,
	}
}

// Split returns the platform commission and the driver's share of fare.
// The two always add back up to fare.
func (e *Engine) Split(fare types.Money) (commission, driverShare types.Money) {
	c := int64(math.Round(float64(fare.Amount) * e.rate))
	commission = types.Money{Amount: c, Currency: fare.Currency}
	driverShare = types.Money{Amount: fare.Amount - c, Currency: fare.Currency}
	return commission, driverShare
}

func (e *Engine) Settle(ctx context.Context, r SettleRide) (*Payment, error) {
	if r.RideID == "" || r.RiderID == "" || r.DriverID == "" {
		return nil, apperr.Validation("ride", "rider and driver are required")
	}
	if r.Fare.Amount <= 0 {
		return nil, apperr.Validation("fare", "must be positive")
	}
	if !r.Method.Valid() {
		return nil, apperr.Validation("payment_method", "unknown method")
	}
	commission, share := e.Split(r.Fare)
	p := &Payment{
		RideID:      r.RideID,
		RiderID:     r.RiderID,
		DriverID:    r.DriverID,
		Amount:      r.Fare,
		DriverShare: share,
		Commission:  commission,
		Method:      r.Method,
		Status:      StatusPending,
		CreatedAt:   e.now(),
	}
	// The reservation is the only uniqueness guard; nothing is charged before it.
	if err := e.store.Reserve(ctx, p); err != nil {
		return nil, err
	}

	earnings := Posting{
		UserID:      r.DriverID,
		Type:        TxCredit,
		Amount:      share,
		RefType:     RefEarnings,
		RefID:       string(r.RideID),
		Description: "Earnings for ride " + string(r.RideID),
	}
	var postings []Posting
	switch r.Method {
	case types.MethodWallet:
		postings = []Posting{{
			UserID:      r.RiderID,
			Type:        TxDebit,
			Amount:      r.Fare,
			RefType:     RefRidePayment,
			RefID:       string(r.RideID),
			Description: "Payment for ride " + string(r.RideID),
		}, earnings}
	case types.MethodCard, types.MethodUPI:
		txnID, err := e.gateway.Charge(ctx, ChargeRequest{
			RideID:         r.RideID,
			UserID:         r.RiderID,
			Amount:         r.Fare,
			Method:         r.Method,
			IdempotencyKey: "ride_" + string(r.RideID),
		})
		if err != nil {
			e.release(ctx, r.RideID)
			if errors.Is(err, apperr.ErrPaymentDeclined) {
				return nil, err
			}
			return nil, apperr.Wrap(apperr.KindPaymentDeclined, err, "gateway charge failed")
		}
		p.GatewayTxnID = txnID
		postings = []Posting{earnings}
	default:
		postings = []Posting{earnings}
	}

	if _, err := e.store.Record(ctx, p, postings); err != nil {
		if errors.Is(err, apperr.ErrAlreadyProcessed) {
			return nil, err
		}
		e.release(ctx, r.RideID)
		if !errors.Is(err, apperr.ErrInsufficientFunds) {
			err = fmt.Errorf("record settlement for ride %s: %w", r.RideID, err)
		}
		return nil, err
	}
	e.log.Info("ride settled",
		logger.String("ride_id", string(r.RideID)),
		logger.String("method", string(r.Method)),
		logger.Int64("fare", r.Fare.Amount),
		logger.Int64("driver_share", share.Amount),
		logger.Int64("commission", commission.Amount),
	)
	return p, nil
}

// release marks a pending reservation failed even when ctx is already done.
func (e *Engine) release(ctx context.Context, rideID types.ID) {
	if err := e.store.MarkFailed(context.WithoutCancel(ctx), rideID); err != nil {
		e.log.Error("release payment reservation",
			logger.String("ride_id", string(rideID)),
			logger.Error(err),
		)
	}
}

func (e *Engine) TopUp(ctx context.Context, userID types.ID, amount types.Money, method types.PaymentMethod) (*Transaction, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id", "is required")
	}
	if amount.Amount < minTopUpMajor*100 || amount.Amount > maxTopUpMajor*100 {
		return nil, apperr.Validation("amount", fmt.Sprintf("must be between %d and %d", minTopUpMajor, maxTopUpMajor))
	}
	if method == "" {
		method = types.MethodUPI
	}
	if method != types.MethodCard && method != types.MethodUPI {
		return nil, apperr.Validation("payment_method", "top-up requires card or upi")
	}
	txnID, err := e.gateway.Charge(ctx, ChargeRequest{UserID: userID, Amount: amount, Method: method})
	if err != nil {
		if errors.Is(err, apperr.ErrPaymentDeclined) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindPaymentDeclined, err, "gateway charge failed")
	}
	txs, err := e.store.Post(ctx, []Posting{{
		UserID:      userID,
		Type:        TxCredit,
		Amount:      types.Money{Amount: amount.Amount, Currency: e.currency},
		RefType:     RefWalletTopUp,
		RefID:       txnID,
		Description: "Wallet top-up via " + string(method),
	}})
	if err != nil {
		return nil, fmt.Errorf("post top-up: %w", err)
	}
	return &txs[0], nil
}

// Refund credits the rider's wallet with amount and marks the ride's payment
// refunded. Only one refund per payment is accepted.
func (e *Engine) Refund(ctx context.Context, rideID types.ID, amount types.Money, reason string) (*Payment, error) {
	p, err := e.store.GetPayment(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusRefunded {
		return nil, ErrAlreadyRefunded
	}
	if p.Status != StatusCompleted {
		return nil, apperr.InvalidState("payment for ride %s is %s", rideID, p.Status)
	}
	if amount.Amount <= 0 || amount.Amount > p.Amount.Amount {
		return nil, apperr.Validation("amount", "must be positive and not exceed the paid amount")
	}
	if reason == "" {
		return nil, apperr.Validation("reason", "is required")
	}
	out, err := e.store.MarkRefunded(ctx, rideID, amount, reason, e.now(), Posting{
		UserID:      p.RiderID,
		Type:        TxCredit,
		Amount:      amount,
		RefType:     RefRideRefund,
		RefID:       string(rideID),
		Description: "Refund for ride " + string(rideID),
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("ride refunded", logger.String("ride_id", string(rideID)), logger.Int64("amount", amount.Amount))
	return out, nil
}

func (e *Engine) Payment(ctx context.Context, rideID types.ID) (*Payment, error) {
	return e.store.GetPayment(ctx, rideID)
}

func (e *Engine) Wallet(ctx context.Context, userID types.ID) (*Wallet, error) {
	return e.store.Wallet(ctx, userID)
}

func (e *Engine) History(ctx context.Context, userID types.ID, limit int) ([]Transaction, error) {
	return e.store.Transactions(ctx, userID, limit)
}
