// README: Wallet ledger, payment records and the settlement inputs.
package payment

import (
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

type TxType string

const (
	TxCredit TxType = "credit"
	TxDebit  TxType = "debit"
)

type RefType string

const (
	RefRidePayment     RefType = "ride_payment"
	RefRideRefund      RefType = "ride_refund"
	RefWalletTopUp     RefType = "wallet_topup"
	RefAdminAdjustment RefType = "admin_adjustment"
	RefEarnings        RefType = "earnings"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type Wallet struct {
	UserID    types.ID    `json:"user_id"`
	Balance   types.Money `json:"balance"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Transaction is one signed ledger line. BalanceAfter of the newest line
// always equals the wallet balance.
type Transaction struct {
	ID            string      `json:"id"`
	UserID        types.ID    `json:"user_id"`
	Type          TxType      `json:"transaction_type"`
	Amount        types.Money `json:"amount"`
	BalanceBefore types.Money `json:"balance_before"`
	BalanceAfter  types.Money `json:"balance_after"`
	RefType       RefType     `json:"reference_type"`
	RefID         string      `json:"reference_id"`
	Description   string      `json:"description"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Payment struct {
	ID           string              `json:"id"`
	RideID       types.ID            `json:"ride_id"`
	RiderID      types.ID            `json:"rider_id"`
	DriverID     types.ID            `json:"driver_id"`
	Amount       types.Money         `json:"amount"`
	DriverShare  types.Money         `json:"driver_share"`
	Commission   types.Money         `json:"commission"`
	Method       types.PaymentMethod `json:"payment_method"`
	Status       Status              `json:"status"`
	GatewayTxnID string              `json:"gateway_transaction_id,omitempty"`
	RefundAmount *types.Money        `json:"refund_amount,omitempty"`
	RefundReason string              `json:"refund_reason,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	RefundedAt   *time.Time          `json:"refunded_at,omitempty"`
}

// Posting is a ledger movement the store applies inside one atomic write.
type Posting struct {
	UserID      types.ID
	Type        TxType
	Amount      types.Money
	RefType     RefType
	RefID       string
	Description string
}

// SettleRide carries what settlement needs from a completed ride.
type SettleRide struct {
	RideID   types.ID
	RiderID  types.ID
	DriverID types.ID
	Fare     types.Money
	Method   types.PaymentMethod
}

var (
	ErrPaymentNotFound   = apperr.New(apperr.KindNotFound, "payment not found")
	ErrAlreadySettled    = apperr.New(apperr.KindAlreadyProcessed, "ride already settled")
	ErrAlreadyRefunded   = apperr.New(apperr.KindAlreadyProcessed, "payment already refunded")
	ErrSettlementBusy    = apperr.New(apperr.KindInvalidState, "ride settlement in progress")
	ErrInsufficientFunds = apperr.New(apperr.KindInsufficientFunds, "insufficient wallet balance")
	ErrDeclined          = apperr.New(apperr.KindPaymentDeclined, "payment declined")
)

// signed returns the balance delta of p.
func (p Posting) signed() int64 {
	if p.Type == TxDebit {
		return -p.Amount.Amount
	}
	return p.Amount.Amount
}
