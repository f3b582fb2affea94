package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/logger"
	"ridehail/internal/modules/payment"
	"ridehail/internal/types"
)

const maxHistoryLimit = 100

type WalletHandler struct {
	payments *payment.Engine
	currency string
	log      logger.ILogger
}

func NewWalletHandler(payments *payment.Engine, currency string, log logger.ILogger) *WalletHandler {
	return &WalletHandler{payments: payments, currency: currency, log: log}
}

func (h *WalletHandler) Balance(c *gin.Context) {
	w, err := h.payments.Wallet(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, w)
}

func (h *WalletHandler) Transactions(c *gin.Context) {
	limit, ok := queryLimit(c, 20, maxHistoryLimit)
	if !ok {
		return
	}
	txs, err := h.payments.History(c.Request.Context(), middleware.CallerUID(c), limit)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"transactions": txs})
}

type topUpReq struct {
	Amount        float64 `json:"amount" binding:"required"`
	PaymentMethod string  `json:"payment_method"`
}

func (h *WalletHandler) TopUp(c *gin.Context) {
	var req topUpReq
	if !bind(c, &req) {
		return
	}
	tx, err := h.payments.TopUp(c.Request.Context(), middleware.CallerUID(c),
		majorToMoney(req.Amount, h.currency), types.PaymentMethod(req.PaymentMethod))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, tx)
}
