// README: Base handler utilities (JSON helpers, domain error mapping).
package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridehail/internal/apperr"
	"ridehail/internal/http/middleware"
	"ridehail/internal/logger"
	"ridehail/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type pointReq struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

func (p pointReq) point() types.Point {
	return types.Point{Lat: *p.Lat, Lng: *p.Lng}
}

// isValidID accepts ride ids as generated plus plain alphanumeric ids.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindAlreadyProcessed, apperr.KindDriverUnavailable:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindInsufficientFunds, apperr.KindPaymentDeclined:
		return http.StatusPaymentRequired
	case apperr.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeDomainError(c *gin.Context, log logger.ILogger, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			logger.String("request_id", middleware.GetRequestID(c)),
			logger.String("path", c.FullPath()),
			logger.Error(err),
		)
		writeError(c, status, "internal error")
		return
	}
	writeJSON(c, status, errorResponse{Error: err.Error(), Kind: string(kind)})
}

// pathID reads the :id parameter, answering 400 when it is malformed.
func pathID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return types.ID(id), true
}

// queryLimit reads ?limit=, falling back to def and answering 400 outside 1..upper.
func queryLimit(c *gin.Context, def, upper int) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > upper {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", upper))
		return 0, false
	}
	return n, true
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func majorToMoney(amount float64, currency string) types.Money {
	return types.Money{Amount: int64(math.Round(amount * 100)), Currency: currency}
}
