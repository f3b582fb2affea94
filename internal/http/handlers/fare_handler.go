package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/logger"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type FareHandler struct {
	rides *ride.Service
	log   logger.ILogger
}

func NewFareHandler(rides *ride.Service, log logger.ILogger) *FareHandler {
	return &FareHandler{rides: rides, log: log}
}

type estimateReq struct {
	Pickup pointReq `json:"pickup"`
	Drop   pointReq `json:"drop"`
	Class  string   `json:"ride_class"`
}

func (h *FareHandler) Estimate(c *gin.Context) {
	var req estimateReq
	if !bind(c, &req) {
		return
	}
	q, err := h.rides.EstimateFare(c.Request.Context(), req.Pickup.point(), req.Drop.point(), types.RideClass(req.Class))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}
