// README: Driver handlers for profile, presence toggles, location updates and earnings.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/logger"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/ride"
)

const maxLocationLimit = 500

type DriverHandler struct {
	drivers *driver.Service
	rides   *ride.Service
	log     logger.ILogger
}

func NewDriverHandler(drivers *driver.Service, rides *ride.Service, log logger.ILogger) *DriverHandler {
	return &DriverHandler{drivers: drivers, rides: rides, log: log}
}

func (h *DriverHandler) Me(c *gin.Context) {
	d, err := h.drivers.Get(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DriverHandler) ToggleOnline(c *gin.Context) {
	d, err := h.drivers.ToggleOnline(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"is_online": d.Online, "is_available": d.Available})
}

func (h *DriverHandler) ToggleAvailable(c *gin.Context) {
	d, err := h.drivers.ToggleAvailable(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"is_online": d.Online, "is_available": d.Available})
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req pointReq
	if !bind(c, &req) {
		return
	}
	snap, err := h.drivers.UpdateLocation(c.Request.Context(), middleware.CallerUID(c), req.point())
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

func (h *DriverHandler) Locations(c *gin.Context) {
	limit, ok := queryLimit(c, 100, maxLocationLimit)
	if !ok {
		return
	}
	snaps, err := h.drivers.LocationHistory(c.Request.Context(), middleware.CallerUID(c), limit)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"locations": snaps})
}

// Earnings answers ?period=today|week|month, defaulting to week.
func (h *DriverHandler) Earnings(c *gin.Context) {
	e, err := h.rides.DriverEarnings(c.Request.Context(), middleware.CallerUID(c), ride.Period(c.Query("period")))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, e)
}

func (h *DriverHandler) Stats(c *gin.Context) {
	st, err := h.rides.DriverStats(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}
