// README: Ride handlers for booking, lifecycle transitions, tracking and payment.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/logger"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type RideHandler struct {
	rides    *ride.Service
	currency string
	log      logger.ILogger
}

func NewRideHandler(rides *ride.Service, currency string, log logger.ILogger) *RideHandler {
	return &RideHandler{rides: rides, currency: currency, log: log}
}

type placeReq struct {
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Address string   `json:"address"`
}

func (p placeReq) place() ride.Place {
	return ride.Place{Lat: *p.Lat, Lng: *p.Lng, Address: p.Address}
}

type bookReq struct {
	Pickup        placeReq `json:"pickup"`
	Drop          placeReq `json:"drop"`
	Class         string   `json:"ride_class"`
	PaymentMethod string   `json:"payment_method"`
}

func (h *RideHandler) Book(c *gin.Context) {
	var req bookReq
	if !bind(c, &req) {
		return
	}
	r, err := h.rides.BookRide(c.Request.Context(), ride.BookCommand{
		RiderID:       middleware.CallerUID(c),
		Pickup:        req.Pickup.place(),
		Drop:          req.Drop.place(),
		Class:         types.RideClass(req.Class),
		PaymentMethod: types.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *RideHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.GetRide(c.Request.Context(), id, middleware.CallerUID(c), middleware.CallerRole(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *RideHandler) Accept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.AcceptRide(c.Request.Context(), middleware.CallerUID(c), id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *RideHandler) Start(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.StartRide(c.Request.Context(), middleware.CallerUID(c), id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

type completeReq struct {
	ActualDistanceKm *float64 `json:"actual_distance_km"`
}

func (h *RideHandler) Complete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req completeReq
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	r, err := h.rides.CompleteRide(c.Request.Context(), ride.CompleteCommand{
		RideID:           id,
		DriverID:         middleware.CallerUID(c),
		ActualDistanceKm: req.ActualDistanceKm,
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *RideHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req cancelReq
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	r, err := h.rides.CancelRide(c.Request.Context(), ride.CancelCommand{
		RideID:  id,
		ActorID: middleware.CallerUID(c),
		Role:    middleware.CallerRole(c),
		Reason:  req.Reason,
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *RideHandler) Track(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req pointReq
	if !bind(c, &req) {
		return
	}
	p, err := h.rides.TrackLocation(c.Request.Context(), ride.TrackCommand{
		RideID:   id,
		DriverID: middleware.CallerUID(c),
		Point:    req.point(),
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

func (h *RideHandler) LastLocation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if _, err := h.rides.GetRide(c.Request.Context(), id, middleware.CallerUID(c), middleware.CallerRole(c)); err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	p, found, err := h.rides.LastLocation(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	if !found {
		writeError(c, http.StatusNotFound, "no recent location for ride")
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *RideHandler) Pay(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.rides.Pay(c.Request.Context(), middleware.CallerUID(c), id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *RideHandler) Payment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.rides.Payment(c.Request.Context(), id, middleware.CallerUID(c), middleware.CallerRole(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type refundReq struct {
	Amount float64 `json:"amount" binding:"required"`
	Reason string  `json:"reason" binding:"required"`
}

func (h *RideHandler) Refund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req refundReq
	if !bind(c, &req) {
		return
	}
	p, err := h.rides.Refund(c.Request.Context(), middleware.CallerRole(c), id, majorToMoney(req.Amount, h.currency), req.Reason)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}
