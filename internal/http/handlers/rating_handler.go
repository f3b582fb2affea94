package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/logger"
	"ridehail/internal/modules/rating"
	"ridehail/internal/types"
)

const maxRatingsLimit = 100

type RatingHandler struct {
	ratings *rating.Service
	log     logger.ILogger
}

func NewRatingHandler(ratings *rating.Service, log logger.ILogger) *RatingHandler {
	return &RatingHandler{ratings: ratings, log: log}
}

type rateReq struct {
	Rating   int    `json:"rating" binding:"required"`
	Feedback string `json:"feedback"`
}

func (h *RatingHandler) Submit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req rateReq
	if !bind(c, &req) {
		return
	}
	r, err := h.ratings.Submit(c.Request.Context(), rating.SubmitCommand{
		RideID:   id,
		RaterID:  middleware.CallerUID(c),
		Role:     middleware.CallerRole(c),
		Score:    req.Rating,
		Feedback: req.Feedback,
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

func (h *RatingHandler) CanRate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	e, err := h.ratings.CanRate(c.Request.Context(), id, middleware.CallerUID(c), middleware.CallerRole(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, e)
}

func (h *RatingHandler) MyStats(c *gin.Context) {
	st, err := h.ratings.Stats(c.Request.Context(), middleware.CallerUID(c), middleware.CallerRole(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (h *RatingHandler) ForRide(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.ratings.ForRide(c.Request.Context(), id, middleware.CallerUID(c), middleware.CallerRole(c))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"ratings": list})
}

// ForUser lists ratings a user received; ?role=rider selects those given by
// drivers, otherwise those given by riders.
func (h *RatingHandler) ForUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	role := types.Role(c.DefaultQuery("role", string(types.RoleDriver)))
	if role != types.RoleDriver && role != types.RoleRider {
		writeError(c, http.StatusBadRequest, "role must be driver or rider")
		return
	}
	limit, ok := queryLimit(c, 20, maxRatingsLimit)
	if !ok {
		return
	}
	list, err := h.ratings.Received(c.Request.Context(), id, role, limit)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"ratings": list})
}
