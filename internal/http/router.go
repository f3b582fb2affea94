// README: HTTP router registration (gin) with auth, request logging and CORS.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ridehail/internal/http/handlers"
	"ridehail/internal/http/middleware"
	"ridehail/internal/infra"
	"ridehail/internal/logger"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/payment"
	"ridehail/internal/modules/rating"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type RouterDeps struct {
	Rides       *ride.Service
	Drivers     *driver.Service
	Payments    *payment.Engine
	Ratings     *rating.Service
	Verifier    infra.TokenVerifier
	Log         logger.ILogger
	Currency    string
	CORSOrigins []string
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(d.Log), middleware.Recovery(d.Log), corsFor(d.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	fares := handlers.NewFareHandler(d.Rides, d.Log)
	rides := handlers.NewRideHandler(d.Rides, d.Currency, d.Log)
	drivers := handlers.NewDriverHandler(d.Drivers, d.Rides, d.Log)
	wallet := handlers.NewWalletHandler(d.Payments, d.Currency, d.Log)
	ratings := handlers.NewRatingHandler(d.Ratings, d.Log)

	driverOnly := middleware.RequireRole(types.RoleDriver)
	riderOnly := middleware.RequireRole(types.RoleRider)

	api := r.Group("/api", middleware.Auth(d.Verifier))
	{
		api.POST("/fares/estimate", fares.Estimate)

		api.POST("/rides", riderOnly, rides.Book)
		api.GET("/rides/:id", rides.Get)
		api.GET("/rides/:id/location", rides.LastLocation)
		api.POST("/rides/:id/accept", driverOnly, rides.Accept)
		api.POST("/rides/:id/start", driverOnly, rides.Start)
		api.POST("/rides/:id/complete", driverOnly, rides.Complete)
		api.POST("/rides/:id/cancel", rides.Cancel)
		api.POST("/rides/:id/track", driverOnly, rides.Track)
		api.POST("/rides/:id/pay", riderOnly, rides.Pay)
		api.GET("/rides/:id/payment", rides.Payment)
		api.POST("/rides/:id/refund", middleware.RequireRole(types.RoleAdmin), rides.Refund)
		api.POST("/rides/:id/rating", ratings.Submit)
		api.GET("/rides/:id/rating/eligibility", ratings.CanRate)
		api.GET("/rides/:id/ratings", ratings.ForRide)

		api.GET("/drivers/me", driverOnly, drivers.Me)
		api.PUT("/drivers/me/location", driverOnly, drivers.UpdateLocation)
		api.POST("/drivers/me/online", driverOnly, drivers.ToggleOnline)
		api.POST("/drivers/me/available", driverOnly, drivers.ToggleAvailable)
		api.GET("/drivers/me/locations", driverOnly, drivers.Locations)
		api.GET("/drivers/me/earnings", driverOnly, drivers.Earnings)
		api.GET("/drivers/me/stats", driverOnly, drivers.Stats)

		api.GET("/wallet", wallet.Balance)
		api.GET("/wallet/transactions", wallet.Transactions)
		api.POST("/wallet/topup", wallet.TopUp)

		api.GET("/ratings/me", ratings.MyStats)
		api.GET("/ratings/user/:id", ratings.ForUser)
	}
	return r
}

func corsFor(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
