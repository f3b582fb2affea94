// README: Entry point; loads config, wires stores and services, runs the HTTP server and notification workers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"ridehail/internal/cache"
	"ridehail/internal/config"
	httptransport "ridehail/internal/http"
	"ridehail/internal/infra"
	"ridehail/internal/logger"
	"ridehail/internal/maps"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/matching"
	"ridehail/internal/modules/payment"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/rating"
	"ridehail/internal/modules/ride"
	"ridehail/internal/notification"
	"ridehail/internal/types"
)

const shutdownTimeout = 15 * time.Second

type stores struct {
	cache    cache.Cache
	index    location.Index
	history  location.HistoryStore
	drivers  driver.Store
	rides    ride.Store
	payments payment.Store
	ratings  rating.Store
	rates    pricing.Rates
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logger.ILogger) error {
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return err
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		return err
	}

	st, cleanup, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	sender, closeSender, err := newSender(ctx, cfg, app, log)
	if err != nil {
		return err
	}
	defer closeSender()
	dispatcher := notification.NewDispatcher(sender, cfg.Notification.Workers, cfg.Notification.QueueSize, log.With(logger.String("component", "notify")))

	var routes pricing.RouteProvider
	if cfg.Pricing.UseRoadRoutes {
		rs, err := maps.NewRouteService(cfg.Pricing.MapsAPIKey, "in")
		if err != nil {
			return err
		}
		routes = rs
	}

	locations := location.NewService(st.index, st.history, st.cache, cfg.Matching.StaleAfter, log)
	drivers := driver.NewService(st.drivers, locations, log)
	matcher := matching.NewService(locations, st.drivers, matching.NewStore(st.cache, cfg.Matching.CandidateTTL), cfg.Matching, log)
	pricingSvc := pricing.NewService(pricing.NewEstimator(st.rates), routes, cfg.Pricing.AvgSpeedKmh, log)
	payments := payment.NewEngine(st.payments, nil, cfg.Settlement, log)
	rides := ride.NewService(ride.Deps{
		Store:    st.rides,
		Pricing:  pricingSvc,
		Drivers:  drivers,
		Matcher:  matcher,
		Settler:  payments,
		Notifier: dispatcher,
		Cache:    st.cache,
		Log:      log,
	})
	ratings := rating.NewService(st.ratings, st.rides, drivers, log)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Rides:       rides,
		Drivers:     drivers,
		Payments:    payments,
		Ratings:     ratings,
		Verifier:    verifier,
		Log:         log,
		Currency:    cfg.Settlement.Currency,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", cfg.HTTP.Addr), logger.String("storage", cfg.DB.Storage))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func baseRates(cfg config.PricingConfig, currency string) pricing.Rates {
	rates := pricing.Rates{
		BaseFare:    cfg.BaseFare,
		PerKm:       cfg.PerKm,
		PerMinute:   cfg.PerMinute,
		Multipliers: make(map[types.RideClass]float64, len(cfg.Multipliers)),
		Currency:    currency,
	}
	for class, m := range cfg.Multipliers {
		rates.Multipliers[types.RideClass(class)] = m
	}
	return rates
}

// openStores returns in-process stores for the memory backend, otherwise
// PostgreSQL for records and Redis for the geo index and cache.
func openStores(ctx context.Context, cfg config.Config, log logger.ILogger) (stores, func(), error) {
	currency := cfg.Settlement.Currency
	rates := baseRates(cfg.Pricing, currency)

	if cfg.DB.Storage == config.StorageMemory {
		log.Warning("using in-memory storage; state is lost on restart")
		return stores{
			cache:    cache.NewMemoryCache(),
			index:    location.NewMemoryIndex(),
			history:  location.NewMemoryHistory(0),
			drivers:  driver.NewMemoryStore(),
			rides:    ride.NewMemoryStore(),
			payments: payment.NewMemoryStore(currency),
			ratings:  rating.NewMemoryStore(),
			rates:    rates,
		}, func() {}, nil
	}

	if err := infra.Migrate(cfg.DB.DSN, cfg.DB.MigrationsDir, log); err != nil {
		return stores{}, nil, err
	}
	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return stores{}, nil, err
	}
	rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		db.Close()
		return stores{}, nil, err
	}
	cleanup := func() {
		_ = rdb.Close()
		db.Close()
	}

	rates = loadRates(ctx, db, rates, log)
	return stores{
		cache:    cache.NewRedisCache(rdb),
		index:    location.NewRedisIndex(rdb),
		history:  location.NewStore(db),
		drivers:  driver.NewPGStore(db, currency),
		rides:    ride.NewPGStore(db, currency),
		payments: payment.NewPGStore(db, currency),
		ratings:  rating.NewPGStore(db),
		rates:    rates,
	}, cleanup, nil
}

func loadRates(ctx context.Context, db *pgxpool.Pool, base pricing.Rates, log logger.ILogger) pricing.Rates {
	rates, err := pricing.NewStore(db).LoadRates(ctx, base)
	if err != nil {
		log.Warning("load fare rates failed, using configured tariff", logger.Error(err))
		return base
	}
	return rates
}

func newSender(ctx context.Context, cfg config.Config, app *firebase.App, log logger.ILogger) (notification.Sender, func(), error) {
	switch cfg.Notification.Sender {
	case "amqp":
		mq, err := infra.NewRabbitMQ(cfg.Notification.AMQPURL, cfg.Notification.Exchange, log)
		if err != nil {
			return nil, nil, err
		}
		return notification.NewAMQPSender(mq.Channel, cfg.Notification.Exchange), func() { _ = mq.Close() }, nil
	case "fcm":
		client, err := infra.NewFirebaseMessaging(ctx, app)
		if err != nil {
			return nil, nil, err
		}
		return notification.NewFCMSender(client), func() {}, nil
	default:
		return notification.NewLogSender(log), func() {}, nil
	}
}
