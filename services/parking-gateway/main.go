package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/round-cube/parking-pay/menu"
	"github.com/round-cube/parking-pay/messaging"
	"github.com/round-cube/parking-pay/payments"
	"github.com/round-cube/parking-pay/shared"
	"github.com/round-cube/parking-pay/store"
	log "github.com/sirupsen/logrus"
)

func main() {
	settings, err := newSettings()
	shared.InitLog(settings.logLevel)
	shared.PanicOnError(err, "failed to read settings")
	gin.SetMode(settings.ginMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := http.NewServeMux()
	metrics.Handle(settings.promPath, promhttp.Handler())
	go http.ListenAndServe(fmt.Sprintf(":%d", settings.promPort), metrics)
	log.Infof("prometheus metrics available at http://localhost:%d%s", settings.promPort, settings.promPath)

	loc, err := time.LoadLocation(settings.timezone)
	shared.PanicOnError(err, "failed to load timezone")

	ridgeways, err := store.NewPool(ctx, settings.ridgewaysDBURL, int32(settings.dbMaxConns))
	shared.PanicOnError(err, "failed to connect to ridgeways database")
	defer ridgeways.Close()

	rng, err := store.NewPool(ctx, settings.rngDBURL, int32(settings.dbMaxConns))
	shared.PanicOnError(err, "failed to connect to rng database")
	defer rng.Close()

	var trigger payments.Trigger = payments.NewMpesaClient(
		settings.mpesaPushURL,
		time.Duration(settings.mpesaTimeoutS)*time.Second,
		settings.mpesaInsecure,
	)
	if settings.redisURL != "" {
		opt, err := redis.ParseURL(settings.redisURL)
		shared.PanicOnError(err, "failed to parse redis URL")
		rds := redis.NewClient(opt)
		defer rds.Close()
		ttl := time.Duration(settings.paymentLockTTLS) * time.Second
		trigger = payments.NewGuard(trigger, payments.NewRedisLocker(rds, ttl))
		log.Info("payment triggers serialized per plate through redis")
	}

	var events menu.EventPublisher
	if settings.rmqURL != "" {
		rmq, err := shared.NewRMQueue(settings.rmqURL, settings.paymentsQueue)
		shared.PanicOnError(err, "failed to connect to RMQ")
		defer rmq.Close()
		events = rmq
	}

	engine := menu.NewEngine(
		menu.Config{
			Tariff:        settings.tariff,
			LookupTimeout: time.Duration(settings.lookupTimeoutMs) * time.Millisecond,
		},
		menu.Deps{
			Vehicles: store.New(ridgeways, rng, loc),
			Payments: trigger,
			Events:   events,
			Logger:   log.StandardLogger(),
		},
	)

	server := NewServer(engine, messaging.NewClient(settings.infobip))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", settings.httpPort),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("parking gateway listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("failed to shut down http server")
	}
}
