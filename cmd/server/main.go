package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"lending/internal/calculator"
	"lending/internal/config"
	"lending/internal/db"
	"lending/internal/domain"
	"lending/internal/events"
	"lending/internal/handlers"
	"lending/internal/logging"
	"lending/internal/services"
	"lending/internal/store"
	"lending/internal/telemetry"
	"lending/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "json").WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "lending",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to set up tracing")
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	isolation, err := db.ParseIsolation(cfg.DatabaseIsolation)
	if err != nil {
		log.WithError(err).Fatal("invalid database isolation")
	}
	txOpts := db.DefaultOptions()
	txOpts.Isolation = isolation
	txOpts.Timeout = cfg.TxTimeout
	txRunner := db.NewTxRunner(database, txOpts)

	credits := store.NewCreditRequestStore(database)
	savings := store.NewSavingsStore(database)
	savingsTx := store.NewSavingsTransactionStore(database)
	repayments := store.NewRepaymentStore(database)
	ledger := store.NewLedgerStore(database)
	profiles := store.NewCreditProfileStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)

	hub := websocket.NewHub(log)
	bus := events.NewBus(log)
	bus.SubscribeAll(events.LogSink(log))
	bus.Subscribe(domain.EventSavingsDeposited, hub.HandleEvent)
	bus.Subscribe(domain.EventSavingsWithdrawn, hub.HandleEvent)
	closeSinks := wireSinks(cfg, bus, log)
	defer closeSinks()

	calc := calculator.New(cfg.RatePolicy)
	creditService := services.NewCreditService(txRunner, credits, savings, savingsTx, repayments, ledger, profiles, audit, bus, calc, services.CreditPolicy{
		AutoApproveScore: cfg.AutoApproveScore,
		MinimumScore:     cfg.MinimumScore,
		Currency:         cfg.Currency,
	}, log)
	savingsService := services.NewSavingsService(txRunner, savings, savingsTx, ledger, audit, bus, services.SavingsConfig{
		Currency:      cfg.Currency,
		InterestRate:  cfg.SavingsInterestRate,
		AccountPrefix: cfg.AccountPrefix,
	}, log)
	healthService := services.NewHealthService(profiles, credits, savings, repayments, cfg.Currency, log)

	handler := handlers.New(cfg, creditService, savingsService, healthService, admin, audit, hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("lending API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracer shutdown error")
	}
}

// wireSinks subscribes the optional external event sinks. A sink that cannot
// connect is logged and skipped; the API still serves without it.
func wireSinks(cfg config.Config, bus *events.Bus, log logrus.FieldLogger) func() {
	var closers []func()
	if cfg.RedisEnabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis event sink disabled")
			_ = client.Close()
		} else {
			bus.SubscribeAll(events.NewRedisSink(client, cfg.RedisList).Handle)
			closers = append(closers, func() { _ = client.Close() })
		}
	}
	if cfg.AMQPEnabled {
		sink, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.WithError(err).Warn("amqp event sink disabled")
		} else {
			bus.SubscribeAll(sink.Handle)
			closers = append(closers, func() { _ = sink.Close() })
		}
	}
	return func() {
		for _, c := range closers {
			c()
		}
	}
}
