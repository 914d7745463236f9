// Command server runs the prisoner search sync service: the HTTP surface
// for index maintenance and lookup, the Kafka listener that keeps the live
// index current, and the ledger pruner.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"prisoner-search/internal/listener"
	"prisoner-search/internal/platform/config"
	"prisoner-search/internal/platform/httpserver"
	"prisoner-search/internal/platform/kafka"
	"prisoner-search/internal/platform/kafka/consumer"
	"prisoner-search/internal/platform/logger"
	"prisoner-search/internal/platform/postgres"
	"prisoner-search/internal/platform/redis"
	"prisoner-search/internal/prisonapi"
	"prisoner-search/internal/search/handler"
	"prisoner-search/internal/search/index"
	"prisoner-search/internal/search/ledger"
	"prisoner-search/internal/search/lifecycle"
	"prisoner-search/internal/search/metrics"
	"prisoner-search/internal/search/publisher"
	"prisoner-search/internal/search/service"
	"prisoner-search/internal/search/status"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	if cfg.Kafka.SeedTopics {
		if err := kafka.EnsureTopics(ctx, cfg.Kafka, cfg.Kafka.EventTopic, cfg.Kafka.ChangeTopic); err != nil {
			return err
		}
	}
	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()

	statusStore := status.NewPostgres(db)
	ledgerStore := ledger.NewPostgres(db)
	indexStore := index.NewRedis(redisClient.Client)

	source, err := prisonapi.New(cfg.PrisonAPIBaseURL)
	if err != nil {
		return err
	}
	sink := publisher.NewKafka(producer, cfg.Kafka.EventTopic, log)

	manager, err := lifecycle.New(statusStore, indexStore, time.Now, log)
	if err != nil {
		return err
	}

	svc, err := service.New(source, indexStore, ledgerStore, statusStore, sink, log,
		service.WithMetrics(metrics.New()),
		service.WithRebuildConcurrency(cfg.RebuildConcurrency),
	)
	if err != nil {
		return err
	}

	changeListener := listener.New(svc, cfg.Kafka.ListenerWorkers, log)
	defer changeListener.Close()
	changeConsumer, err := consumer.New(cfg.Kafka, []string{cfg.Kafka.ChangeTopic}, changeListener, log)
	if err != nil {
		return err
	}
	defer changeConsumer.Close()

	pruner := ledger.NewPruner(ledgerStore, cfg.LedgerRetention, cfg.PruneInterval, time.Now, log)

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := redisClient.Health(r.Context()); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.New(manager, svc, svc, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting prisoner-search", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return changeConsumer.Run(gCtx)
	})
	g.Go(func() error {
		return pruner.Run(gCtx)
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
