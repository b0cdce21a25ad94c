// Package main launches the derivation daemon: Kafka consumer plus retention sweeper
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	appcfg "github.com/imagemill/imagemill/internal/config"
	"github.com/imagemill/imagemill/internal/kafka"
	"github.com/imagemill/imagemill/internal/publisher"
	"github.com/imagemill/imagemill/internal/repository"
	"github.com/imagemill/imagemill/internal/service"
	"github.com/imagemill/imagemill/internal/worker"
)

func main() {
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Printf("No .env file loaded: %s", err)
	}

	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	cfg := appcfg.Load(appConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres is optional: without a DSN the daemon runs stateless and
	// keeps no derivation records.
	var dbConn *dbpg.DB
	var repo service.DerivationRepo
	if cfg.PostgresDSN != "" {
		dbConn = repository.ConnectWithRetries(cfg.PostgresDSN, 5, 10*time.Second)
		repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)
		repo = repository.NewPostgresDerivationRepo(dbConn)
	}

	pub, err := publisher.New(cfg.CDN)
	if err != nil {
		log.Fatalf("Failed to set up CDN publisher: %v", err)
	}

	svc, err := service.New(cfg, pub, repo)
	if err != nil {
		log.Fatalf("Failed to set up image service: %v", err)
	}

	health := svc.HealthCheck(ctx)
	zlog.Logger.Info().
		Str("status", health.Status).
		Bool("codec", health.CodecAvailable).
		Bool("dirs", health.DirectoriesAccessible).
		Bool("cdn", health.CDNReachable).
		Msg("Startup health check")

	// Kafka is optional too: without a broker only the sweeper runs.
	var cons *wbfkafka.Consumer
	if cfg.Kafka.Broker != "" {
		kafka.WaitReady(cfg.Kafka.Broker)
		kafka.InitTopics(ctx, cfg.Kafka.Broker, 10*time.Second, cfg.Kafka.Topic)

		queue := make(chan kafkago.Message)
		retryStrategy := retry.Strategy{
			Attempts: 5,
			Delay:    2 * time.Second,
			Backoff:  1.5,
		}
		cons = wbfkafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID)
		cons.StartConsuming(ctx, queue, retryStrategy)

		go worker.NewWorkerInstance(svc, queue, cons).StartWorker(ctx)
	}

	go sweepLoop(ctx, svc, cfg.SweepInterval)

	<-ctx.Done()

	shutdown(cons, dbConn)
	zlog.Logger.Info().Msg("Exiting deriver...")
}

func sweepLoop(ctx context.Context, svc *service.ImageService, interval time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Interface("panic", r).Msg("Sweep loop crashed")
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := svc.Sweep(); removed > 0 {
				zlog.Logger.Info().Int("removed", removed).Msg("Retention sweep finished")
			}
		}
	}
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	zlog.Logger.Info().Msg("Interrupt received, starting shutdown sequence...")

	if cons != nil {
		if err := cons.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to close Kafka-consumer")
		}
	}

	if dbConn != nil {
		if err := dbConn.Master.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to close DB-conn correctly")
		}
	}
}
