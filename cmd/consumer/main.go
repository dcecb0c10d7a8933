package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/roster/internal/api"
	"example.com/roster/internal/config"
	"example.com/roster/internal/consumer"
	"example.com/roster/internal/persistence/postgres"
	httptransport "example.com/roster/internal/transport/http"
)

func main() {
	cfg := config.Load()
	if !cfg.PublishingEnabled() {
		log.Fatal("KAFKA_BROKERS must be set for the event-log consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	eventLog := postgres.NewEventLog(pool)
	if err := eventLog.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate event log: %v", err)
	}

	handler := consumer.NewPersistenceHandler(eventLog)

	mux := http.NewServeMux()
	api.NewEventLogHandler(eventLog).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress),
		httptransport.Chain(mux, httptransport.Logging(log.New(log.Writer(), "[http] ", log.LstdFlags)), httptransport.Instrument()))

	go func() {
		log.Printf("consumer metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.EnrollmentTopic,
		MinBytes:        1,
		MaxBytes:        10e6,
		MaxWait:         time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	proc := consumer.NewProcessor(reader, handler, consumer.WithHandlerRetries(3, 200*time.Millisecond))

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer reader.Close()

		log.Printf("consumer started (topic=%s, group=%s)", cfg.EnrollmentTopic, cfg.ConsumerGroupID)
		if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("consumer stopped with error (topic=%s): %v", cfg.EnrollmentTopic, err)
		}
	}()

	<-stop
	log.Println("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	wg.Wait()
}
