package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/roster/internal/api"
	"example.com/roster/internal/config"
	"example.com/roster/internal/domain"
	"example.com/roster/internal/outbox"
	httptransport "example.com/roster/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed, err := loadSeed(cfg.SeedPath)
	if err != nil {
		log.Fatalf("failed to load roster seed: %v", err)
	}
	roster, err := domain.NewRoster(seed)
	if err != nil {
		log.Fatalf("invalid roster seed: %v", err)
	}

	var (
		publisher  domain.EventPublisher = domain.NoopPublisher{}
		dispatcher *outbox.Dispatcher
		producer   *outbox.KafkaProducer
	)
	if cfg.PublishingEnabled() {
		producer = outbox.NewKafkaProducer(cfg.KafkaBrokers, 50*time.Millisecond)

		var registry outbox.SchemaRegistrar = outbox.StaticRegistry{}
		if cfg.SchemaRegistryURL != "" {
			registry = outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, 5*time.Second)
		}

		dispatcher = outbox.NewDispatcher(producer, registry, cfg.EnrollmentTopic, cfg.OutboxFlushInterval, cfg.OutboxBatchSize,
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithQueueCapacity(cfg.OutboxQueueCapacity),
		)
		go dispatcher.Start(ctx)
		publisher = dispatcher
		log.Printf("publishing enrollment events to %s via %v", cfg.EnrollmentTopic, cfg.KafkaBrokers)
	} else {
		log.Printf("KAFKA_BROKERS not set; enrollment events are not published")
	}

	service := domain.NewService(roster, publisher)

	handler := api.NewHandler(service)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.Logging(log.New(log.Writer(), "[http] ", log.LstdFlags)),
		httptransport.Instrument(),
		httptransport.CORS(cfg.CORSAllowedOrigin),
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("roster api listening on %s (%d activities)", cfg.HTTPAddress, roster.Len())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	// Stop the dispatcher only after in-flight requests have queued their events.
	cancel()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka producer close: %v", err)
		}
	}
}

func loadSeed(path string) ([]domain.Activity, error) {
	if path == "" {
		return domain.DefaultSeed()
	}
	return domain.LoadSeedFile(path)
}
