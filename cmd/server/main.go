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

	"github.com/jackc/pgx/v5/pgxpool"

	alerthandler "attest/internal/alert/handler"
	alertmetrics "attest/internal/alert/metrics"
	alertports "attest/internal/alert/ports"
	alertservice "attest/internal/alert/service"
	alertstore "attest/internal/alert/store"
	audithandler "attest/internal/audit/handler"
	auditmetrics "attest/internal/audit/metrics"
	auditmodels "attest/internal/audit/models"
	auditports "attest/internal/audit/ports"
	auditservice "attest/internal/audit/service"
	eventstore "attest/internal/audit/store/event"
	"attest/internal/compliance/engine"
	compliancehandler "attest/internal/compliance/handler"
	compliancemetrics "attest/internal/compliance/metrics"
	complianceports "attest/internal/compliance/ports"
	"attest/internal/compliance/registry"
	compliancestore "attest/internal/compliance/store"
	"attest/internal/detect"
	detectmetrics "attest/internal/detect/metrics"
	"attest/internal/integrity"
	integrityhandler "attest/internal/integrity/handler"
	integritymetrics "attest/internal/integrity/metrics"
	"attest/internal/platform/config"
	"attest/internal/platform/httpserver"
	"attest/internal/platform/logger"
	"attest/internal/platform/middleware"
	redisplatform "attest/internal/platform/redis"
	"attest/internal/search"
	searchhandler "attest/internal/search/handler"
	"attest/internal/search/kafka"
	searchmetrics "attest/internal/search/metrics"
	"attest/internal/search/pipeline"
	"attest/internal/signing"
	httptransport "attest/internal/transport/http"
	"attest/pkg/platform/bus"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages; nothing here is reachable from tests.
func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()

	// An engine that cannot sign must not start. Events without a valid
	// signature would be unverifiable forever.
	keyring, err := signing.NewKeyring(cfg.SigningKeys, cfg.ActiveKeyVersion)
	if err != nil {
		return err
	}
	signer := signing.NewSigner(keyring)

	health := map[string]httptransport.HealthChecker{}

	// Stores: Postgres when configured, in-memory otherwise. The memory
	// variants back local development and single-node evaluation setups.
	var (
		events eventStores
		pool   *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		events = eventStores{
			audit:   eventstore.NewPostgresStore(pool),
			alerts:  alertstore.NewPostgres(pool),
			reports: compliancestore.NewPostgresReportStore(pool),
		}
		health["postgres"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		}
		log.Info("using postgres stores")
	} else {
		events = eventStores{
			audit:   eventstore.NewInMemoryStore(),
			alerts:  alertstore.NewInMemory(),
			reports: compliancestore.NewMemoryReportStore(),
		}
		log.Warn("no database configured, using in-memory stores")
	}

	// Search backend.
	var indexer search.Indexer
	if len(cfg.ElasticAddrs) > 0 {
		indexer, err = search.NewElasticIndexer(cfg.ElasticAddrs, "")
		if err != nil {
			return err
		}
		log.Info("using elasticsearch index", "addresses", cfg.ElasticAddrs)
	} else {
		indexer = search.NewMemoryIndexer()
		log.Warn("no elasticsearch configured, using in-memory index")
	}
	searchMetrics := searchmetrics.New()

	// Index transport: Kafka when brokers are configured, otherwise the
	// in-process buffered pipeline. Either way the write path only ever
	// sees a non-blocking Enqueue.
	var sink auditports.IndexSink
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(cfg.KafkaBrokers, "", log)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := publisher.Close(closeCtx); err != nil {
				log.Warn("closing kafka publisher", "error", err)
			}
		}()

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "", "", indexer, log)
		if err != nil {
			return err
		}
		go consumer.Run(ctx)
		sink = publisher
		log.Info("index transport is kafka", "brokers", cfg.KafkaBrokers)
	} else {
		p := pipeline.New(indexer,
			pipeline.WithLogger(log),
			pipeline.WithMetrics(searchMetrics),
			pipeline.WithBatchSize(cfg.IndexBatchSize),
			pipeline.WithFlushInterval(cfg.IndexFlushInterval),
		)
		go p.Run(ctx)
		defer p.Wait()
		sink = p
	}

	// Alerts.
	alerts := alertservice.New(events.alerts,
		alertservice.WithLogger(log),
		alertservice.WithMetrics(alertmetrics.New()),
	)

	// Detection. Sliding windows live in Redis when available so multiple
	// replicas count against the same window and latch.
	var windows detect.WindowStore
	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		windows = detect.NewRedisWindowStore(redisClient.Client)
		health["redis"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(pingCtx)
		}
		log.Info("detection windows backed by redis")
	} else {
		windows = detect.NewMemoryWindowStore()
	}

	detector := detect.New(alerts, []detect.Rule{
		detect.NewFrequencyRule(windows, detect.WithThreshold(cfg.AccessThresholdPerHour)),
		detect.NewOffHoursRule(cfg.OffHoursStartHour, cfg.OffHoursEndHour),
	},
		detect.WithLogger(log),
		detect.WithMetrics(detectmetrics.New()),
	)

	recordedEvents := bus.New[auditmodels.AuditEvent](bus.WithLogger[auditmodels.AuditEvent](log))
	defer recordedEvents.Close()
	detector.Subscribe(ctx, recordedEvents)

	// Integrity.
	verifier, err := integrity.New(events.audit, events.reports, signer,
		integrity.WithLogger(log),
		integrity.WithMetrics(integritymetrics.New()),
		integrity.WithAlerts(alerts),
	)
	if err != nil {
		return err
	}

	// Compliance.
	frameworks, err := registry.New(registry.NewMemoryStore(), 0)
	if err != nil {
		return err
	}
	if err := registry.RegisterBuiltins(ctx, frameworks); err != nil {
		return err
	}
	assessor, err := engine.New(frameworks, indexer, signer, events.reports,
		engine.WithLogger(log),
		engine.WithMetrics(compliancemetrics.New()),
		engine.WithDefaultThreshold(cfg.RequirementThresholdDefault),
	)
	if err != nil {
		return err
	}

	// Recording.
	recorder, err := auditservice.New(events.audit, signer,
		auditservice.WithLogger(log),
		auditservice.WithMetrics(auditmetrics.New()),
		auditservice.WithIndexSink(sink),
		auditservice.WithPublisher(recordedEvents),
	)
	if err != nil {
		return err
	}

	if cfg.JWTSigningKey == "" {
		log.Warn("ATTEST_JWT_SIGNING_KEY is empty, no bearer token will validate")
	}
	router := httptransport.NewRouter(httptransport.Config{
		Logger:    log,
		Validator: middleware.NewHMACValidator(cfg.JWTSigningKey),
		Handlers: []httptransport.Registrar{
			audithandler.New(recorder, log),
			searchhandler.New(indexer, log, searchMetrics),
			alerthandler.New(alerts, log),
			integrityhandler.New(verifier, log),
			compliancehandler.New(frameworks, assessor, log),
		},
		Health: health,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// eventStores groups the persistence backends so the memory/postgres choice
// is made once.
type eventStores struct {
	audit   auditports.Store
	alerts  alertports.Store
	reports complianceports.ReportStore
}
