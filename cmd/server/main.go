// Command server runs the soulbound token service: registry, issuer
// directory, oracle claim verifier, and class query engine behind one
// HTTP listener. Wiring lives here; behavior lives in internal services.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	directoryHandler "soulbound/internal/directory/handler"
	directoryPorts "soulbound/internal/directory/ports"
	directoryService "soulbound/internal/directory/service"
	directoryStore "soulbound/internal/directory/store"
	jwttoken "soulbound/internal/jwt_token"
	oracleHandler "soulbound/internal/oracle/handler"
	oracleMetrics "soulbound/internal/oracle/metrics"
	oraclePorts "soulbound/internal/oracle/ports"
	oracleService "soulbound/internal/oracle/service"
	oracleStore "soulbound/internal/oracle/store"
	"soulbound/internal/oracle/tracer"
	"soulbound/internal/platform/config"
	"soulbound/internal/platform/database"
	"soulbound/internal/platform/httpserver"
	"soulbound/internal/platform/kafka/producer"
	"soulbound/internal/platform/logger"
	platformredis "soulbound/internal/platform/redis"
	"soulbound/internal/query/engine"
	queryHandler "soulbound/internal/query/handler"
	registryHandler "soulbound/internal/registry/handler"
	registryMetrics "soulbound/internal/registry/metrics"
	registryPorts "soulbound/internal/registry/ports"
	registryService "soulbound/internal/registry/service"
	registryStore "soulbound/internal/registry/store"
	httptransport "soulbound/internal/transport/http"
	"soulbound/migrations"
	"soulbound/pkg/platform/audit"
	"soulbound/pkg/platform/audit/publisher"
	auditkafka "soulbound/pkg/platform/audit/store/kafka"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	health := make(map[string]func(context.Context) error)

	// Storage. Postgres when configured, in-memory otherwise.
	var (
		tokens  registryPorts.TokenStore
		classes registryPorts.ClassStore
		issuers directoryPorts.Store
		nonces  oraclePorts.NonceStore
	)
	pool, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if pool != nil {
		defer pool.Close()
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(migrateCtx, pool.DB(), migrations.Postgres, migrations.PostgresDir)
		cancel()
		if err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		health["postgres"] = pool.Health
		tokens = registryStore.NewPostgresTokenStore(pool.DB())
		classes = registryStore.NewPostgresClassStore(pool.DB())
		issuers = directoryStore.NewPostgres(pool.DB())
		nonces = oracleStore.NewPostgres(pool.DB())
	} else {
		log.Warn("no database configured, state is in-memory and volatile")
		tokens = registryStore.NewMemoryTokenStore()
		classes = registryStore.NewMemoryClassStore()
		issuers = directoryStore.NewMemory()
		nonces = oracleStore.NewMemory()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		health["redis"] = redisClient.Health
		nonces = oracleStore.NewCached(nonces, redisClient, log)
	}

	// Audit trail. Text log always; Kafka fan-out when brokers are set.
	auditLog := audit.NewLogger(log, nil)
	if cfg.KafkaBrokers != "" {
		prod, err := producer.New(producer.Config{Brokers: cfg.KafkaBrokers}, log, cfg.AuditTopic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer prod.Close()

		kafkaStore, err := auditkafka.New(prod, cfg.AuditTopic)
		if err != nil {
			return fmt.Errorf("create audit store: %w", err)
		}
		pub := publisher.NewPublisher(kafkaStore,
			publisher.WithAsyncBuffer(256),
			publisher.WithPublisherLogger(log),
		)
		defer pub.Close()
		auditLog = audit.NewLogger(log, pub)
		health["kafka"] = func(ctx context.Context) error {
			if !prod.Healthy(ctx) {
				return errors.New("kafka unreachable")
			}
			return nil
		}
	}

	// Metrics are registered on the default registerer, once per process.
	regMetrics := registryMetrics.New()
	oraMetrics := oracleMetrics.New()

	directory, err := directoryService.New(issuers,
		directoryService.WithLogger(log),
		directoryService.WithAuditLogger(auditLog),
	)
	if err != nil {
		return fmt.Errorf("build directory service: %w", err)
	}
	registry, err := registryService.New(tokens, classes, directory,
		registryService.WithLogger(log),
		registryService.WithAuditLogger(auditLog),
		registryService.WithMetrics(regMetrics),
	)
	if err != nil {
		return fmt.Errorf("build registry service: %w", err)
	}
	oracle, err := oracleService.New(registry, directory, nonces, cfg.DefaultClaimTTL,
		oracleService.WithLogger(log),
		oracleService.WithAuditLogger(auditLog),
		oracleService.WithMetrics(oraMetrics),
		oracleService.WithTracer(tracer.NewOTel()),
	)
	if err != nil {
		return fmt.Errorf("build oracle service: %w", err)
	}
	queries, err := engine.New(tokens, directory, cfg.BanPolicy, engine.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build query engine: %w", err)
	}

	var govTokens *jwttoken.Service
	if cfg.AdminToken != "" {
		govTokens, err = jwttoken.NewService(cfg.AdminToken)
		if err != nil {
			return fmt.Errorf("build governance tokens: %w", err)
		}
	} else {
		log.Warn("no admin token configured, governance endpoints are disabled")
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Registry:       registryHandler.New(registry, log),
		Directory:      directoryHandler.New(directory, log),
		Oracle:         oracleHandler.New(oracle, log),
		Query:          queryHandler.New(queries, log),
		IssuerVerifier: directory,
		AdminToken:     cfg.AdminToken,
		GovTokens:      govTokens,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Health:         health,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "ban_policy", string(cfg.BanPolicy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.SweepInterval > 0 {
		g.Go(func() error {
			return sweepLoop(ctx, registry, cfg.SweepInterval, log)
		})
	}

	return g.Wait()
}

// sweepLoop periodically removes expired and revoked tokens so storage
// does not grow without bound. Failures are logged and retried on the
// next tick.
func sweepLoop(ctx context.Context, registry *registryService.Service, interval time.Duration, log *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := registry.Sweep(ctx)
			if err != nil {
				log.ErrorContext(ctx, "background sweep failed", "error", err.Error())
				continue
			}
			if removed > 0 {
				log.InfoContext(ctx, "background sweep completed", "removed", removed)
			}
		}
	}
}
