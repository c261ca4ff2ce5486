// main wires the dependency graph from configuration and owns the process
// lifecycle. Business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gradlink/internal/delivery"
	"gradlink/internal/handover/audit"
	"gradlink/internal/handover/link"
	"gradlink/internal/handover/metrics"
	"gradlink/internal/handover/token"
	"gradlink/internal/identity"
	accountstore "gradlink/internal/identity/store/account"
	studentstore "gradlink/internal/identity/store/student"
	"gradlink/internal/idp/local"
	"gradlink/internal/platform/config"
	"gradlink/internal/platform/httpserver"
	"gradlink/internal/platform/logger"
	"gradlink/internal/platform/postgres"
	"gradlink/internal/platform/redis"
	"gradlink/internal/roles"
	httptransport "gradlink/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when a DSN is configured, in-memory otherwise.
	type accountStore interface {
		link.AccountStore
		identity.AccountStore
	}
	var (
		accounts accountStore
		students token.StudentDirectory
		studentR link.StudentReader
		tokens   token.Store
		auditLog audit.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		accounts = accountstore.NewPostgres(db)
		pgStudents := studentstore.NewPostgres(db)
		students, studentR = pgStudents, pgStudents
		tokens = token.NewPostgres(db)
		auditLog = audit.NewPostgres(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		accounts = accountstore.NewInMemory()
		memStudents := studentstore.NewInMemory()
		students, studentR = memStudents, memStudents
		tokens = token.NewInMemory()
		auditLog = audit.NewInMemory()
	}

	// Partner directory with optional redis cache.
	var directory roles.Directory = roles.NewStatic("acme.com", "partner.org", "example.com")
	if cfg.PartnerAPIURL != "" {
		directory = roles.NewHTTPDirectory(cfg.PartnerAPIURL)
		cache, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("redis unavailable", "error", err)
			os.Exit(1)
		}
		if cache != nil {
			defer cache.Close()
			directory = roles.NewCachedDirectory(directory, cache.Client, cfg.PartnerCacheTTL)
		}
	}

	// Delivery channel: SES when a sender is configured, dev fallback
	// otherwise.
	var channel delivery.Channel
	if cfg.SESSender != "" {
		ses, err := delivery.NewSES(ctx, cfg.SESSender)
		if err != nil {
			log.Error("ses unavailable", "error", err)
			os.Exit(1)
		}
		channel = ses
	} else {
		log.Warn("no SES sender configured, magic links are returned in responses")
	}

	// Optional kafka mirror for the audit trail.
	var publisher audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := kafka.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit publisher stopped", "error", err)
			}
		}()
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafka.Close(closeCtx); err != nil {
				log.Error("audit publisher close", "error", err)
			}
		}()
		publisher = kafka
	}

	provider := local.New(cfg.JWTSigningKey)
	resolver := roles.NewEngine(directory, log)
	handoverMetrics := metrics.New()

	identitySvc := identity.NewService(accounts, provider, resolver, log)
	recorder := audit.NewRecorder(auditLog, publisher, log)
	tokenSvc := token.NewService(tokens, students, channel, cfg.FrontendBaseURL, handoverMetrics, log)
	engine := link.NewEngine(accounts, studentR, tokenSvc, provider, recorder, channel, handoverMetrics, log)

	router := httptransport.NewRouter(log,
		httptransport.NewIdentityHandler(identitySvc, identitySvc, log),
		httptransport.NewHandoverHandler(engine, tokenSvc, recorder, identitySvc, cfg.IsAdmin, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("gradlink listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("gradlink stopped")
}
