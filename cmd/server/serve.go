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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	authhandler "luwei/internal/auth/handler"
	"luwei/internal/auth/redirect"
	authservice "luwei/internal/auth/service"
	"luwei/internal/auth/session"
	accountstore "luwei/internal/auth/store/account"
	"luwei/internal/auth/store/revocation"
	cataloghandler "luwei/internal/catalog/handler"
	catalogservice "luwei/internal/catalog/service"
	catalogstore "luwei/internal/catalog/store"
	httpapi "luwei/internal/http"
	"luwei/internal/identity"
	"luwei/internal/notification"
	orderhandler "luwei/internal/order/handler"
	orderservice "luwei/internal/order/service"
	orderstore "luwei/internal/order/store"
	"luwei/internal/platform/config"
	"luwei/internal/platform/database"
	"luwei/internal/platform/httpserver"
	"luwei/internal/platform/logger"
	"luwei/internal/platform/metrics"
	platformredis "luwei/internal/platform/redis"
	audit "luwei/pkg/platform/audit"
	"luwei/pkg/platform/audit/kafka"
	"luwei/pkg/platform/audit/publisher"
	"luwei/pkg/platform/circuit"
	authmw "luwei/pkg/platform/middleware/auth"
	"luwei/pkg/platform/middleware/operator"
	"luwei/pkg/platform/middleware/ratelimit"
)

const revocationPurgeInterval = time.Hour

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel)
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// revocationStore is satisfied by both denylist backends.
type revocationStore interface {
	authservice.TokenRevoker
	authmw.RevocationChecker
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Database.MigrateOnStart {
		if err := database.RunMigrations(cfg.Database.URL); err != nil {
			return err
		}
		log.Info("database migrations applied")
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()

	sink, closeSink := auditSink(ctx, cfg.Kafka, log)
	auditPub := publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
		publisher.WithDropRecorder(m),
	)

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var (
		revocations revocationStore
		pgRevoked   *revocation.PostgresStore
	)
	if redisClient != nil {
		defer redisClient.Close()
		revocations = revocation.NewRedis(redisClient.Client, revocation.WithRedisObserver(m))
		log.Info("session denylist backed by redis")
	} else {
		pgRevoked = revocation.NewPostgres(db, revocation.WithPostgresObserver(m))
		revocations = pgRevoked
		log.Info("session denylist backed by postgres")
	}

	verifier, err := identity.NewVerifier(identity.NewJWKSCache(cfg.Auth.JWKSURL), cfg.Auth.GoogleClientID, cfg.Auth.GoogleIssuers)
	if err != nil {
		return err
	}
	sessions, err := session.NewService(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	restricted := make(map[string][]string, len(cfg.Redirect.Restricted))
	for _, landing := range cfg.Redirect.Restricted {
		restricted[landing] = cfg.Auth.OperatorEmails
	}
	redirects := redirect.NewPolicy(cfg.Redirect.Default, cfg.Redirect.Hosts, restricted)

	accounts := accountstore.NewPostgres(db)
	authSvc := authservice.New(verifier, accounts, sessions, redirects, revocations,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(auditPub),
		authservice.WithMetrics(m),
		authservice.WithOperators(cfg.Auth.OperatorEmails),
	)

	requireSession := authmw.RequireSession(session.NewMiddlewareAdapter(sessions), revocations, m, log)
	requireOperator := operator.RequireOperator(authSvc, log)
	operatorOnly := func(next http.Handler) http.Handler {
		return requireSession(requireOperator(next))
	}

	loginLimiter := ratelimit.New(ratelimit.Config{PerMinute: cfg.Auth.LoginRatePerMin}, log)
	defer loginLimiter.Stop()
	authHandler := authhandler.New(authSvc, log, authhandler.CookieConfig{
		Secure:   cfg.Auth.CookieSecure,
		SameSite: authhandler.ParseSameSite(cfg.Auth.CookieSameSite),
		Domain:   cfg.Auth.CookieDomain,
	}, requireSession, authhandler.WithLoginLimit(loginLimiter.Middleware))

	products := catalogstore.NewPostgres(db)
	catalogSvc := catalogservice.New(products,
		catalogservice.WithLogger(log),
		catalogservice.WithAuditPublisher(auditPub),
	)
	catalogHandler := cataloghandler.New(catalogSvc, log, operatorOnly)

	templates, err := notification.NewTemplates(cfg.Notify.StoreName)
	if err != nil {
		return err
	}
	dispatcher := notification.NewDispatcher(emailSender(cfg.Notify, log), templates,
		notification.WithLogger(log),
		notification.WithRecorder(m),
		notification.WithTimeout(cfg.Notify.Timeout),
	)

	orderSvc := orderservice.New(orderstore.NewPostgres(db), products, accounts, dispatcher,
		orderservice.WithLogger(log),
		orderservice.WithAuditPublisher(auditPub),
		orderservice.WithMetrics(m),
	)
	orderHandler := orderhandler.New(orderSvc, log, requireSession, requireOperator)

	readiness := map[string]httpapi.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		readiness["redis"] = redisClient.Health
	}
	router := httpapi.NewRouter(httpapi.Config{
		Logger:         log,
		APIKey:         cfg.Auth.APIKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		Observer:       m,
		Metrics:        m.Handler(),
		Readiness:      readiness,
	}, authHandler, catalogHandler, orderHandler)

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting luwei", "addr", cfg.Server.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if pgRevoked != nil {
		g.Go(func() error {
			purgeRevocations(gctx, pgRevoked, log)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("graceful shutdown failed: %w", err))
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain notifications: %w", err))
		}
		auditPub.Close()
		closeSink(shutdownCtx)
		return errors.Join(errs...)
	})

	return g.Wait()
}

// auditSink prefers Kafka behind a circuit breaker with the structured log as
// fallback. Without brokers, or when they are unreachable at startup, events go
// to the log only.
func auditSink(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (audit.Sink, func(context.Context)) {
	logSink := audit.NewLogSink(log)
	if len(cfg.Brokers) == 0 {
		return logSink, func(context.Context) {}
	}
	k, err := kafka.NewSink(ctx, kafka.Config{Brokers: cfg.Brokers, Topic: cfg.AuditTopic})
	if err != nil {
		log.Warn("kafka audit sink unavailable, using log sink", "error", err)
		return logSink, func(context.Context) {}
	}
	breaker := circuit.New("audit-kafka", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2))
	return audit.NewFailoverSink(k, logSink, breaker, log), func(ctx context.Context) {
		if err := k.Close(ctx); err != nil {
			log.Warn("failed to close kafka audit sink", "error", err)
		}
	}
}

func emailSender(cfg config.NotifyConfig, log *slog.Logger) notification.Sender {
	if cfg.ResendAPIKey == "" {
		log.Warn("RESEND_API_KEY not set, customer email is logged instead of sent")
		return notification.NewLogSender(log)
	}
	return notification.NewResendSender(cfg.ResendAPIKey, cfg.From)
}

func purgeRevocations(ctx context.Context, store *revocation.PostgresStore, log *slog.Logger) {
	ticker := time.NewTicker(revocationPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				log.WarnContext(ctx, "failed to purge session revocations", "error", err)
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "purged expired session revocations", "count", n)
			}
		}
	}
}
