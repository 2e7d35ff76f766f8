// Command stayease-server runs the StayEase authentication API over
// MongoDB, with optional Redis throttling, SMTP delivery and Kafka audit
// publishing.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/httpapi"
	"github.com/MrEthical07/stayAuth/internal/settings"
	"github.com/MrEthical07/stayAuth/internal/stores"
	"github.com/MrEthical07/stayAuth/mailer"
	"github.com/MrEthical07/stayAuth/metrics/export/prometheus"
	"github.com/MrEthical07/stayAuth/mongostore"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("STAYEASE_CONFIG"), "optional YAML settings file")
	flag.Parse()

	cfg, err := settings.Load(*configPath)
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}

	logger, err := newLogger(cfg.Production)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg *settings.Settings, logger *zap.Logger) error {
	ctx := context.Background()

	// -------- STORAGE --------
	client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			logger.Error("mongo disconnect", zap.Error(err))
		}
	}()
	db := client.Database(cfg.Mongo.Database)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		return err
	}
	logger.Info("mongo connected", zap.String("database", cfg.Mongo.Database))

	builder := stayAuth.New().
		WithConfig(cfg.Engine()).
		WithUserStore(mongostore.NewUsers(db)).
		WithLogger(logger)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed; throttles fail open until it recovers", zap.Error(err))
		}
		builder = builder.WithRedis(rdb)
		if cfg.PendingBackend == "redis" {
			builder = builder.WithPendingStore(stores.NewPendingSignups(rdb, "", stores.DefaultRetention))
		}
	} else {
		logger.Warn("REDIS_ADDR not set: auth throttles disabled, captchas kept in process memory")
	}

	if cfg.PendingBackend != "redis" {
		builder = builder.WithPendingStore(mongostore.NewPendingSignups(db))
	}
	logger.Info("pending signup store", zap.String("backend", cfg.PendingBackend))

	// -------- DELIVERY --------
	if mc, ok := cfg.Mailer(); ok {
		sender, err := mailer.NewSMTPSender(mc, logger)
		if err != nil {
			return err
		}
		builder = builder.WithMailer(sender)
	} else {
		logger.Warn("SMTP not configured: OTPs will not be emailed")
	}

	// -------- AUDIT --------
	sinks := stayAuth.MultiAuditSink{stayAuth.NewZapAuditSink(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, stayAuth.NewKafkaAuditSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger))
	}
	builder = builder.WithAuditSink(sinks)

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("engine close", zap.Error(err))
		}
	}()

	report := engine.SecurityReport()
	logger.Info("security report",
		zap.Bool("production", report.ProductionMode),
		zap.String("signing", report.SigningAlgorithm),
		zap.Bool("strict_validation", report.StrictValidation),
		zap.Duration("access_ttl", report.AccessTTL),
		zap.Duration("refresh_ttl", report.RefreshTTL),
		zap.Bool("rate_limiting", report.RateLimitingActive),
		zap.Bool("shared_captcha_store", report.SharedCaptchaStore),
		zap.Bool("mailer", report.MailerConfigured),
		zap.Strings("lint", report.LintCodes),
	)

	if created, err := engine.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Error("seed admin", zap.Error(err))
	} else if created {
		logger.Info("admin account created", zap.String("email", cfg.AdminEmail))
	}

	// -------- HTTP --------
	httpCfg := cfg.HTTP()
	httpCfg.Logger = logger
	if cfg.MetricsEnabled {
		httpCfg.MetricsHandler = prometheus.New(engine,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		).Handler()
	}
	api := httpapi.New(engine, httpCfg)
	defer api.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
