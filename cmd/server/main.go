package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NotiFlow/internal/api"
	"NotiFlow/internal/bulk"
	"NotiFlow/internal/config"
	"NotiFlow/internal/db"
	"NotiFlow/internal/dispatch"
	"NotiFlow/internal/metrics"
	"NotiFlow/internal/models"
	"NotiFlow/internal/notification"
	"NotiFlow/internal/prefs"
	"NotiFlow/internal/queue"
	"NotiFlow/internal/sender"
	"NotiFlow/internal/template"
	"NotiFlow/internal/transport"
)

func main() {

	// ------------------------------------------------
	// Config (.env is optional)
	// ------------------------------------------------
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database (optional in development)
	// ------------------------------------------------
	var store *db.Store
	if cfg.DatabaseURL != "" {
		store, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer store.Close()
	} else if !cfg.Development() {
		logger.Fatal("DATABASE_URL is required outside development")
	} else {
		logger.Warn("no DATABASE_URL configured, using in-memory job store")
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Rendering, preferences, audit
	// ------------------------------------------------
	var (
		templateStore template.Store
		prefStore     prefs.Store
		sinkStore     notification.Store
	)
	if store != nil {
		templateStore = store
		prefStore = store
		sinkStore = store
	}

	renderer := template.NewRenderer(templateStore, cfg.TemplatesDir, logger)
	gate := prefs.NewGate(prefStore, logger)
	sink := notification.NewSink(sinkStore, logger)

	// ------------------------------------------------
	// Transports + failover chains
	// ------------------------------------------------
	var emailTransports []transport.Transport
	if cfg.SMTPHost != "" {
		emailTransports = append(emailTransports, &transport.SMTP{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" {
		emailTransports = append(emailTransports, &transport.Mailgun{
			Domain: cfg.MailgunDomain,
			APIKey: cfg.MailgunAPIKey,
			Sender: cfg.MailgunSender,
		})
	}

	var smsTransports []transport.Transport
	if cfg.SMSGatewayURL != "" {
		smsTransports = append(smsTransports, &transport.SMSGateway{
			URL:    cfg.SMSGatewayURL,
			APIKey: cfg.SMSGatewayKey,
			From:   cfg.SMSFrom,
		})
	}

	chains := map[models.Channel]*sender.Chain{
		models.ChannelEmail: sender.NewChain(models.ChannelEmail, emailTransports, cfg.Development(), logger),
		models.ChannelSMS:   sender.NewChain(models.ChannelSMS, smsTransports, cfg.Development(), logger),
	}

	dispatcher := dispatch.New(renderer, chains, gate, sink, logger)

	// ------------------------------------------------
	// Bulk Fan-out
	// ------------------------------------------------
	processor := bulk.NewProcessor(cfg.BulkChunkSize, cfg.BulkConcurrency, logger)

	// ------------------------------------------------
	// Job Queue Engine
	// ------------------------------------------------
	var jobStore queue.Store
	if store != nil {
		jobStore = store
	} else {
		jobStore = queue.NewMemStore()
	}

	engine := queue.NewEngine(jobStore, queue.Options{
		MaxAttempts:   cfg.MaxAttempts,
		BackoffBase:   cfg.BackoffBase,
		StallTimeout:  cfg.StallTimeout,
		PollInterval:  cfg.PollInterval,
		KeepCompleted: cfg.KeepCompleted,
		KeepFailed:    cfg.KeepFailed,
		Lanes: map[models.Lane]queue.LaneConfig{
			models.LaneEmail: {Workers: cfg.EmailWorkers, RateLimit: rate.Limit(cfg.EmailRateLimit), Burst: cfg.EmailRateLimit},
			models.LaneSMS:   {Workers: cfg.SMSWorkers, RateLimit: rate.Limit(cfg.SMSRateLimit), Burst: cfg.SMSRateLimit},
			models.LaneBulk:  {Workers: cfg.BulkWorkers, RateLimit: rate.Limit(cfg.BulkRateLimit), Burst: cfg.BulkRateLimit},
		},
	}, logger)

	engine.Handle(models.LaneEmail, dispatcher.ProcessEmailJob)
	engine.Handle(models.LaneSMS, dispatcher.ProcessSMSJob)
	engine.Handle(models.LaneBulk, dispatcher.BulkHandler(processor))

	if err := engine.Start(ctx); err != nil {
		logger.Fatal("queue engine start failed", zap.Error(err))
	}

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Dispatcher: dispatcher,
		Engine:     engine,
		Bulk:       processor,
		Log:        logger,
	}

	apiMux := http.NewServeMux()
	apiHandler.Register(apiMux)

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: apiMux,
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	// Drain workers before closing the servers
	engine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
