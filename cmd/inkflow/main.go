package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkflow/internal/api"
	"inkflow/internal/booking"
	"inkflow/internal/config"
	"inkflow/internal/database"
	"inkflow/internal/events"
	"inkflow/internal/logging"
	"inkflow/internal/mailer"
	"inkflow/internal/metrics"
	"inkflow/shared/access"
	"inkflow/shared/audit"
	"inkflow/shared/reminders"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(os.Getenv("INKFLOW_CONFIG_PATH"))
	if err != nil {
		boot := logging.New(os.Stderr, "info")
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(os.Stdout, cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reminders
	from := reminders.Address{Email: cfg.Mail.FromEmail, Name: cfg.Mail.FromName}
	mailClient := mailer.NewMailjetClient(cfg.Mail.Endpoint, cfg.Mail.APIKey, cfg.Mail.SecretKey, cfg.MailTimeout())
	reminderMetrics := reminders.NewMetrics("inkflow")
	senderCfg := reminders.DefaultSenderConfig()
	senderCfg.RateLimiter.Rate = cfg.Mail.RatePerSec
	senderCfg.RateLimiter.Burst = cfg.Mail.Burst
	senderCfg.Retry = reminders.RetryConfig{Attempts: cfg.Mail.Attempts, Delay: cfg.RetryDelay()}
	sender := reminders.NewSender(mailClient, senderCfg, reminderMetrics, logging.NewAdapter(logger, "sender"))
	notifier := reminders.NewService(reminders.Config{From: from}, db, sender, reminderMetrics, logging.NewAdapter(logger, "reminders"))

	var locker reminders.Locker
	if rdb != nil {
		locker = reminders.NewRedisLocker(rdb, "", cfg.LockTTL())
	}
	scheduler := reminders.NewScheduler(reminders.SchedulerConfig{
		Interval:   cfg.SweepInterval(),
		Timeout:    cfg.SweepTimeout(),
		RunOnStart: cfg.Reminders.RunOnStart,
	}, notifier, locker, reminderMetrics, logging.NewAdapter(logger, "scheduler"))
	if cfg.Reminders.Enabled {
		go scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// Bookings
	bus := events.NewEventBus()
	subscribeNotifications(bus, notifier, cfg.MailTimeout()*time.Duration(cfg.Mail.Attempts+1))
	acl := access.NewService(db, logger)
	bookings := booking.NewService(db, acl, bus, logger)

	// Background jobs
	go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)

	if cfg.Report.Enabled {
		reports := audit.NewService(&audit.Config{
			EventRetentionDays: cfg.Report.EventRetentionDays,
			ExportOnStart:      cfg.Report.ExportOnStart,
			From:               from,
		}, db, audit.NewExcelizeWriter, mailClient, db, logging.NewAdapter(logger, "audit"))
		reports.Start()
		defer reports.Stop()
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	srv := api.NewHTTPServer(api.Config{
		Address:       cfg.Server.Address,
		APIKey:        cfg.Security.APIKey,
		CronSecret:    cfg.Security.CronSecret,
		WebhookSecret: cfg.Security.WebhookSecret,
		ReadTimeout:   time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:  time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}, api.Deps{
		Notifier: notifier,
		Sweeper:  scheduler,
		Bookings: bookings,
		Actors:   acl,
		Webhooks: db,
	}, logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("API shutdown error")
		}
	}()

	logger.Info().Msg("inkflow started")
	if err := srv.Start(); err != nil {
		logger.Error().Err(err).Msg("API server error")
	}
	logger.Info().Msg("inkflow stopped")
}

// subscribeNotifications sends the created/updated email once a booking is
// saved.
func subscribeNotifications(bus *events.EventBus, notifier reminders.Notifier, timeout time.Duration) {
	notify := func(kind reminders.EventType) events.EventHandler {
		return func(ev events.Event) error {
			p, err := ev.DecodeAppointment()
			if err != nil {
				return fmt.Errorf("decode %s: %w", ev.Type, err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			_, err = notifier.Notify(ctx, p.AppointmentID, kind)
			return err
		}
	}
	bus.Subscribe(events.AppointmentCreated, notify(reminders.EventCreated))
	bus.Subscribe(events.AppointmentUpdated, notify(reminders.EventUpdated))
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, h http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
