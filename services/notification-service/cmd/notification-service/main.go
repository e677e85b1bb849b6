package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/showuphq/showup/libs/config"
	"github.com/showuphq/showup/libs/db"
	"github.com/showuphq/showup/libs/httpx"
	"github.com/showuphq/showup/libs/kafkax"
	otelx "github.com/showuphq/showup/libs/otel"
	"github.com/showuphq/showup/libs/runtime"
	"github.com/showuphq/showup/services/notification-service/internal/consumer"
	"github.com/showuphq/showup/services/notification-service/internal/email"
	"github.com/showuphq/showup/services/notification-service/internal/inbox"
	"github.com/showuphq/showup/services/notification-service/internal/jobs"
	"github.com/showuphq/showup/services/notification-service/internal/outbox"
	"github.com/showuphq/showup/services/notification-service/internal/sms"
	"github.com/showuphq/showup/services/notification-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")

	inboxRepo := inbox.NewRepository()
	jobRepo := jobs.NewRepository()
	outboxRepo := outbox.NewRepository(pool)
	notifStore := storage.NewRepository()

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	worker := jobs.NewWorker(pool, jobRepo, outboxRepo, notifStore,
		buildSMSSender(logger), buildEmailSender(), logger,
		jobs.WorkerConfig{
			Interval:  time.Duration(config.Int("WORKER_INTERVAL_SECONDS", 2)) * time.Second,
			BatchSize: config.Int("WORKER_BATCH_SIZE", 50),
			Backoff:   time.Duration(config.Int("WORKER_BACKOFF_SECONDS", 60)) * time.Second,
		})
	go worker.Run(ctx)

	scoredConsumer := consumer.New(logger, consumer.Config{
		Brokers: brokers,
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:   "prediction.risk.scored.v1",
	}, scoredHandler(pool, inboxRepo, jobRepo, logger))
	go scoredConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// scoredHandler turns a scored appointment into durable reminder jobs.
// The inbox row and the job inserts share one transaction: a failure rolls
// back both, so the event stays uncommitted on the broker and redelivery
// retries from scratch instead of hitting a stale dedupe row.
func scoredHandler(pool *db.Pool, inboxRepo *inbox.Repository, jobRepo *jobs.Repository, logger *slog.Logger) consumer.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt jobs.ScoredEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("malformed scored event dropped", "err", err)
			return nil
		}

		planned, err := jobs.BuildJobs(evt, time.Now().UTC())
		if err != nil {
			if errors.Is(err, jobs.ErrNoContact) {
				logger.Warn("no contact details for scored patient", "patient_code", evt.PatientCode)
				return nil
			}
			logger.Error("reminder planning failed", "err", err, "patient_code", evt.PatientCode)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		meta := kafkax.ExtractEventMeta(msg)
		fresh, err := inboxRepo.Record(ctx, tx, meta.EventID, meta.EventType)
		if err != nil {
			return err
		}
		if !fresh {
			logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			return nil
		}

		for _, job := range planned {
			if err := jobRepo.Insert(ctx, tx, job); err != nil {
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		logger.Info("reminders scheduled",
			"patient_code", evt.PatientCode,
			"risk_tier", evt.RiskTier,
			"jobs", len(planned),
		)
		return nil
	}
}

func buildSMSSender(logger *slog.Logger) sms.Sender {
	url := config.String("SMS_WEBHOOK_URL", "")
	if url == "" {
		logger.Warn("sms webhook not configured, using noop sender")
		return sms.NewNoopSender()
	}
	return sms.NewWebhookSender(url, config.String("SMS_WEBHOOK_TOKEN", ""))
}

func buildEmailSender() email.Sender {
	host := config.String("SMTP_HOST", "")
	if host == "" {
		return email.NewNoopSender()
	}
	return email.NewSMTPSender(host, config.String("SMTP_PORT", "1025"), config.String("SMTP_FROM", ""))
}
