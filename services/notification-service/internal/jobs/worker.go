package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/showuphq/showup/libs/db"
	otelx "github.com/showuphq/showup/libs/otel"
	"github.com/showuphq/showup/services/notification-service/internal/email"
	"github.com/showuphq/showup/services/notification-service/internal/outbox"
	"github.com/showuphq/showup/services/notification-service/internal/sms"
	"github.com/showuphq/showup/services/notification-service/internal/storage"
)

type Worker struct {
	pool      *db.Pool
	repo      *Repository
	outbox    *outbox.Repository
	store     *storage.Repository
	sms       sms.Sender
	email     email.Sender
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(
	pool *db.Pool,
	repo *Repository,
	outboxRepo *outbox.Repository,
	store *storage.Repository,
	smsSender sms.Sender,
	emailSender email.Sender,
	logger *slog.Logger,
	cfg WorkerConfig,
) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		outbox:    outboxRepo,
		store:     store,
		sms:       smsSender,
		email:     emailSender,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	var sent []int64
	for _, job := range due {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)

		if sendErr := w.deliver(jobCtx, job); sendErr != nil {
			attempts := job.Attempts + 1
			nextRunAt := time.Now().UTC().Add(w.backoff)
			if err := w.repo.MarkFailed(ctx, tx, job.ID, attempts, job.MaxAttempts, nextRunAt, sendErr.Error()); err != nil {
				return err
			}
			if err := w.outbox.Insert(jobCtx, tx, failedEvent(job, sendErr)); err != nil {
				return err
			}
			if attempts >= job.MaxAttempts {
				w.logger.Warn("reminder moved to dead letter", "patient_code", job.PatientCode, "channel", job.Channel)
				if err := w.outbox.Insert(jobCtx, tx, dlqEvent(job, "max attempts reached")); err != nil {
					return err
				}
			}
			continue
		}

		if err := w.store.Insert(jobCtx, tx, storage.Notification{
			PatientCode: job.PatientCode,
			Channel:     job.Channel,
			Recipient:   job.Recipient,
			RiskTier:    job.RiskTier,
			Payload:     job.TemplateData,
			Status:      "sent",
		}); err != nil {
			return err
		}
		if err := w.outbox.Insert(jobCtx, tx, sentEvent(job)); err != nil {
			return err
		}
		sent = append(sent, job.ID)
	}

	if err := w.repo.MarkSent(ctx, tx, sent); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Worker) deliver(ctx context.Context, job Job) error {
	switch job.Channel {
	case ChannelSMS:
		return w.sms.Send(ctx, sms.Message{
			To:       job.Recipient,
			Body:     smsBody(job),
			RiskTier: job.RiskTier,
			Template: "appointment_reminder",
		})
	case ChannelEmail:
		return w.email.Send(job.Recipient, emailSubject(job), emailBody(job))
	case ChannelCall:
		// Call outreach is a staff task, not an automated send. Recording
		// the notification row is the whole delivery.
		return nil
	default:
		return fmt.Errorf("unknown channel %q", job.Channel)
	}
}

func smsBody(job Job) string {
	return fmt.Sprintf("Reminder: you have an appointment on %s. Reply C to confirm.",
		job.AppointmentAt.Format("Mon Jan 2 at 3:04 PM"))
}

func emailSubject(job Job) string {
	return "Upcoming appointment reminder"
}

func emailBody(job Job) string {
	return fmt.Sprintf("This is a reminder that you have an appointment scheduled on %s.\r\nPlease contact the clinic if you need to reschedule.",
		job.AppointmentAt.Format("Monday, January 2 at 3:04 PM"))
}

func sentEvent(job Job) outbox.Event {
	return eventFor(job, "notification.sent.v1", map[string]any{
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func failedEvent(job Job, cause error) outbox.Event {
	return eventFor(job, "notification.failed.v1", map[string]any{
		"error_reason": cause.Error(),
		"failed_at":    time.Now().UTC().Format(time.RFC3339),
	})
}

func dlqEvent(job Job, reason string) outbox.Event {
	return eventFor(job, "notification.reminder.dlq.v1", map[string]any{
		"error_reason": reason,
		"failed_at":    time.Now().UTC().Format(time.RFC3339),
	})
}

func eventFor(job Job, eventType string, extra map[string]any) outbox.Event {
	payload := map[string]any{
		"patient_code":   job.PatientCode,
		"channel":        job.Channel,
		"recipient":      job.Recipient,
		"appointment_at": job.AppointmentAt.UTC().Format(time.RFC3339),
		"risk_tier":      job.RiskTier,
		"risk_score":     job.RiskScore,
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, _ := json.Marshal(payload)
	return outbox.Event{
		AggregateType: "reminder_job",
		AggregateID:   job.PatientCode,
		EventType:     eventType,
		Payload:       raw,
	}
}
