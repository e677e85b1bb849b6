package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/showuphq/showup/libs/db"
	"github.com/showuphq/showup/services/prediction-service/internal/classifier"
	"github.com/showuphq/showup/services/prediction-service/internal/evaluate"
	"github.com/showuphq/showup/services/prediction-service/internal/ingest"
	"github.com/showuphq/showup/services/prediction-service/internal/outbox"
	"github.com/showuphq/showup/services/prediction-service/internal/predictor"
	"github.com/showuphq/showup/services/prediction-service/internal/storage"
)

type PredictionHandler struct {
	pool    *db.Pool
	service *predictor.Service
	repo    *storage.Repository
	outbox  *outbox.Repository
	logger  *slog.Logger
}

func NewPredictionHandler(
	pool *db.Pool,
	service *predictor.Service,
	repo *storage.Repository,
	outboxRepo *outbox.Repository,
	logger *slog.Logger,
) *PredictionHandler {
	return &PredictionHandler{
		pool:    pool,
		service: service,
		repo:    repo,
		outbox:  outboxRepo,
		logger:  logger,
	}
}

type importResponse struct {
	Imported       int      `json:"appointments_imported"`
	PersonsCreated int      `json:"patients_created"`
	Skipped        int      `json:"rows_skipped"`
	Errors         []string `json:"errors,omitempty"`
}

// Import accepts an appointment history CSV as the request body.
func (h *PredictionHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parsed, err := ingest.ParseCSV(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.service.Ingest(r.Context(), parsed.Records)
	if err != nil {
		h.logger.Error("import failed", "err", err)
		http.Error(w, "import failed", http.StatusInternalServerError)
		return
	}

	if resolved, err := h.repo.ResolvePredictions(r.Context()); err != nil {
		h.logger.Error("prediction backfill failed", "err", err)
	} else if resolved > 0 {
		h.logger.Info("predictions resolved against outcomes", "count", resolved)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(importResponse{
		Imported:       report.Imported,
		PersonsCreated: report.PersonsCreated,
		Skipped:        report.Skipped,
		Errors:         append(parsed.Errors, report.Errors...),
	})
}

type trainResponse struct {
	Success         bool             `json:"success"`
	ModelVersion    string           `json:"model_version"`
	TrainedAt       time.Time        `json:"trained_at"`
	TrainingSamples int              `json:"training_samples"`
	Metrics         evaluate.Metrics `json:"metrics"`
}

func (h *PredictionHandler) Train(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := h.service.Train(r.Context())
	if err != nil {
		if errors.Is(err, classifier.ErrInsufficientData) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("training failed", "err", err)
		http.Error(w, "training failed", http.StatusInternalServerError)
		return
	}

	if err := h.repo.InsertModelMetrics(r.Context(), res.Version, res.SampleCount, res.Metrics); err != nil {
		h.logger.Error("failed to record model metrics", "err", err, "version", res.Version)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(trainResponse{
		Success:         true,
		ModelVersion:    res.Version,
		TrainedAt:       res.TrainedAt,
		TrainingSamples: res.SampleCount,
		Metrics:         res.Metrics,
	})
}

type predictRequest struct {
	PatientCode     string `json:"patient_code"`
	ScheduledAt     string `json:"appointment_datetime"`
	AppointmentType string `json:"appointment_type"`
}

type predictResponse struct {
	PatientCode    string  `json:"patient_code"`
	KnownPatient   bool    `json:"known_patient"`
	ScheduledAt    string  `json:"scheduled_at"`
	Probability    float64 `json:"probability"`
	RiskScore      int     `json:"risk_score"`
	RiskTier       string  `json:"risk_tier"`
	ReminderHours  []int   `json:"reminder_offsets_hours"`
	DirectOutreach bool    `json:"direct_outreach"`
	Recommendation string  `json:"recommendation,omitempty"`
	ModelVersion   string  `json:"model_version"`
}

func (h *PredictionHandler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	scheduledAt, err := parseScheduledAt(req.ScheduledAt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	pred, err := h.service.Predict(ctx, strings.TrimSpace(req.PatientCode), scheduledAt, req.AppointmentType)
	if err != nil {
		switch {
		case errors.Is(err, predictor.ErrInvalidInput):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, predictor.ErrModelNotTrained):
			http.Error(w, "model not trained", http.StatusServiceUnavailable)
		default:
			h.logger.Error("prediction failed", "err", err)
			http.Error(w, "prediction failed", http.StatusInternalServerError)
		}
		return
	}

	if err := h.persistAndPublish(r, pred); err != nil {
		h.logger.Error("failed to persist prediction", "err", err, "patient_code", pred.PersonCode)
		http.Error(w, "prediction failed", http.StatusInternalServerError)
		return
	}

	reminderHours := make([]int, 0, len(pred.Plan.ReminderOffsets))
	for _, offset := range pred.Plan.ReminderOffsets {
		reminderHours = append(reminderHours, int(offset/time.Hour))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(predictResponse{
		PatientCode:    pred.PersonCode,
		KnownPatient:   pred.KnownPerson,
		ScheduledAt:    pred.ScheduledAt.UTC().Format(time.RFC3339),
		Probability:    pred.Probability,
		RiskScore:      pred.RiskScore,
		RiskTier:       string(pred.RiskTier),
		ReminderHours:  reminderHours,
		DirectOutreach: pred.Plan.DirectOutreach,
		Recommendation: pred.Plan.Recommendation,
		ModelVersion:   pred.ModelVersion,
	})
}

// persistAndPublish stores the prediction and enqueues the scored event in
// one transaction so downstream reminders never reference a lost row.
func (h *PredictionHandler) persistAndPublish(r *http.Request, pred predictor.Prediction) error {
	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	scheduledAt := pred.ScheduledAt.UTC().Format(time.RFC3339)
	if err := h.repo.InsertPrediction(ctx, tx, storage.PredictionRecord{
		ID:           uuid.NewString(),
		PersonCode:   pred.PersonCode,
		ScheduledAt:  scheduledAt,
		Probability:  pred.Probability,
		RiskScore:    pred.RiskScore,
		RiskTier:     string(pred.RiskTier),
		ModelVersion: pred.ModelVersion,
	}); err != nil {
		return err
	}

	offsets := make([]int64, 0, len(pred.Plan.ReminderOffsets))
	for _, offset := range pred.Plan.ReminderOffsets {
		offsets = append(offsets, int64(offset/time.Second))
	}
	payload, err := json.Marshal(map[string]any{
		"patient_code":       pred.PersonCode,
		"scheduled_at":       scheduledAt,
		"probability":        pred.Probability,
		"risk_score":         pred.RiskScore,
		"risk_tier":          string(pred.RiskTier),
		"reminder_offsets_s": offsets,
		"direct_outreach":    pred.Plan.DirectOutreach,
		"recommendation":     pred.Plan.Recommendation,
		"phone":              pred.Phone,
		"email":              pred.Email,
		"preferred_contact":  pred.PreferredContact,
		"model_version":      pred.ModelVersion,
	})
	if err != nil {
		return err
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "prediction",
		AggregateID:   pred.PersonCode,
		EventType:     "prediction.risk.scored.v1",
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type statsResponse struct {
	TotalAppointments int     `json:"total_appointments"`
	TotalPatients     int     `json:"total_patients"`
	TotalNoShows      int     `json:"total_no_shows"`
	NoShowRate        float64 `json:"no_show_rate"`
	ModelVersion      string  `json:"model_version,omitempty"`
}

func (h *PredictionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats query failed", "err", err)
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsResponse{
		TotalAppointments: stats.TotalAppointments,
		TotalPatients:     stats.TotalPersons,
		TotalNoShows:      stats.TotalNoShows,
		NoShowRate:        stats.NoShowRate,
		ModelVersion:      h.service.ActiveModelVersion(),
	})
}

func parseScheduledAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("appointment_datetime required")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unparseable appointment_datetime")
}
