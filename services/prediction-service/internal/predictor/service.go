package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/showuphq/showup/services/prediction-service/internal/classifier"
	"github.com/showuphq/showup/services/prediction-service/internal/evaluate"
	"github.com/showuphq/showup/services/prediction-service/internal/features"
	"github.com/showuphq/showup/services/prediction-service/internal/history"
	"github.com/showuphq/showup/services/prediction-service/internal/model"
	"github.com/showuphq/showup/services/prediction-service/internal/risk"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrModelNotTrained = errors.New("no trained model available")
)

// Config tunes the training procedure. Zero values fall back to the
// defaults we validated against the evaluator.
type Config struct {
	Fit          classifier.FitConfig
	HeldOutRatio float64
	SplitSeed    int64
	Threshold    float64
	Clock        func() time.Time
}

// Service is the prediction core: the single owner of the history
// aggregator and the active model. One Service instance serves a process.
//
// Writers (Ingest, Train) are serialized by a mutex. Predict and Stats are
// read-only: Predict loads the active model through an atomic pointer, so a
// concurrent Train can never expose a partially constructed model.
type Service struct {
	store   Store
	history *history.Aggregator
	logger  *slog.Logger
	cfg     Config

	mu    sync.Mutex
	model atomic.Pointer[classifier.Model]
}

func New(store Store, logger *slog.Logger, cfg Config) *Service {
	if cfg.Fit == (classifier.FitConfig{}) {
		cfg.Fit = classifier.DefaultFitConfig()
	}
	if cfg.HeldOutRatio <= 0 || cfg.HeldOutRatio >= 1 {
		cfg.HeldOutRatio = 0.2
	}
	if cfg.SplitSeed == 0 {
		cfg.SplitSeed = classifier.DefaultSplitSeed
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = evaluate.DefaultThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		store:   store,
		history: history.NewAggregator(),
		logger:  logger,
		cfg:     cfg,
	}
}

type IngestReport struct {
	Imported       int
	PersonsCreated int
	Skipped        int
	Errors         []string
}

// Ingest loads a batch of historical appointment records. Rows are sorted by
// scheduled time before aggregation so rolling statistics are computed as-of
// each appointment's own time. Malformed rows are skipped and counted; they
// never abort the batch.
func (s *Service) Ingest(ctx context.Context, records []model.RawRecord) (IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report IngestReport

	valid := make([]model.RawRecord, 0, len(records))
	for i, rec := range records {
		if rec.PersonCode == "" || rec.ScheduledAt.IsZero() {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: missing person code or scheduled time", i))
			continue
		}
		valid = append(valid, rec)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].ScheduledAt.Before(valid[j].ScheduledAt)
	})

	// Persons touched in this batch, so repeated codes hit one entity.
	persons := make(map[string]*model.Person)

	for _, rec := range valid {
		p, ok := persons[rec.PersonCode]
		if !ok {
			stored, found, err := s.store.GetPersonByCode(ctx, rec.PersonCode)
			if err != nil {
				return report, fmt.Errorf("lookup person %s: %w", rec.PersonCode, err)
			}
			if found {
				p = stored
			} else {
				p = &model.Person{
					ID:        uuid.NewString(),
					Code:      rec.PersonCode,
					CreatedAt: s.cfg.Clock(),
				}
				report.PersonsCreated++
			}
			persons[rec.PersonCode] = p
		}
		if rec.Phone != "" {
			p.Phone = rec.Phone
		}
		if rec.Email != "" {
			p.Email = rec.Email
		}

		outcome := model.OutcomeNoShow
		if rec.ShowedUp {
			outcome = model.OutcomeAttended
		}
		appt := &model.Appointment{
			ID:          uuid.NewString(),
			PersonID:    p.ID,
			PersonCode:  p.Code,
			ScheduledAt: rec.ScheduledAt,
			Type:        rec.Type,
			Outcome:     outcome,
			CreatedAt:   s.cfg.Clock(),
		}
		if err := s.store.InsertAppointment(ctx, appt); err != nil {
			return report, fmt.Errorf("insert appointment for %s: %w", p.Code, err)
		}
		if err := s.history.RecordOutcome(p, outcome, rec.ScheduledAt); err != nil {
			return report, fmt.Errorf("record outcome for %s: %w", p.Code, err)
		}
		report.Imported++
	}

	for _, p := range persons {
		if err := s.store.SavePerson(ctx, p); err != nil {
			return report, fmt.Errorf("save person %s: %w", p.Code, err)
		}
	}
	return report, nil
}

type TrainResult struct {
	Version     string
	TrainedAt   time.Time
	SampleCount int
	Metrics     evaluate.Metrics
}

// Train fits a fresh model on the full resolved-appointment history.
//
// The training set is built by replaying appointments chronologically
// through a fresh aggregator: each sample's features come from statistics
// of strictly earlier appointments, so the target outcome never leaks into
// its own feature vector. The active model is swapped only after the fit
// and evaluation both succeed; a failed training leaves the previous model
// serving.
func (s *Service) Train(ctx context.Context) (TrainResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appts, err := s.store.ListResolvedAppointments(ctx)
	if err != nil {
		return TrainResult{}, fmt.Errorf("load appointments: %w", err)
	}

	featureRows, labels, err := s.buildTrainingSet(appts)
	if err != nil {
		return TrainResult{}, err
	}

	trainX, trainY, testX, testY := classifier.Split(featureRows, labels, s.cfg.HeldOutRatio, s.cfg.SplitSeed)

	m, err := classifier.Fit(trainX, trainY, s.cfg.Fit)
	if err != nil {
		return TrainResult{}, err
	}

	metrics, err := evaluate.Evaluate(m, testX, testY, s.cfg.Threshold)
	if err != nil {
		return TrainResult{}, fmt.Errorf("evaluate model: %w", err)
	}

	trainedAt := s.cfg.Clock().UTC()
	m.TrainedAt = trainedAt
	m.Version = "logreg-" + trainedAt.Format("20060102T150405Z")

	s.model.Store(m)
	s.logger.Info("model trained",
		"version", m.Version,
		"samples", m.SampleCount,
		"accuracy", metrics.Accuracy,
		"precision", metrics.Precision,
		"recall", metrics.Recall,
	)

	return TrainResult{
		Version:     m.Version,
		TrainedAt:   trainedAt,
		SampleCount: m.SampleCount,
		Metrics:     metrics,
	}, nil
}

// buildTrainingSet replays resolved appointments in scheduled order through
// throwaway person entities, snapshotting statistics before each outcome is
// folded in.
func (s *Service) buildTrainingSet(appts []model.Appointment) ([][]float64, []int, error) {
	replay := history.NewAggregator()
	persons := make(map[string]*model.Person)

	featureRows := make([][]float64, 0, len(appts))
	labels := make([]int, 0, len(appts))

	for _, a := range appts {
		if a.Outcome == model.OutcomePending {
			continue
		}
		p, ok := persons[a.PersonCode]
		if !ok {
			p = &model.Person{Code: a.PersonCode}
			persons[a.PersonCode] = p
		}

		snap := replay.Snapshot(p)
		vec, err := features.Extract(&snap, a.ScheduledAt)
		if err != nil {
			return nil, nil, fmt.Errorf("extract features for appointment %s: %w", a.ID, err)
		}
		featureRows = append(featureRows, vec)
		if a.Outcome == model.OutcomeNoShow {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}

		if err := replay.RecordOutcome(p, a.Outcome, a.ScheduledAt); err != nil {
			return nil, nil, fmt.Errorf("replay outcome for %s: %w", a.PersonCode, err)
		}
	}
	return featureRows, labels, nil
}

type Prediction struct {
	PersonCode       string
	KnownPerson      bool
	ScheduledAt      time.Time
	Probability      float64
	RiskScore        int
	RiskTier         risk.Tier
	Plan             risk.Plan
	ModelVersion     string
	FeatureVector    []float64
	Phone            string
	Email            string
	PreferredContact string
}

// Predict scores a single upcoming appointment against the active model
// snapshot. An unknown person code is not an error: the person is scored on
// the new-patient feature branch, which the model was trained to handle.
func (s *Service) Predict(ctx context.Context, personCode string, scheduledAt time.Time, appointmentType string) (Prediction, error) {
	if personCode == "" {
		return Prediction{}, fmt.Errorf("%w: person code is required", ErrInvalidInput)
	}
	if scheduledAt.IsZero() {
		return Prediction{}, fmt.Errorf("%w: scheduled time is required", ErrInvalidInput)
	}
	_ = appointmentType // carried through for persistence; not a model feature

	m := s.model.Load()
	if m == nil {
		return Prediction{}, ErrModelNotTrained
	}

	person, known, err := s.store.GetPersonByCode(ctx, personCode)
	if err != nil {
		return Prediction{}, fmt.Errorf("lookup person %s: %w", personCode, err)
	}

	var snap history.Snapshot
	if known {
		snap = s.history.Snapshot(person)
	} else {
		snap = history.Snapshot{IsNew: true}
	}

	vec, err := features.Extract(&snap, scheduledAt)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	probability, err := m.PredictProbability(vec)
	if err != nil {
		return Prediction{}, err
	}

	score, tier, plan := risk.Classify(probability)
	pred := Prediction{
		PersonCode:    personCode,
		KnownPerson:   known,
		ScheduledAt:   scheduledAt,
		Probability:   probability,
		RiskScore:     score,
		RiskTier:      tier,
		Plan:          plan,
		ModelVersion:  m.Version,
		FeatureVector: vec,
	}
	if known {
		pred.Phone = person.Phone
		pred.Email = person.Email
		pred.PreferredContact = person.PreferredContact
	}
	return pred, nil
}

// Stats returns the live aggregate view. Never cached: small data volumes
// make the direct computation cheap, and staleness here confuses operators.
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	return s.store.AggregateStats(ctx)
}

// ActiveModelVersion reports the currently serving model version, or "" when
// none is trained. Used by readiness reporting.
func (s *Service) ActiveModelVersion() string {
	m := s.model.Load()
	if m == nil {
		return ""
	}
	return m.Version
}
