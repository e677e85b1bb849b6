package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/showuphq/showup/libs/db"
	"github.com/showuphq/showup/services/prediction-service/internal/evaluate"
	"github.com/showuphq/showup/services/prediction-service/internal/model"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) GetPersonByCode(ctx context.Context, code string) (*model.Person, bool, error) {
	var p model.Person
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(preferred_contact, ''),
			total_appointments, no_show_count, no_show_rate, last_appointment, created_at
		FROM persons
		WHERE code = $1
	`, code).Scan(
		&p.ID,
		&p.Code,
		&p.Phone,
		&p.Email,
		&p.PreferredContact,
		&p.TotalAppointments,
		&p.NoShowCount,
		&p.NoShowRate,
		&p.LastAppointment,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

func (r *Repository) SavePerson(ctx context.Context, p *model.Person) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO persons (id, code, phone, email, preferred_contact, total_appointments, no_show_count, no_show_rate, last_appointment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE
		SET phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			preferred_contact = EXCLUDED.preferred_contact,
			total_appointments = EXCLUDED.total_appointments,
			no_show_count = EXCLUDED.no_show_count,
			no_show_rate = EXCLUDED.no_show_rate,
			last_appointment = EXCLUDED.last_appointment,
			updated_at = now()
	`, p.ID, p.Code, p.Phone, p.Email, p.PreferredContact,
		p.TotalAppointments, p.NoShowCount, p.NoShowRate, p.LastAppointment)
	return err
}

func (r *Repository) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (id, person_id, person_code, scheduled_at, appointment_type, outcome)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.PersonID, a.PersonCode, a.ScheduledAt, a.Type, string(a.Outcome))
	return err
}

func (r *Repository) ListResolvedAppointments(ctx context.Context) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, person_id, person_code, scheduled_at, COALESCE(appointment_type, ''), outcome, created_at
		FROM appointments
		WHERE outcome IN ('attended', 'noshow')
		ORDER BY scheduled_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var a model.Appointment
		var outcome string
		if err := rows.Scan(&a.ID, &a.PersonID, &a.PersonCode, &a.ScheduledAt, &a.Type, &outcome, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Outcome = model.Outcome(outcome)
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *Repository) AggregateStats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM persons),
			count(*),
			count(*) FILTER (WHERE outcome = 'noshow')
		FROM appointments
	`).Scan(&stats.TotalPersons, &stats.TotalAppointments, &stats.TotalNoShows)
	if err != nil {
		return model.Stats{}, err
	}
	if stats.TotalAppointments > 0 {
		stats.NoShowRate = float64(stats.TotalNoShows) / float64(stats.TotalAppointments)
	}
	return stats, nil
}

// PredictionRecord is the persisted form of a scored appointment. WasCorrect
// stays NULL until the appointment outcome is known.
type PredictionRecord struct {
	ID           string
	PersonCode   string
	ScheduledAt  string
	Probability  float64
	RiskScore    int
	RiskTier     string
	ModelVersion string
}

func (r *Repository) InsertPrediction(ctx context.Context, tx pgx.Tx, rec PredictionRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO predictions (id, person_code, scheduled_at, probability, risk_score, risk_tier, model_version)
		VALUES ($1, $2, $3::timestamptz, $4, $5, $6, $7)
	`, rec.ID, rec.PersonCode, rec.ScheduledAt, rec.Probability, rec.RiskScore, rec.RiskTier, rec.ModelVersion)
	return err
}

// ResolvePredictions back-fills was_correct for predictions whose appointment
// outcome has since been ingested.
func (r *Repository) ResolvePredictions(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE predictions p
		SET was_correct = ((p.probability >= 0.5) = (a.outcome = 'noshow')),
			resolved_at = now()
		FROM appointments a
		WHERE p.was_correct IS NULL
			AND a.person_code = p.person_code
			AND a.scheduled_at = p.scheduled_at
			AND a.outcome IN ('attended', 'noshow')
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) InsertModelMetrics(ctx context.Context, version string, sampleCount int, m evaluate.Metrics) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO model_metrics (model_version, sample_count, accuracy, precision_score, recall_score, f1_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (model_version) DO NOTHING
	`, version, sampleCount, m.Accuracy, m.Precision, m.Recall, m.F1)
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
