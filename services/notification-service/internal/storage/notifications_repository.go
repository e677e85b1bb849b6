package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

type Notification struct {
	PatientCode string
	Channel     string
	Recipient   string
	RiskTier    string
	Payload     map[string]any
	Status      string
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert writes the audit row in the caller's transaction so it commits
// with the job state change. A sent row must never outlive a job rollback.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO notifications (patient_code, channel, recipient, risk_tier, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.PatientCode, n.Channel, n.Recipient, n.RiskTier, payload, n.Status)
	return err
}
