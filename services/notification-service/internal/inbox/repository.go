package inbox

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Record marks an event as seen inside the caller's transaction, so the
// dedupe row commits or rolls back together with the handler's writes. A
// handler failure leaves no inbox row and redelivery gets a clean retry.
// Returns false when the event was already processed.
func (r *Repository) Record(ctx context.Context, tx pgx.Tx, eventID string, eventType string) (bool, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}

	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
		return false, nil
	}

	return false, err
}
