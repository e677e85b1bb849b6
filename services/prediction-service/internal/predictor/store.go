package predictor

import (
	"context"

	"github.com/showuphq/showup/services/prediction-service/internal/model"
)

// Store is the durable persistence collaborator the prediction core depends
// on. The core never touches the network or disk itself; the host supplies a
// Postgres-backed implementation in production and tests use an in-memory one.
type Store interface {
	// GetPersonByCode returns (nil, false, nil) when no person with the code
	// exists; unknown persons are an expected, non-error case.
	GetPersonByCode(ctx context.Context, code string) (*model.Person, bool, error)

	// SavePerson inserts the person or updates its rolling statistics and
	// contact details, keyed by code.
	SavePerson(ctx context.Context, p *model.Person) error

	InsertAppointment(ctx context.Context, a *model.Appointment) error

	// ListResolvedAppointments returns every appointment whose outcome is
	// attended or noshow, ordered by scheduled time ascending. Training
	// replays this stream to rebuild statistics as-of each appointment.
	ListResolvedAppointments(ctx context.Context) ([]model.Appointment, error)

	// AggregateStats computes the live totals; never cached.
	AggregateStats(ctx context.Context) (model.Stats, error)
}
