package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/showuphq/showup/services/prediction-service/internal/model"
)

var ErrPendingOutcome = errors.New("cannot record a pending outcome")

// Snapshot is a person's rolling statistics frozen at a point in the outcome
// stream. Feature extraction reads snapshots, never live Person entities, so
// a prediction can only ever see appointments strictly prior to the one being
// scored.
type Snapshot struct {
	TotalAppointments int
	NoShowCount       int
	NoShowRate        float64
	IsNew             bool
}

// Aggregator maintains per-person rolling no-show statistics. A single
// aggregator serializes all writers: two imports referencing the same person
// code cannot interleave a half-updated count.
type Aggregator struct {
	mu sync.Mutex
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Snapshot returns the person's statistics as they stand now. Safe to call
// concurrently with RecordOutcome for other persons.
func (a *Aggregator) Snapshot(p *model.Person) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p == nil {
		return Snapshot{IsNew: true}
	}
	return Snapshot{
		TotalAppointments: p.TotalAppointments,
		NoShowCount:       p.NoShowCount,
		NoShowRate:        p.NoShowRate,
		IsNew:             p.IsNew(),
	}
}

// RecordOutcome folds one resolved appointment outcome into the person's
// rolling statistics. Outcomes must be applied in chronological order:
// statistics are "as of" the latest recorded appointment, and feature vectors
// for appointment N must be extracted from a snapshot taken before N's own
// outcome is recorded.
func (a *Aggregator) RecordOutcome(p *model.Person, outcome model.Outcome, at time.Time) error {
	if outcome == model.OutcomePending {
		return ErrPendingOutcome
	}
	if outcome != model.OutcomeAttended && outcome != model.OutcomeNoShow {
		return fmt.Errorf("unknown outcome %q", outcome)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p.TotalAppointments++
	if outcome == model.OutcomeNoShow {
		p.NoShowCount++
	}
	p.NoShowRate = float64(p.NoShowCount) / float64(p.TotalAppointments)
	t := at
	p.LastAppointment = &t
	return nil
}
