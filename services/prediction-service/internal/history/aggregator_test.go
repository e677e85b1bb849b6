package history

import (
	"testing"
	"time"

	"github.com/showuphq/showup/services/prediction-service/internal/model"
)

func TestRecordOutcome_CountInvariant(t *testing.T) {
	agg := NewAggregator()
	p := &model.Person{Code: "P001"}
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	outcomes := []model.Outcome{
		model.OutcomeAttended,
		model.OutcomeNoShow,
		model.OutcomeNoShow,
		model.OutcomeAttended,
		model.OutcomeNoShow,
	}
	for i, o := range outcomes {
		if err := agg.RecordOutcome(p, o, at.AddDate(0, 0, i)); err != nil {
			t.Fatalf("RecordOutcome %d: %v", i, err)
		}
		if p.NoShowCount > p.TotalAppointments {
			t.Fatalf("invariant violated after %d outcomes: noshow=%d total=%d", i+1, p.NoShowCount, p.TotalAppointments)
		}
	}

	if p.TotalAppointments != 5 {
		t.Fatalf("expected 5 appointments, got %d", p.TotalAppointments)
	}
	if p.NoShowCount != 3 {
		t.Fatalf("expected 3 no-shows, got %d", p.NoShowCount)
	}
	if got, want := p.NoShowRate, 0.6; got != want {
		t.Fatalf("expected rate %v, got %v", want, got)
	}
	if p.LastAppointment == nil || !p.LastAppointment.Equal(at.AddDate(0, 0, 4)) {
		t.Fatalf("last appointment not updated: %v", p.LastAppointment)
	}
}

func TestRecordOutcome_RejectsPending(t *testing.T) {
	agg := NewAggregator()
	p := &model.Person{Code: "P001"}
	if err := agg.RecordOutcome(p, model.OutcomePending, time.Now()); err != ErrPendingOutcome {
		t.Fatalf("expected ErrPendingOutcome, got %v", err)
	}
	if p.TotalAppointments != 0 {
		t.Fatalf("pending outcome must not mutate stats, total=%d", p.TotalAppointments)
	}
}

func TestSnapshot_StrictlyPrior(t *testing.T) {
	agg := NewAggregator()
	p := &model.Person{Code: "P001"}
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// The snapshot taken before recording an appointment's own outcome must
	// not include that outcome.
	snap := agg.Snapshot(p)
	if !snap.IsNew || snap.TotalAppointments != 0 {
		t.Fatalf("expected new-person snapshot, got %+v", snap)
	}

	if err := agg.RecordOutcome(p, model.OutcomeNoShow, at); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}

	snap2 := agg.Snapshot(p)
	if snap2.IsNew {
		t.Fatal("person with history reported as new")
	}
	if snap2.TotalAppointments != 1 || snap2.NoShowCount != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap2)
	}
	// First snapshot must be unaffected.
	if snap.TotalAppointments != 0 {
		t.Fatalf("earlier snapshot mutated: %+v", snap)
	}
}

func TestSnapshot_NilPerson(t *testing.T) {
	agg := NewAggregator()
	snap := agg.Snapshot(nil)
	if !snap.IsNew || snap.NoShowRate != 0 {
		t.Fatalf("expected zeroed new-person snapshot, got %+v", snap)
	}
}
