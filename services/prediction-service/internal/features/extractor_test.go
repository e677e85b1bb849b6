package features

import (
	"testing"
	"time"

	"github.com/showuphq/showup/services/prediction-service/internal/history"
)

func TestExtract_Schema(t *testing.T) {
	snap := &history.Snapshot{
		TotalAppointments: 12,
		NoShowCount:       3,
		NoShowRate:        0.25,
	}
	// Friday 2026-03-06, 14:30.
	at := time.Date(2026, 3, 6, 14, 30, 0, 0, time.UTC)

	v, err := Extract(snap, at)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(v) != Length {
		t.Fatalf("expected %d features, got %d", Length, len(v))
	}
	if len(Names()) != Length {
		t.Fatalf("Names() length %d disagrees with Length %d", len(Names()), Length)
	}

	want := []float64{0.25, 12, 0, 0, 1, 0, 1, 14}
	for i := range want {
		if v[i] != want[i] {
			t.Fatalf("feature %d (%s): want %v, got %v", i, Names()[i], want[i], v[i])
		}
	}
}

func TestExtract_NewPatientMonday(t *testing.T) {
	snap := &history.Snapshot{IsNew: true}
	// Monday 2026-03-02, 08:00.
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	v, err := Extract(snap, at)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v[2] != 1 {
		t.Fatal("expected is_new_patient=1")
	}
	if v[3] != 1 {
		t.Fatal("expected is_monday=1")
	}
	if v[5] != 1 || v[6] != 0 {
		t.Fatalf("08:00 must be morning: morning=%v afternoon=%v", v[5], v[6])
	}
}

func TestExtract_NoonBoundary(t *testing.T) {
	snap := &history.Snapshot{}

	morning := time.Date(2026, 3, 3, 11, 59, 0, 0, time.UTC)
	v, err := Extract(snap, morning)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v[5] != 1 || v[6] != 0 {
		t.Fatalf("11:59 must be morning: morning=%v afternoon=%v", v[5], v[6])
	}

	noon := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	v, err = Extract(snap, noon)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v[5] != 0 || v[6] != 1 {
		t.Fatalf("12:00 sharp must be afternoon: morning=%v afternoon=%v", v[5], v[6])
	}
	if v[7] != 12 {
		t.Fatalf("expected hour 12, got %v", v[7])
	}
}

func TestExtract_AppointmentCountClipped(t *testing.T) {
	snap := &history.Snapshot{TotalAppointments: 500, NoShowRate: 0.1}
	at := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	v, err := Extract(snap, at)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v[1] != appointmentCountCap {
		t.Fatalf("expected clipped count %d, got %v", appointmentCountCap, v[1])
	}
}

func TestExtract_Errors(t *testing.T) {
	if _, err := Extract(nil, time.Now()); err != ErrNilSnapshot {
		t.Fatalf("expected ErrNilSnapshot, got %v", err)
	}
	if _, err := Extract(&history.Snapshot{}, time.Time{}); err != ErrMissingScheduledTime {
		t.Fatalf("expected ErrMissingScheduledTime, got %v", err)
	}
}
