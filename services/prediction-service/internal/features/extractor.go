package features

import (
	"errors"
	"time"

	"github.com/showuphq/showup/services/prediction-service/internal/history"
)

// Length is the fixed feature vector length. A trained model whose weight
// vector disagrees with this length must be rejected, never coerced.
const Length = 8

// appointmentCountCap bounds the raw appointment count so long-tenured
// patients do not dominate the linear term.
const appointmentCountCap = 50

var (
	ErrMissingScheduledTime = errors.New("appointment scheduled time is missing")
	ErrNilSnapshot          = errors.New("person snapshot is nil")
)

// Names lists the feature schema in vector order. Persisted alongside
// predictions so a stored row is interpretable after schema changes.
func Names() []string {
	return []string{
		"noshow_rate",
		"total_appointments",
		"is_new_patient",
		"is_monday",
		"is_friday",
		"is_morning",
		"is_afternoon",
		"hour_of_day",
	}
}

// Extract derives the feature vector for one person-appointment pair. Pure:
// it reads only the snapshot and the scheduled wall-clock time.
//
// Morning is [00:00, 12:00), afternoon is [12:00, 24:00). The boundary is
// exact; 12:00 sharp is afternoon.
func Extract(snap *history.Snapshot, scheduledAt time.Time) ([]float64, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}
	if scheduledAt.IsZero() {
		return nil, ErrMissingScheduledTime
	}

	count := snap.TotalAppointments
	if count > appointmentCountCap {
		count = appointmentCountCap
	}

	hour := scheduledAt.Hour()
	weekday := scheduledAt.Weekday()

	v := make([]float64, Length)
	v[0] = snap.NoShowRate
	v[1] = float64(count)
	v[2] = boolFeature(snap.IsNew)
	v[3] = boolFeature(weekday == time.Monday)
	v[4] = boolFeature(weekday == time.Friday)
	v[5] = boolFeature(hour < 12)
	v[6] = boolFeature(hour >= 12)
	v[7] = float64(hour)
	return v, nil
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
