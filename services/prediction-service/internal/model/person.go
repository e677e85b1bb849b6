package model

import "time"

// Person is an anonymized patient. Real names are never stored; the clinic's
// own stable code identifies the person across imports.
type Person struct {
	ID               string
	Code             string
	Phone            string
	Email            string
	PreferredContact string // "sms", "email" or "both"

	// Rolling history statistics, maintained by the history aggregator.
	TotalAppointments int
	NoShowCount       int
	NoShowRate        float64

	LastAppointment *time.Time
	CreatedAt       time.Time
}

// IsNew reports whether the person has no recorded appointment history.
func (p *Person) IsNew() bool {
	return p.TotalAppointments == 0
}
