package model

import "time"

type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeAttended Outcome = "attended"
	OutcomeNoShow   Outcome = "noshow"
)

type Appointment struct {
	ID         string
	PersonID   string
	PersonCode string
	// ScheduledAt is clinic-local wall time. The clinic's timezone is never
	// attached; all day-of-week and hour derivations read the wall clock.
	ScheduledAt time.Time
	Type        string
	Outcome     Outcome
	CreatedAt   time.Time
}

// RawRecord is one row of a historical import batch before any entity
// resolution has happened.
type RawRecord struct {
	PersonCode  string
	ScheduledAt time.Time
	Type        string
	ShowedUp    bool
	Phone       string
	Email       string
}

// Stats is the live aggregate view over all persons and appointments.
type Stats struct {
	TotalAppointments int
	TotalPersons      int
	TotalNoShows      int
	NoShowRate        float64
}
