package jobs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
	ChannelCall  = "call"
)

// ScoredEvent is the payload of prediction.risk.scored.v1.
type ScoredEvent struct {
	PatientCode      string  `json:"patient_code"`
	ScheduledAt      string  `json:"scheduled_at"`
	Probability      float64 `json:"probability"`
	RiskScore        int     `json:"risk_score"`
	RiskTier         string  `json:"risk_tier"`
	ReminderOffsetsS []int64 `json:"reminder_offsets_s"`
	DirectOutreach   bool    `json:"direct_outreach"`
	Recommendation   string  `json:"recommendation"`
	Phone            string  `json:"phone"`
	Email            string  `json:"email"`
	PreferredContact string  `json:"preferred_contact"`
	ModelVersion     string  `json:"model_version"`
}

var ErrNoContact = errors.New("jobs: no reachable contact for patient")

// BuildJobs expands a scored appointment into one reminder job per offset,
// plus a call job when the risk policy asks for direct outreach. Reminders
// whose send time already passed collapse to an immediate send rather than
// being dropped.
func BuildJobs(evt ScoredEvent, now time.Time) ([]Job, error) {
	scheduledAt, err := time.Parse(time.RFC3339, evt.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("jobs: unparseable scheduled_at %q: %w", evt.ScheduledAt, err)
	}
	if strings.TrimSpace(evt.PatientCode) == "" {
		return nil, errors.New("jobs: empty patient_code")
	}

	channel, recipient, err := pickChannel(evt)
	if err != nil {
		return nil, err
	}

	var out []Job
	for _, seconds := range evt.ReminderOffsetsS {
		offset := time.Duration(seconds) * time.Second
		remindAt := scheduledAt.Add(-offset)
		if remindAt.Before(now) {
			remindAt = now
		}
		out = append(out, Job{
			IdempotencyKey: idempotencyKey(evt, channel, seconds),
			PatientCode:    evt.PatientCode,
			Channel:        channel,
			Recipient:      recipient,
			AppointmentAt:  scheduledAt,
			RemindAt:       remindAt,
			RiskTier:       evt.RiskTier,
			RiskScore:      evt.RiskScore,
			TemplateData: map[string]any{
				"patient_code":   evt.PatientCode,
				"appointment_at": scheduledAt.UTC().Format(time.RFC3339),
				"risk_tier":      evt.RiskTier,
			},
		})
	}

	if evt.DirectOutreach && evt.Phone != "" {
		// Staff call goes out as soon as the appointment is scored.
		out = append(out, Job{
			IdempotencyKey: idempotencyKey(evt, ChannelCall, 0),
			PatientCode:    evt.PatientCode,
			Channel:        ChannelCall,
			Recipient:      evt.Phone,
			AppointmentAt:  scheduledAt,
			RemindAt:       now,
			RiskTier:       evt.RiskTier,
			RiskScore:      evt.RiskScore,
			TemplateData: map[string]any{
				"patient_code":   evt.PatientCode,
				"appointment_at": scheduledAt.UTC().Format(time.RFC3339),
				"risk_tier":      evt.RiskTier,
				"recommendation": evt.Recommendation,
			},
		})
	}
	return out, nil
}

func pickChannel(evt ScoredEvent) (channel string, recipient string, err error) {
	switch strings.ToLower(strings.TrimSpace(evt.PreferredContact)) {
	case ChannelSMS:
		if evt.Phone != "" {
			return ChannelSMS, evt.Phone, nil
		}
	case ChannelEmail:
		if evt.Email != "" {
			return ChannelEmail, evt.Email, nil
		}
	}
	if evt.Phone != "" {
		return ChannelSMS, evt.Phone, nil
	}
	if evt.Email != "" {
		return ChannelEmail, evt.Email, nil
	}
	return "", "", ErrNoContact
}

func idempotencyKey(evt ScoredEvent, channel string, offsetSeconds int64) string {
	return fmt.Sprintf("%s|%s|%s|%d", evt.PatientCode, evt.ScheduledAt, channel, offsetSeconds)
}
