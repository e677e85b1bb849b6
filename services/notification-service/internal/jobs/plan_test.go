package jobs

import (
	"errors"
	"testing"
	"time"
)

func scoredEvent() ScoredEvent {
	return ScoredEvent{
		PatientCode:      "P001",
		ScheduledAt:      "2026-03-20T15:00:00Z",
		Probability:      0.82,
		RiskScore:        82,
		RiskTier:         "high",
		ReminderOffsetsS: []int64{7 * 24 * 3600, 3 * 24 * 3600, 24 * 3600},
		DirectOutreach:   true,
		Recommendation:   "Consider phone call confirmation.",
		Phone:            "+15550001111",
		Email:            "p001@example.com",
		PreferredContact: "sms",
	}
}

func TestBuildJobs_HighRiskExpandsAllOffsetsPlusCall(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs, err := BuildJobs(scoredEvent(), now)
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if len(jobs) != 4 {
		t.Fatalf("expected 3 reminders + 1 call, got %d", len(jobs))
	}

	appt := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	wantRemind := []time.Time{
		appt.Add(-7 * 24 * time.Hour),
		appt.Add(-3 * 24 * time.Hour),
		appt.Add(-24 * time.Hour),
	}
	for i, want := range wantRemind {
		if jobs[i].Channel != ChannelSMS {
			t.Fatalf("job %d: preferred sms contact ignored, channel=%s", i, jobs[i].Channel)
		}
		if !jobs[i].RemindAt.Equal(want) {
			t.Fatalf("job %d: remind at %v, want %v", i, jobs[i].RemindAt, want)
		}
	}

	call := jobs[3]
	if call.Channel != ChannelCall {
		t.Fatalf("last job should be the outreach call, got %s", call.Channel)
	}
	if !call.RemindAt.Equal(now) {
		t.Fatalf("call should fire immediately, got %v", call.RemindAt)
	}
}

func TestBuildJobs_PastOffsetCollapsesToNow(t *testing.T) {
	evt := scoredEvent()
	evt.DirectOutreach = false
	// Appointment two days out: the 7-day and 3-day offsets are in the past.
	now := time.Date(2026, 3, 18, 15, 0, 0, 0, time.UTC)

	jobs, err := BuildJobs(evt, now)
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("past reminders must not be dropped, got %d jobs", len(jobs))
	}
	if !jobs[0].RemindAt.Equal(now) || !jobs[1].RemindAt.Equal(now) {
		t.Fatalf("past offsets should send immediately: %v, %v", jobs[0].RemindAt, jobs[1].RemindAt)
	}
	if jobs[2].RemindAt.Equal(now) {
		t.Fatal("the 24h reminder is still in the future and must keep its slot")
	}
}

func TestBuildJobs_ChannelFallback(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	evt := scoredEvent()
	evt.PreferredContact = "email"
	jobs, err := BuildJobs(evt, now)
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if jobs[0].Channel != ChannelEmail || jobs[0].Recipient != "p001@example.com" {
		t.Fatalf("preferred email not honored: %+v", jobs[0])
	}

	evt.PreferredContact = "email"
	evt.Email = ""
	jobs, err = BuildJobs(evt, now)
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if jobs[0].Channel != ChannelSMS {
		t.Fatalf("missing email should fall back to sms, got %s", jobs[0].Channel)
	}

	evt.Phone = ""
	if _, err := BuildJobs(evt, now); !errors.Is(err, ErrNoContact) {
		t.Fatalf("expected ErrNoContact, got %v", err)
	}
}

func TestBuildJobs_IdempotencyKeysDistinctPerOffset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs, err := BuildJobs(scoredEvent(), now)
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	seen := map[string]bool{}
	for _, j := range jobs {
		if j.IdempotencyKey == "" {
			t.Fatal("empty idempotency key")
		}
		if seen[j.IdempotencyKey] {
			t.Fatalf("duplicate idempotency key %q", j.IdempotencyKey)
		}
		seen[j.IdempotencyKey] = true
	}

	// Re-expanding the same event yields the same keys, so the database
	// upsert makes redelivery a no-op.
	again, err := BuildJobs(scoredEvent(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	for i := range again {
		if again[i].IdempotencyKey != jobs[i].IdempotencyKey {
			t.Fatalf("keys must be stable across redelivery: %q vs %q", again[i].IdempotencyKey, jobs[i].IdempotencyKey)
		}
	}
}

func TestBuildJobs_BadEvent(t *testing.T) {
	now := time.Now()
	evt := scoredEvent()
	evt.ScheduledAt = "tomorrow"
	if _, err := BuildJobs(evt, now); err == nil {
		t.Fatal("expected error for unparseable scheduled_at")
	}

	evt = scoredEvent()
	evt.PatientCode = "  "
	if _, err := BuildJobs(evt, now); err == nil {
		t.Fatal("expected error for blank patient code")
	}
}
