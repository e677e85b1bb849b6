package risk

import (
	"math"
	"time"
)

type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Tier cut points over the 0-100 score. Each tier owns a closed interval;
// together they partition [0,100] with no gaps: 39 is low, 40 is medium,
// 69 is medium, 70 is high.
const (
	mediumFloor = 40
	highFloor   = 70
)

// Plan is the outreach recommendation attached to a tier. Offsets are lead
// times before the appointment, largest first.
type Plan struct {
	ReminderOffsets []time.Duration
	DirectOutreach  bool
	Recommendation  string
}

// Plans is the single source of truth for tier-to-outreach mapping. It is
// data, not code, so the schedule can be tuned without touching any caller.
var Plans = map[Tier]Plan{
	TierLow: {
		ReminderOffsets: []time.Duration{24 * time.Hour},
		Recommendation:  "Send 1 reminder: 1 day before appointment.",
	},
	TierMedium: {
		ReminderOffsets: []time.Duration{72 * time.Hour, 24 * time.Hour},
		Recommendation:  "Send 2 reminders: 3 days and 1 day before appointment.",
	},
	TierHigh: {
		ReminderOffsets: []time.Duration{7 * 24 * time.Hour, 3 * 24 * time.Hour, 24 * time.Hour},
		DirectOutreach:  true,
		Recommendation:  "Send 3 reminders: 7 days, 3 days, and 1 day before. Consider phone call confirmation.",
	},
}

// Score maps a probability to the 0-100 risk scale. Monotone non-decreasing
// and clamped; out-of-range inputs are pinned rather than propagated.
func Score(probability float64) int {
	s := int(math.Round(probability * 100))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func TierForScore(score int) Tier {
	switch {
	case score >= highFloor:
		return TierHigh
	case score >= mediumFloor:
		return TierMedium
	default:
		return TierLow
	}
}

// Classify turns a raw probability into the full deterministic risk verdict.
func Classify(probability float64) (score int, tier Tier, plan Plan) {
	score = Score(probability)
	tier = TierForScore(score)
	return score, tier, Plans[tier]
}
