package srs

import (
	"math"
	"time"

	"cards/internal/clock"
)

// Day is the fixed length of one gap day. No calendar or DST adjustment is applied.
const Day = 24 * time.Hour

// Schedule is the full result of one review
type Schedule struct {
	PreviousLevel KnowledgeLevel
	NextLevel     KnowledgeLevel
	GapDays       int
	NextReviewAt  time.Time
}

// ScheduleNextReview computes the next level and due time for a card reviewed at reviewedAt
func ScheduleNextReview(current KnowledgeLevel, outcome Outcome, reviewedAt time.Time, policy IncorrectPolicy) Schedule {
	next := NextLevel(current, outcome, policy)
	gap := GapDays(next)
	return Schedule{
		PreviousLevel: current,
		NextLevel:     next,
		GapDays:       gap,
		NextReviewAt:  reviewedAt.Add(time.Duration(gap) * Day),
	}
}

// IsDue reports whether a card scheduled for nextReviewAt should be reviewed at now.
// The boundary is inclusive.
func IsDue(nextReviewAt, now time.Time) bool {
	return !nextReviewAt.After(now)
}

// SchedulerConfig configures a Scheduler. Zero values produce defaults.
type SchedulerConfig struct {
	IncorrectPolicy IncorrectPolicy // empty → PolicyStay
	Clock           clock.Clock     // nil → clock.System
}

// Scheduler binds an incorrect-answer policy and a clock to the pure scheduling functions
type Scheduler struct {
	policy IncorrectPolicy
	clock  clock.Clock
}

// NewScheduler creates a Scheduler from cfg
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	policy, err := ParseIncorrectPolicy(string(cfg.IncorrectPolicy))
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		policy: policy,
		clock:  clock.OrSystem(cfg.Clock),
	}, nil
}

// Policy returns the configured incorrect-answer policy
func (s *Scheduler) Policy() IncorrectPolicy {
	return s.policy
}

// Review schedules a review happening now
func (s *Scheduler) Review(current KnowledgeLevel, outcome Outcome) Schedule {
	return s.ReviewAt(current, outcome, s.clock.Now())
}

// ReviewAt schedules a review that happened at reviewedAt
func (s *Scheduler) ReviewAt(current KnowledgeLevel, outcome Outcome, reviewedAt time.Time) Schedule {
	return ScheduleNextReview(current, outcome, reviewedAt, s.policy)
}

// AverageLevel is the arithmetic mean of levels, 0 for an empty set
func AverageLevel(levels []KnowledgeLevel) float64 {
	if len(levels) == 0 {
		return 0
	}
	total := 0
	for _, l := range levels {
		total += int(l)
	}
	return float64(total) / float64(len(levels))
}

// MasteryPercent converts an average level into a rounded percentage of MaxKnowledgeLevel
func MasteryPercent(average float64) int {
	return int(math.Round(average / float64(MaxKnowledgeLevel) * 100))
}

// RoundTenth rounds to one decimal place for display
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
