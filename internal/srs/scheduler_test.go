package srs

import (
	"testing"
	"time"

	"cards/internal/clock"
)

var reviewedAt = time.Date(2026, 3, 28, 9, 30, 0, 0, time.UTC)

func TestScheduleNextReview(t *testing.T) {
	tests := []struct {
		name      string
		current   KnowledgeLevel
		outcome   Outcome
		policy    IncorrectPolicy
		wantLevel KnowledgeLevel
		wantGap   int
	}{
		{name: "new card answered correctly", current: 0, outcome: OutcomeCorrect, policy: PolicyStay, wantLevel: 1, wantGap: 1},
		{name: "level 3 correct", current: 3, outcome: OutcomeCorrect, policy: PolicyStay, wantLevel: 4, wantGap: 8},
		{name: "level 4 incorrect stays", current: 4, outcome: OutcomeIncorrect, policy: PolicyStay, wantLevel: 4, wantGap: 8},
		{name: "level 4 incorrect resets", current: 4, outcome: OutcomeIncorrect, policy: PolicyReset, wantLevel: 0, wantGap: 0},
		{name: "ceiling holds", current: 6, outcome: OutcomeCorrect, policy: PolicyStay, wantLevel: 6, wantGap: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScheduleNextReview(tt.current, tt.outcome, reviewedAt, tt.policy)
			if got.PreviousLevel != tt.current {
				t.Errorf("PreviousLevel = %d, want %d", got.PreviousLevel, tt.current)
			}
			if got.NextLevel != tt.wantLevel {
				t.Errorf("NextLevel = %d, want %d", got.NextLevel, tt.wantLevel)
			}
			if got.GapDays != tt.wantGap {
				t.Errorf("GapDays = %d, want %d", got.GapDays, tt.wantGap)
			}
			want := reviewedAt.Add(time.Duration(tt.wantGap) * 24 * time.Hour)
			if !got.NextReviewAt.Equal(want) {
				t.Errorf("NextReviewAt = %v, want %v", got.NextReviewAt, want)
			}
		})
	}
}

func TestScheduleIgnoresDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	// The night before the March 2026 DST switch.
	at := time.Date(2026, 3, 7, 12, 0, 0, 0, loc)
	got := ScheduleNextReview(1, OutcomeCorrect, at, PolicyStay)
	if got.NextReviewAt.Sub(at) != 2*24*time.Hour {
		t.Errorf("gap = %v, want exactly 48h", got.NextReviewAt.Sub(at))
	}
}

func TestIsDue(t *testing.T) {
	now := reviewedAt
	tests := []struct {
		name string
		next time.Time
		want bool
	}{
		{name: "past", next: now.Add(-time.Minute), want: true},
		{name: "exactly now", next: now, want: true},
		{name: "future", next: now.Add(time.Nanosecond), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDue(tt.next, now); got != tt.want {
				t.Errorf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedulerDefaults(t *testing.T) {
	s, err := NewScheduler(SchedulerConfig{Clock: clock.Fixed(reviewedAt)})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if s.Policy() != PolicyStay {
		t.Errorf("Policy() = %q, want stay", s.Policy())
	}

	got := s.Review(2, OutcomeIncorrect)
	if got.NextLevel != 2 {
		t.Errorf("NextLevel = %d, want 2", got.NextLevel)
	}
	if !got.NextReviewAt.Equal(reviewedAt.Add(2 * Day)) {
		t.Errorf("NextReviewAt = %v, want clock time + 2 days", got.NextReviewAt)
	}
}

func TestSchedulerResetPolicy(t *testing.T) {
	s, err := NewScheduler(SchedulerConfig{IncorrectPolicy: PolicyReset, Clock: clock.Fixed(reviewedAt)})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	at := reviewedAt.Add(-time.Hour)
	got := s.ReviewAt(5, OutcomeIncorrect, at)
	if got.NextLevel != 0 || got.GapDays != 0 {
		t.Fatalf("got level %d gap %d, want 0 and 0", got.NextLevel, got.GapDays)
	}
	if !got.NextReviewAt.Equal(at) {
		t.Errorf("NextReviewAt = %v, want %v", got.NextReviewAt, at)
	}
}

func TestNewSchedulerRejectsUnknownPolicy(t *testing.T) {
	if _, err := NewScheduler(SchedulerConfig{IncorrectPolicy: "shuffle"}); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestMastery(t *testing.T) {
	tests := []struct {
		name        string
		levels      []KnowledgeLevel
		wantAverage float64
		wantPercent int
	}{
		{name: "empty", levels: nil, wantAverage: 0, wantPercent: 0},
		{name: "mixed", levels: []KnowledgeLevel{6, 0, 3}, wantAverage: 3, wantPercent: 50},
		{name: "all mastered", levels: []KnowledgeLevel{6, 6}, wantAverage: 6, wantPercent: 100},
		{name: "rounds", levels: []KnowledgeLevel{1, 0, 0}, wantAverage: 1.0 / 3.0, wantPercent: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg := AverageLevel(tt.levels)
			if avg != tt.wantAverage {
				t.Errorf("AverageLevel() = %v, want %v", avg, tt.wantAverage)
			}
			if got := MasteryPercent(avg); got != tt.wantPercent {
				t.Errorf("MasteryPercent() = %d, want %d", got, tt.wantPercent)
			}
		})
	}
}

func TestRoundTenth(t *testing.T) {
	if got := RoundTenth(2.349); got != 2.3 {
		t.Errorf("RoundTenth(2.349) = %v, want 2.3", got)
	}
	if got := RoundTenth(1.0 / 3.0 * 5); got != 1.7 {
		t.Errorf("RoundTenth(1.666) = %v, want 1.7", got)
	}
}
