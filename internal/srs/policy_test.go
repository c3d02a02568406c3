package srs

import (
	"errors"
	"testing"
)

func TestGapDays(t *testing.T) {
	tests := []struct {
		level KnowledgeLevel
		want  int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 8},
		{5, 16},
		{6, 32},
	}

	for _, tt := range tests {
		if got := GapDays(tt.level); got != tt.want {
			t.Errorf("GapDays(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestNextLevelCorrect(t *testing.T) {
	for level := MinKnowledgeLevel; level <= MaxKnowledgeLevel; level++ {
		want := level + 1
		if want > MaxKnowledgeLevel {
			want = MaxKnowledgeLevel
		}
		for _, policy := range []IncorrectPolicy{PolicyStay, PolicyReset, ""} {
			if got := NextLevel(level, OutcomeCorrect, policy); got != want {
				t.Errorf("NextLevel(%d, correct, %q) = %d, want %d", level, policy, got, want)
			}
		}
	}
}

func TestNextLevelIncorrect(t *testing.T) {
	for level := MinKnowledgeLevel; level <= MaxKnowledgeLevel; level++ {
		if got := NextLevel(level, OutcomeIncorrect, PolicyStay); got != level {
			t.Errorf("NextLevel(%d, incorrect, stay) = %d, want %d", level, got, level)
		}
		if got := NextLevel(level, OutcomeIncorrect, ""); got != level {
			t.Errorf("NextLevel(%d, incorrect, default) = %d, want %d", level, got, level)
		}
		if got := NextLevel(level, OutcomeIncorrect, PolicyReset); got != MinKnowledgeLevel {
			t.Errorf("NextLevel(%d, incorrect, reset) = %d, want 0", level, got)
		}
	}
}

func TestClampLevel(t *testing.T) {
	tests := []struct {
		in   int
		want KnowledgeLevel
	}{
		{-3, 0},
		{0, 0},
		{4, 4},
		{6, 6},
		{11, 6},
	}

	for _, tt := range tests {
		if got := ClampLevel(tt.in); got != tt.want {
			t.Errorf("ClampLevel(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Outcome
		wantErr bool
	}{
		{name: "correct", input: "correct", want: OutcomeCorrect},
		{name: "incorrect", input: "incorrect", want: OutcomeIncorrect},
		{name: "padded", input: " correct ", want: OutcomeCorrect},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown", input: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutcome(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOutcome) {
					t.Fatalf("ParseOutcome(%q) error = %v, want ErrInvalidOutcome", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOutcome(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseOutcome(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseIncorrectPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    IncorrectPolicy
		wantErr bool
	}{
		{input: "", want: PolicyStay},
		{input: "stay", want: PolicyStay},
		{input: "RESET", want: PolicyReset},
		{input: "forget", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseIncorrectPolicy(tt.input)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseIncorrectPolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseIncorrectPolicy(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
