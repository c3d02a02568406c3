// Package srs implements the level ladder used to space card reviews.
//
// A card climbs one level per correct answer, up to MaxKnowledgeLevel. The
// gap before the next review doubles with every level above zero, so levels
// 1 through 6 wait 1, 2, 4, 8, 16 and 32 days.
package srs

import (
	"errors"
	"fmt"
	"strings"
)

// KnowledgeLevel is a card's mastery, always within [MinKnowledgeLevel, MaxKnowledgeLevel]
type KnowledgeLevel int

const (
	MinKnowledgeLevel KnowledgeLevel = 0
	MaxKnowledgeLevel KnowledgeLevel = 6
)

// Outcome is the reviewer's verdict on a single card
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

// IncorrectPolicy decides what an incorrect answer does to the level
type IncorrectPolicy string

const (
	// PolicyStay keeps the current level after an incorrect answer
	PolicyStay IncorrectPolicy = "stay"
	// PolicyReset drops the card back to level zero after an incorrect answer
	PolicyReset IncorrectPolicy = "reset"
)

var (
	ErrInvalidOutcome = errors.New("outcome must be correct or incorrect")
	ErrInvalidPolicy  = errors.New("incorrect policy must be stay or reset")
)

// ClampLevel forces an arbitrary integer into the knowledge level range
func ClampLevel(level int) KnowledgeLevel {
	if level <= int(MinKnowledgeLevel) {
		return MinKnowledgeLevel
	}
	if level >= int(MaxKnowledgeLevel) {
		return MaxKnowledgeLevel
	}
	return KnowledgeLevel(level)
}

// ParseOutcome validates a raw outcome value
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.TrimSpace(s)); o {
	case OutcomeCorrect, OutcomeIncorrect:
		return o, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
	}
}

// ParseIncorrectPolicy validates a raw policy value. Empty means PolicyStay.
func ParseIncorrectPolicy(s string) (IncorrectPolicy, error) {
	switch p := IncorrectPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyStay, nil
	case PolicyStay, PolicyReset:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// NextLevel returns the level a card moves to after a review
func NextLevel(current KnowledgeLevel, outcome Outcome, policy IncorrectPolicy) KnowledgeLevel {
	if outcome == OutcomeCorrect {
		return ClampLevel(int(current) + 1)
	}
	if policy == PolicyReset {
		return MinKnowledgeLevel
	}
	return current
}

// GapDays returns how many days a card at level waits before it is due again
func GapDays(level KnowledgeLevel) int {
	if level <= MinKnowledgeLevel {
		return 0
	}
	return 1 << (ClampLevel(int(level)) - 1)
}
