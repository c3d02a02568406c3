package models

import (
	"time"

	"cards/internal/srs"
)

// CardProgress is one user's spaced-repetition state for one card
type CardProgress struct {
	ID             int64              `json:"id"`
	UserID         int64              `json:"userId"`
	CardID         int64              `json:"cardId"`
	KnowledgeLevel srs.KnowledgeLevel `json:"knowledgeLevel"`
	NextReviewAt   time.Time          `json:"nextReviewAt"`
	LastReviewedAt *time.Time         `json:"lastReviewedAt,omitempty"`
	Version        int64              `json:"-"`
	CreatedAt      time.Time          `json:"-"`
	UpdatedAt      time.Time          `json:"-"`
}

// DefaultProgress is the implied state of a card the user has never reviewed
func DefaultProgress(userID, cardID int64, now time.Time) CardProgress {
	return CardProgress{
		UserID:         userID,
		CardID:         cardID,
		KnowledgeLevel: srs.MinKnowledgeLevel,
		NextReviewAt:   now,
	}
}

// StudyCard is a card together with the user's progress on it
type StudyCard struct {
	Card     Card         `json:"card"`
	Progress CardProgress `json:"progress"`
	Position int          `json:"position"`
	Chapter  int          `json:"chapterNumber"`
	Due      bool         `json:"due"`
}
