package models

import (
	"time"

	"cards/internal/srs"
)

// StudySession is a snapshot of deck cards reviewed in one pass
type StudySession struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"userId"`
	DeckID        int64      `json:"deckId"`
	ChapterNumber *int       `json:"chapterNumber,omitempty"` // nil for whole-deck sessions
	ChapterSize   int        `json:"chapterSize"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	AbandonedAt   *time.Time `json:"abandonedAt,omitempty"`
}

// IsOpen reports whether the session can still accept reviews
func (s *StudySession) IsOpen() bool {
	return s.CompletedAt == nil && s.AbandonedAt == nil
}

// StudyItem is one card snapshot inside a study session
type StudyItem struct {
	ID               int64               `json:"id"`
	SessionID        int64               `json:"sessionId"`
	CardID           *int64              `json:"cardId,omitempty"` // nil once the card is deleted
	Position         int                 `json:"position"`
	ChapterNumber    int                 `json:"chapterNumber"`
	FrontSnapshot    string              `json:"front"`
	BackSnapshot     string              `json:"back"`
	KnowledgeAtStart srs.KnowledgeLevel  `json:"knowledgeAtStart"`
	ReviewedAt       *time.Time          `json:"reviewedAt,omitempty"`
	Outcome          *srs.Outcome        `json:"outcome,omitempty"`
	KnowledgeAfter   *srs.KnowledgeLevel `json:"knowledgeAfter,omitempty"`
}

// IsReviewed reports whether the item has been answered
func (i *StudyItem) IsReviewed() bool {
	return i.ReviewedAt != nil
}

// ChapterSummary counts the reviewed and remaining items of one chapter in a session
type ChapterSummary struct {
	ChapterNumber  int `json:"chapterNumber"`
	TotalCards     int `json:"totalCards"`
	ReviewedCards  int `json:"reviewedCards"`
	RemainingCards int `json:"remainingCards"`
}

// StudySessionView is a session with its items ordered by position
type StudySessionView struct {
	Session StudySession `json:"session"`
	Items   []StudyItem  `json:"items"`
}
