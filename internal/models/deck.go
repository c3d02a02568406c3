package models

import "time"

// Deck is a named collection of cards owned by one user
type Deck struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Card is a single front/back prompt in a deck
type Card struct {
	ID        int64     `json:"id"`
	DeckID    int64     `json:"deckId"`
	Front     string    `json:"front"`
	Back      string    `json:"back"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeckWithCards combines a deck with its cards in study order
type DeckWithCards struct {
	Deck  Deck   `json:"deck"`
	Cards []Card `json:"cards"`
}

// DeckSummary is a deck with its card count and the user's mastery of it
type DeckSummary struct {
	Deck                  Deck    `json:"deck"`
	TotalCards            int     `json:"totalCards"`
	ReviewedCards         int     `json:"reviewedCards"`
	AverageKnowledgeLevel float64 `json:"averageKnowledgeLevel"`
	MasteryPercent        int     `json:"masteryPercent"`
}

// ChapterMastery is the user's mastery of one chapter of a deck
type ChapterMastery struct {
	ChapterNumber  int     `json:"chapterNumber"`
	TotalCards     int     `json:"totalCards"`
	AverageLevel   float64 `json:"averageLevel"`
	MasteryPercent int     `json:"masteryPercent"`
}
