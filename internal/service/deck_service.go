package service

import (
	"context"
	"strings"

	"cards/internal/clock"
	"cards/internal/database"
	"cards/internal/models"
	"cards/internal/repository"
	"cards/internal/srs"
	"cards/internal/validation"
)

// DeckService handles deck and card management and per-user mastery
type DeckService struct {
	db           *database.DB
	deckRepo     *repository.DeckRepository
	progressRepo *repository.ProgressRepository
	clock        clock.Clock
	chapterSize  int
}

// NewDeckService creates a new deck service
func NewDeckService(db *database.DB, c clock.Clock, chapterSize int) *DeckService {
	return &DeckService{
		db:           db,
		deckRepo:     repository.NewDeckRepository(db),
		progressRepo: repository.NewProgressRepository(db),
		clock:        clock.OrSystem(c),
		chapterSize:  normalizeChapterSize(chapterSize),
	}
}

// CreateDeck creates a deck for the user
func (s *DeckService) CreateDeck(ctx context.Context, userID int64, title string) (*models.Deck, error) {
	title = strings.TrimSpace(title)
	if err := validation.ValidateDeckTitle(title); err != nil {
		return nil, err
	}
	return s.deckRepo.CreateDeck(ctx, userID, title, s.clock.Now())
}

// ListDecks returns the user's decks, most recently updated first, with mastery
func (s *DeckService) ListDecks(ctx context.Context, userID int64) ([]models.DeckSummary, error) {
	stats, err := s.deckRepo.ListDeckStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.DeckSummary, 0, len(stats))
	for _, st := range stats {
		// Cards without progress count as level 0.
		var avg float64
		if st.TotalCards > 0 {
			avg = float64(st.LevelSum) / float64(st.TotalCards)
		}
		summaries = append(summaries, models.DeckSummary{
			Deck:                  st.Deck,
			TotalCards:            st.TotalCards,
			ReviewedCards:         st.ReviewedCards,
			AverageKnowledgeLevel: srs.RoundTenth(avg),
			MasteryPercent:        srs.MasteryPercent(avg),
		})
	}
	return summaries, nil
}

// GetDeck returns the deck with its cards in study order, or nil if not owned by the user
func (s *DeckService) GetDeck(ctx context.Context, userID, deckID int64) (*models.DeckWithCards, error) {
	deck, err := s.deckRepo.GetDeck(ctx, userID, deckID)
	if err != nil || deck == nil {
		return nil, err
	}
	cards, err := s.deckRepo.ListCards(ctx, deck.ID)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []models.Card{}
	}
	return &models.DeckWithCards{Deck: *deck, Cards: cards}, nil
}

// DeleteDeck removes a deck and everything under it
func (s *DeckService) DeleteDeck(ctx context.Context, userID, deckID int64) (bool, error) {
	return s.deckRepo.DeleteDeck(ctx, userID, deckID)
}

// CreateCard adds a card to a deck owned by the user. It returns nil when the deck is not found.
func (s *DeckService) CreateCard(ctx context.Context, userID, deckID int64, front, back string) (*models.Card, error) {
	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	if err := validation.ValidateCard(front, back); err != nil {
		return nil, err
	}

	var card *models.Card
	err := s.db.WithinTx(ctx, func(tx *database.Tx) error {
		decks := s.deckRepo.WithTx(tx)
		deck, err := decks.GetDeck(ctx, userID, deckID)
		if err != nil || deck == nil {
			return err
		}
		now := s.clock.Now()
		card, err = decks.CreateCard(ctx, deck.ID, front, back, now)
		if err != nil {
			return err
		}
		return decks.TouchDeck(ctx, deck.ID, now)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// DeleteCard removes a card. Study items keep their snapshots.
func (s *DeckService) DeleteCard(ctx context.Context, userID, deckID, cardID int64) (bool, error) {
	var deleted bool
	err := s.db.WithinTx(ctx, func(tx *database.Tx) error {
		decks := s.deckRepo.WithTx(tx)
		deck, err := decks.GetDeck(ctx, userID, deckID)
		if err != nil || deck == nil {
			return err
		}
		deleted, err = decks.DeleteCard(ctx, deck.ID, cardID)
		if err != nil || !deleted {
			return err
		}
		return decks.TouchDeck(ctx, deck.ID, s.clock.Now())
	})
	return deleted, err
}

// StudyCards returns every card of the deck with the user's progress, chapter and due flag.
// It returns nil when the deck is not found.
func (s *DeckService) StudyCards(ctx context.Context, userID, deckID int64) ([]models.StudyCard, error) {
	deck, err := s.deckRepo.GetDeck(ctx, userID, deckID)
	if err != nil || deck == nil {
		return nil, err
	}
	cards, err := s.deckRepo.ListCards(ctx, deck.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	progress, err := s.progressRepo.ListByCardIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]models.StudyCard, 0, len(cards))
	for _, a := range AssignChapters(cards, s.chapterSize) {
		p := models.DefaultProgress(userID, a.Card.ID, now)
		if existing, ok := progress[a.Card.ID]; ok {
			p = *existing
		}
		out = append(out, models.StudyCard{
			Card:     a.Card,
			Progress: p,
			Position: a.Position,
			Chapter:  a.Chapter,
			Due:      srs.IsDue(p.NextReviewAt, now),
		})
	}
	return out, nil
}

// DueCards returns the deck's cards that are due for review now
func (s *DeckService) DueCards(ctx context.Context, userID, deckID int64) ([]models.StudyCard, error) {
	cards, err := s.StudyCards(ctx, userID, deckID)
	if err != nil || cards == nil {
		return nil, err
	}
	due := make([]models.StudyCard, 0, len(cards))
	for _, c := range cards {
		if c.Due {
			due = append(due, c)
		}
	}
	return due, nil
}

// ChapterMastery returns the user's mastery per chapter using the study partitioning
func (s *DeckService) ChapterMastery(ctx context.Context, userID, deckID int64) ([]models.ChapterMastery, error) {
	cards, err := s.StudyCards(ctx, userID, deckID)
	if err != nil || cards == nil {
		return nil, err
	}

	var out []models.ChapterMastery
	var levels []srs.KnowledgeLevel
	flush := func(chapter int) {
		if len(levels) == 0 {
			return
		}
		avg := srs.AverageLevel(levels)
		out = append(out, models.ChapterMastery{
			ChapterNumber:  chapter,
			TotalCards:     len(levels),
			AverageLevel:   srs.RoundTenth(avg),
			MasteryPercent: srs.MasteryPercent(avg),
		})
		levels = levels[:0]
	}

	current := 1
	for _, c := range cards {
		if c.Chapter != current {
			flush(current)
			current = c.Chapter
		}
		levels = append(levels, c.Progress.KnowledgeLevel)
	}
	flush(current)
	return out, nil
}

// ChapterSize returns the configured chapter size
func (s *DeckService) ChapterSize() int {
	return s.chapterSize
}
