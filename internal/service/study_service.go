package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cards/internal/clock"
	"cards/internal/database"
	"cards/internal/models"
	"cards/internal/repository"
	"cards/internal/srs"
)

var (
	ErrNoCardsToStudy      = errors.New("no cards to study")
	ErrItemAlreadyReviewed = errors.New("study item already reviewed")
	ErrSessionClosed       = errors.New("study session is closed")
)

// maxReviewAttempts bounds retries after a lost progress compare-and-swap
const maxReviewAttempts = 3

// StudyService runs chaptered study sessions over a deck
type StudyService struct {
	db           *database.DB
	deckRepo     *repository.DeckRepository
	progressRepo *repository.ProgressRepository
	studyRepo    *repository.StudyRepository
	scheduler    *srs.Scheduler
	clock        clock.Clock
	chapterSize  int
}

// NewStudyService creates a new study service
func NewStudyService(db *database.DB, scheduler *srs.Scheduler, c clock.Clock, chapterSize int) *StudyService {
	return &StudyService{
		db:           db,
		deckRepo:     repository.NewDeckRepository(db),
		progressRepo: repository.NewProgressRepository(db),
		studyRepo:    repository.NewStudyRepository(db),
		scheduler:    scheduler,
		clock:        clock.OrSystem(c),
		chapterSize:  normalizeChapterSize(chapterSize),
	}
}

// ChapterSize returns the default chapter size
func (s *StudyService) ChapterSize() int {
	return s.chapterSize
}

func (s *StudyService) sizeOrDefault(size int) int {
	if size < 1 {
		return s.chapterSize
	}
	return size
}

// buildSession snapshots the selected cards of a deck. It returns nil when the deck is not
// owned by userID.
func (s *StudyService) buildSession(ctx context.Context, tx database.DBTX, userID, deckID int64, chapter *int, chapterSize int, now time.Time) (*models.StudySession, []models.StudyItem, error) {
	decks := s.deckRepo.WithTx(tx)
	deck, err := decks.GetDeck(ctx, userID, deckID)
	if err != nil {
		return nil, nil, err
	}
	if deck == nil {
		return nil, nil, nil
	}

	cards, err := decks.ListCards(ctx, deckID)
	if err != nil {
		return nil, nil, err
	}

	var selected []ChapterAssignment
	for _, a := range AssignChapters(cards, chapterSize) {
		if chapter != nil && a.Chapter != *chapter {
			continue
		}
		selected = append(selected, a)
	}
	if len(selected) == 0 {
		return nil, nil, ErrNoCardsToStudy
	}

	ids := make([]int64, len(selected))
	for i, a := range selected {
		ids[i] = a.Card.ID
	}
	progress, err := s.progressRepo.WithTx(tx).ListByCardIDs(ctx, userID, ids)
	if err != nil {
		return nil, nil, err
	}

	items := make([]models.StudyItem, len(selected))
	for i, a := range selected {
		cardID := a.Card.ID
		level := srs.MinKnowledgeLevel
		if p, ok := progress[cardID]; ok {
			level = p.KnowledgeLevel
		}
		items[i] = models.StudyItem{
			CardID:           &cardID,
			Position:         a.Position,
			ChapterNumber:    a.Chapter,
			FrontSnapshot:    a.Card.Front,
			BackSnapshot:     a.Card.Back,
			KnowledgeAtStart: level,
		}
	}

	session := &models.StudySession{
		UserID:        userID,
		DeckID:        deckID,
		ChapterNumber: chapter,
		ChapterSize:   chapterSize,
		CreatedAt:     now.UTC(),
	}
	return session, items, nil
}

// CreateSession snapshots the deck, or one chapter of it, into a new session.
// It returns nil when the deck does not exist or belongs to someone else.
func (s *StudyService) CreateSession(ctx context.Context, userID, deckID int64, chapter *int, chapterSize int) (*models.StudySessionView, error) {
	chapterSize = s.sizeOrDefault(chapterSize)
	var view *models.StudySessionView
	err := s.db.WithinTx(ctx, func(tx *database.Tx) error {
		session, items, err := s.buildSession(ctx, tx, userID, deckID, chapter, chapterSize, s.clock.Now())
		if err != nil || session == nil {
			return err
		}
		if err := s.studyRepo.WithTx(tx).CreateSession(ctx, session, items); err != nil {
			return err
		}
		view = &models.StudySessionView{Session: *session, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetOrCreateSession returns the newest open session for the deck that covers chapter,
// creating one scoped to chapter when none exists. An open whole-deck session covers every chapter.
func (s *StudyService) GetOrCreateSession(ctx context.Context, userID, deckID int64, chapter *int, chapterSize int) (*models.StudySessionView, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.studyRepo.FindOpenSession(ctx, userID, deckID, chapter)
		if err != nil {
			return nil, fmt.Errorf("failed to find open session: %w", err)
		}
		if existing != nil {
			return s.GetSession(ctx, userID, existing.ID)
		}

		view, err := s.CreateSession(ctx, userID, deckID, chapter, chapterSize)
		if errors.Is(err, repository.ErrOpenSessionExists) {
			// Lost the race to a concurrent create; read the winner.
			continue
		}
		return view, err
	}
	return nil, repository.ErrOpenSessionExists
}

// StartNewSession abandons any open session in the same slot and creates a fresh one
func (s *StudyService) StartNewSession(ctx context.Context, userID, deckID int64, chapter *int, chapterSize int) (*models.StudySessionView, error) {
	chapterSize = s.sizeOrDefault(chapterSize)
	now := s.clock.Now()
	var view *models.StudySessionView
	err := s.db.WithinTx(ctx, func(tx *database.Tx) error {
		session, items, err := s.buildSession(ctx, tx, userID, deckID, chapter, chapterSize, now)
		if err != nil || session == nil {
			return err
		}
		studies := s.studyRepo.WithTx(tx)
		if _, err := studies.AbandonOpenSession(ctx, userID, deckID, chapter, now); err != nil {
			return err
		}
		if err := studies.CreateSession(ctx, session, items); err != nil {
			return err
		}
		view = &models.StudySessionView{Session: *session, Items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// GetSession returns the session with its items, or nil when absent or not owned by userID
func (s *StudyService) GetSession(ctx context.Context, userID, sessionID int64) (*models.StudySessionView, error) {
	session, err := s.studyRepo.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	items, err := s.studyRepo.ListItems(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &models.StudySessionView{Session: *session, Items: items}, nil
}

// ReviewItem records outcome for an item at the current time
func (s *StudyService) ReviewItem(ctx context.Context, userID, sessionID, itemID int64, outcome srs.Outcome) (*models.StudyItem, error) {
	return s.ReviewItemAt(ctx, userID, sessionID, itemID, outcome, s.clock.Now())
}

// ReviewItemAt records outcome for an item, advances the card's progress and completes the
// session once every item is reviewed. It returns nil when the item is not found for userID.
func (s *StudyService) ReviewItemAt(ctx context.Context, userID, sessionID, itemID int64, outcome srs.Outcome, reviewedAt time.Time) (*models.StudyItem, error) {
	if _, err := srs.ParseOutcome(string(outcome)); err != nil {
		return nil, err
	}
	reviewedAt = reviewedAt.UTC()

	var item *models.StudyItem
	var err error
	for attempt := 0; attempt < maxReviewAttempts; attempt++ {
		item, err = s.reviewOnce(ctx, userID, sessionID, itemID, outcome, reviewedAt)
		if !errors.Is(err, repository.ErrProgressConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *StudyService) reviewOnce(ctx context.Context, userID, sessionID, itemID int64, outcome srs.Outcome, reviewedAt time.Time) (*models.StudyItem, error) {
	var result *models.StudyItem
	err := s.db.WithinTx(ctx, func(tx *database.Tx) error {
		studies := s.studyRepo.WithTx(tx)
		item, session, err := studies.GetItemForUser(ctx, userID, sessionID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		if session.AbandonedAt != nil {
			return ErrSessionClosed
		}
		if item.IsReviewed() {
			return ErrItemAlreadyReviewed
		}

		knowledgeAfter := item.KnowledgeAtStart
		live := false
		if item.CardID != nil {
			live, err = s.deckRepo.WithTx(tx).CardExists(ctx, *item.CardID)
			if err != nil {
				return err
			}
		}
		if live {
			progressRepo := s.progressRepo.WithTx(tx)
			progress, err := progressRepo.GetOrCreate(ctx, userID, *item.CardID, reviewedAt)
			if err != nil {
				return err
			}
			schedule := s.scheduler.ReviewAt(progress.KnowledgeLevel, outcome, reviewedAt)
			if err := progressRepo.Update(ctx, progress, schedule.NextLevel, reviewedAt, schedule.NextReviewAt, reviewedAt); err != nil {
				return err
			}
			knowledgeAfter = schedule.NextLevel
		}

		stamped, err := studies.MarkItemReviewed(ctx, item.ID, outcome, knowledgeAfter, reviewedAt)
		if err != nil {
			return err
		}
		if !stamped {
			return ErrItemAlreadyReviewed
		}

		remaining, err := studies.CountUnreviewed(ctx, session.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if _, err := studies.CompleteSession(ctx, session.ID, reviewedAt); err != nil {
				return err
			}
		}

		o := outcome
		item.ReviewedAt = &reviewedAt
		item.Outcome = &o
		item.KnowledgeAfter = &knowledgeAfter
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
