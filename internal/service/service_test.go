package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cards/internal/clock"
	"cards/internal/database"
	"cards/internal/models"
	"cards/internal/repository"
	"cards/internal/srs"
)

var testNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	db    *database.DB
	clock *clock.Manual
	decks *DeckService
	study *StudyService
	user  *models.User
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestEnv(t *testing.T, policy srs.IncorrectPolicy) *testEnv {
	t.Helper()
	db := newTestDB(t)
	c := clock.NewManual(testNow)
	scheduler, err := srs.NewScheduler(srs.SchedulerConfig{IncorrectPolicy: policy, Clock: c})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	env := &testEnv{
		db:    db,
		clock: c,
		decks: NewDeckService(db, c, 8),
		study: NewStudyService(db, scheduler, c, 8),
	}
	env.user = env.createUser(t, "learner@example.com")
	return env
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := repository.NewUserRepository(e.db).CreateUser(context.Background(), email, "hash", testNow)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return user
}

// createDeck adds a deck with n cards, one second apart so their order is stable.
func (e *testEnv) createDeck(t *testing.T, userID int64, n int) (*models.Deck, []models.Card) {
	t.Helper()
	ctx := context.Background()
	deck, err := e.decks.CreateDeck(ctx, userID, "Deck")
	if err != nil {
		t.Fatalf("CreateDeck() error = %v", err)
	}
	var cards []models.Card
	for i := 0; i < n; i++ {
		card, err := e.decks.CreateCard(ctx, userID, deck.ID, fmt.Sprintf("front %d", i), fmt.Sprintf("back %d", i))
		if err != nil {
			t.Fatalf("CreateCard() error = %v", err)
		}
		cards = append(cards, *card)
		e.clock.Advance(time.Second)
	}
	return deck, cards
}

func intRef(n int) *int {
	return &n
}
