package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cards/internal/database"
	"cards/internal/models"
	"cards/internal/srs"
)

var testNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	db       *database.DB
	users    *UserRepository
	decks    *DeckRepository
	progress *ProgressRepository
	study    *StudyRepository
	user     *models.User
	deck     *models.Deck
	cards    []models.Card
}

func newFixture(t *testing.T, cardCount int) *fixture {
	t.Helper()
	ctx := context.Background()
	db := newTestDB(t)
	f := &fixture{
		db:       db,
		users:    NewUserRepository(db),
		decks:    NewDeckRepository(db),
		progress: NewProgressRepository(db),
		study:    NewStudyRepository(db),
	}

	var err error
	f.user, err = f.users.CreateUser(ctx, "learner@example.com", "hash", testNow)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	f.deck, err = f.decks.CreateDeck(ctx, f.user.ID, "Spanish", testNow)
	if err != nil {
		t.Fatalf("CreateDeck() error = %v", err)
	}
	for i := 0; i < cardCount; i++ {
		card, err := f.decks.CreateCard(ctx, f.deck.ID, "front", "back", testNow.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("CreateCard() error = %v", err)
		}
		f.cards = append(f.cards, *card)
	}
	return f
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.users.CreateUser(context.Background(), "learner@example.com", "other", testNow)
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("CreateUser() error = %v, want ErrEmailExists", err)
	}
}

func TestUserLookups(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	got, err := f.users.GetUserByEmail(ctx, "learner@example.com")
	if err != nil || got == nil {
		t.Fatalf("GetUserByEmail() = %v, %v", got, err)
	}
	if got.ID != f.user.ID {
		t.Errorf("ID = %d, want %d", got.ID, f.user.ID)
	}

	missing, err := f.users.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("GetUserByEmail(unknown) = %v, %v; want nil, nil", missing, err)
	}

	if err := f.users.LinkOAuthProvider(ctx, f.user.ID, "google", "sub-1", testNow); err != nil {
		t.Fatalf("LinkOAuthProvider() error = %v", err)
	}
	linked, err := f.users.GetUserByOAuth(ctx, "google", "sub-1")
	if err != nil || linked == nil || linked.ID != f.user.ID {
		t.Fatalf("GetUserByOAuth() = %v, %v", linked, err)
	}
}

func TestSessionsAndResetTokens(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	if _, err := f.users.CreateSession(ctx, "live", f.user.ID, testNow.Add(time.Hour), testNow); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := f.users.CreateSession(ctx, "stale", f.user.ID, testNow.Add(-time.Hour), testNow); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	n, err := f.users.DeleteExpiredSessions(ctx, testNow)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d sessions, want 1", n)
	}
	if s, _ := f.users.GetSession(ctx, "live"); s == nil {
		t.Error("live session was deleted")
	}

	if err := f.users.CreateResetToken(ctx, f.user.ID, "hash-1", testNow.Add(time.Hour), testNow); err != nil {
		t.Fatalf("CreateResetToken() error = %v", err)
	}
	token, err := f.users.GetResetToken(ctx, "hash-1")
	if err != nil || token == nil {
		t.Fatalf("GetResetToken() = %v, %v", token, err)
	}
	deleted, err := f.users.DeleteResetToken(ctx, token.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteResetToken() = %v, %v", deleted, err)
	}
	deleted, _ = f.users.DeleteResetToken(ctx, token.ID)
	if deleted {
		t.Error("a token can only be consumed once")
	}
}

func TestListDeckStats(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	levels := []srs.KnowledgeLevel{6, 0, 3}
	for i, level := range levels {
		p, err := f.progress.GetOrCreate(ctx, f.user.ID, f.cards[i].ID, testNow)
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if err := f.progress.Update(ctx, p, level, testNow, testNow.Add(srs.Day), testNow); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	stats, err := f.decks.ListDeckStats(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("ListDeckStats() error = %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d decks, want 1", len(stats))
	}
	if stats[0].TotalCards != 3 || stats[0].ReviewedCards != 3 || stats[0].LevelSum != 9 {
		t.Errorf("stats = %+v, want 3 cards, 3 reviewed, level sum 9", stats[0])
	}
}

func TestGetDeckScopedToOwner(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	other, err := f.users.CreateUser(ctx, "other@example.com", "hash", testNow)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	deck, err := f.decks.GetDeck(ctx, other.ID, f.deck.ID)
	if err != nil {
		t.Fatalf("GetDeck() error = %v", err)
	}
	if deck != nil {
		t.Error("another user's deck must not be visible")
	}
}

func TestListCardsStableOrder(t *testing.T) {
	f := newFixture(t, 4)
	cards, err := f.decks.ListCards(context.Background(), f.deck.ID)
	if err != nil {
		t.Fatalf("ListCards() error = %v", err)
	}
	for i := range cards {
		if cards[i].ID != f.cards[i].ID {
			t.Fatalf("card %d = %d, want %d", i, cards[i].ID, f.cards[i].ID)
		}
	}
}

func TestProgressGetOrCreateIsIdempotent(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	first, err := f.progress.GetOrCreate(ctx, f.user.ID, f.cards[0].ID, testNow)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	second, err := f.progress.GetOrCreate(ctx, f.user.ID, f.cards[0].ID, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("GetOrCreate() created two rows: %d and %d", first.ID, second.ID)
	}
	if first.KnowledgeLevel != 0 || !first.NextReviewAt.Equal(testNow) || first.LastReviewedAt != nil {
		t.Errorf("new progress = %+v, want level 0 due now", first)
	}
	if !second.NextReviewAt.Equal(testNow) {
		t.Errorf("second call changed NextReviewAt to %v", second.NextReviewAt)
	}
}

func TestProgressUpdateCompareAndSwap(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	p, err := f.progress.GetOrCreate(ctx, f.user.ID, f.cards[0].ID, testNow)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	stale := *p

	next := testNow.Add(srs.Day)
	if err := f.progress.Update(ctx, p, 1, testNow, next, testNow); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.Version != stale.Version+1 || p.KnowledgeLevel != 1 {
		t.Errorf("after update p = %+v", p)
	}

	if err := f.progress.Update(ctx, &stale, 1, testNow, next, testNow); !errors.Is(err, ErrProgressConflict) {
		t.Fatalf("stale Update() error = %v, want ErrProgressConflict", err)
	}

	stored, err := f.progress.Get(ctx, f.user.ID, f.cards[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.KnowledgeLevel != 1 || !stored.NextReviewAt.Equal(next) {
		t.Errorf("stored = %+v", stored)
	}
	if stored.LastReviewedAt == nil || !stored.LastReviewedAt.Equal(testNow) {
		t.Errorf("LastReviewedAt = %v, want %v", stored.LastReviewedAt, testNow)
	}
}

func TestProgressListByCardIDs(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	if _, err := f.progress.GetOrCreate(ctx, f.user.ID, f.cards[1].ID, testNow); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	got, err := f.progress.ListByCardIDs(ctx, f.user.ID, []int64{f.cards[0].ID, f.cards[1].ID, f.cards[2].ID})
	if err != nil {
		t.Fatalf("ListByCardIDs() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if _, ok := got[f.cards[1].ID]; !ok {
		t.Error("missing progress for card 1")
	}

	empty, err := f.progress.ListByCardIDs(ctx, f.user.ID, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListByCardIDs(nil) = %v, %v", empty, err)
	}
}

func newSession(f *fixture, chapter *int, cards []models.Card) (*models.StudySession, []models.StudyItem) {
	session := &models.StudySession{
		UserID:        f.user.ID,
		DeckID:        f.deck.ID,
		ChapterNumber: chapter,
		ChapterSize:   2,
		CreatedAt:     testNow,
	}
	var items []models.StudyItem
	for i, c := range cards {
		id := c.ID
		items = append(items, models.StudyItem{
			CardID:        &id,
			Position:      i,
			ChapterNumber: i/2 + 1,
			FrontSnapshot: c.Front,
			BackSnapshot:  c.Back,
		})
	}
	return session, items
}

func TestCreateSessionOpenSlotUnique(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	session, items := newSession(f, nil, f.cards)
	if err := f.study.CreateSession(ctx, session, items); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.ID == 0 || items[0].ID == 0 || items[0].SessionID != session.ID {
		t.Fatalf("IDs not assigned: session %+v items %+v", session, items)
	}

	dup, dupItems := newSession(f, nil, f.cards)
	if err := f.study.CreateSession(ctx, dup, dupItems); !errors.Is(err, ErrOpenSessionExists) {
		t.Fatalf("second CreateSession() error = %v, want ErrOpenSessionExists", err)
	}

	one := 1
	chapterSession, chapterItems := newSession(f, &one, f.cards)
	if err := f.study.CreateSession(ctx, chapterSession, chapterItems); err != nil {
		t.Fatalf("chapter session in a different slot should be allowed: %v", err)
	}
}

func TestFindOpenSessionByChapter(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	two := 2
	session, items := newSession(f, &two, f.cards[2:])
	for i := range items {
		items[i].Position = i + 2
		items[i].ChapterNumber = 2
	}
	if err := f.study.CreateSession(ctx, session, items); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	found, err := f.study.FindOpenSession(ctx, f.user.ID, f.deck.ID, &two)
	if err != nil || found == nil || found.ID != session.ID {
		t.Fatalf("FindOpenSession(2) = %v, %v", found, err)
	}
	if found.ChapterNumber == nil || *found.ChapterNumber != 2 {
		t.Errorf("ChapterNumber = %v, want 2", found.ChapterNumber)
	}

	one := 1
	none, err := f.study.FindOpenSession(ctx, f.user.ID, f.deck.ID, &one)
	if err != nil || none != nil {
		t.Errorf("FindOpenSession(1) = %v, %v; want nil", none, err)
	}

	anyOpen, err := f.study.FindOpenSession(ctx, f.user.ID, f.deck.ID, nil)
	if err != nil || anyOpen == nil {
		t.Errorf("FindOpenSession(nil) = %v, %v; want the chapter session", anyOpen, err)
	}
}

func TestReviewStampsAndCompletion(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	session, items := newSession(f, nil, f.cards)
	if err := f.study.CreateSession(ctx, session, items); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	item, owner, err := f.study.GetItemForUser(ctx, f.user.ID, session.ID, items[0].ID)
	if err != nil || item == nil || owner == nil {
		t.Fatalf("GetItemForUser() = %v, %v, %v", item, owner, err)
	}
	if item.IsReviewed() {
		t.Fatal("new item should be unreviewed")
	}

	ok, err := f.study.MarkItemReviewed(ctx, item.ID, srs.OutcomeCorrect, 1, testNow)
	if err != nil || !ok {
		t.Fatalf("MarkItemReviewed() = %v, %v", ok, err)
	}
	ok, err = f.study.MarkItemReviewed(ctx, item.ID, srs.OutcomeIncorrect, 0, testNow.Add(time.Hour))
	if err != nil || ok {
		t.Fatalf("second MarkItemReviewed() = %v, %v; want false", ok, err)
	}

	remaining, err := f.study.CountUnreviewed(ctx, session.ID)
	if err != nil || remaining != 0 {
		t.Fatalf("CountUnreviewed() = %d, %v", remaining, err)
	}

	done, err := f.study.CompleteSession(ctx, session.ID, testNow)
	if err != nil || !done {
		t.Fatalf("CompleteSession() = %v, %v", done, err)
	}
	done, _ = f.study.CompleteSession(ctx, session.ID, testNow.Add(time.Hour))
	if done {
		t.Error("completion stamp must only be set once")
	}

	stored, err := f.study.GetSession(ctx, f.user.ID, session.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetSession() = %v, %v", stored, err)
	}
	if stored.CompletedAt == nil || !stored.CompletedAt.Equal(testNow) {
		t.Errorf("CompletedAt = %v, want %v", stored.CompletedAt, testNow)
	}

	reviewed, err := f.study.ListItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if *reviewed[0].Outcome != srs.OutcomeCorrect || *reviewed[0].KnowledgeAfter != 1 {
		t.Errorf("item = %+v, want first stamp kept", reviewed[0])
	}

	// The completed session frees its slot.
	next, nextItems := newSession(f, nil, f.cards)
	if err := f.study.CreateSession(ctx, next, nextItems); err != nil {
		t.Errorf("CreateSession() after completion error = %v", err)
	}
}

func TestGetItemForUserScoping(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	session, items := newSession(f, nil, f.cards)
	if err := f.study.CreateSession(ctx, session, items); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	other, err := f.users.CreateUser(ctx, "other@example.com", "hash", testNow)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	tests := []struct {
		name      string
		userID    int64
		sessionID int64
	}{
		{name: "wrong user", userID: other.ID, sessionID: session.ID},
		{name: "wrong session", userID: f.user.ID, sessionID: session.ID + 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, s, err := f.study.GetItemForUser(ctx, tt.userID, tt.sessionID, items[0].ID)
			if err != nil {
				t.Fatalf("GetItemForUser() error = %v", err)
			}
			if item != nil || s != nil {
				t.Error("expected not found")
			}
		})
	}
}

func TestAbandonOpenSessionFreesSlot(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	session, items := newSession(f, nil, f.cards)
	if err := f.study.CreateSession(ctx, session, items); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	n, err := f.study.AbandonOpenSession(ctx, f.user.ID, f.deck.ID, nil, testNow)
	if err != nil || n != 1 {
		t.Fatalf("AbandonOpenSession() = %d, %v", n, err)
	}

	open, err := f.study.FindOpenSession(ctx, f.user.ID, f.deck.ID, nil)
	if err != nil || open != nil {
		t.Fatalf("FindOpenSession() = %v, %v; want nil after abandon", open, err)
	}

	next, nextItems := newSession(f, nil, f.cards)
	if err := f.study.CreateSession(ctx, next, nextItems); err != nil {
		t.Errorf("CreateSession() after abandon error = %v", err)
	}
}

func TestDeletedCardKeepsSnapshot(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	session, items := newSession(f, nil, f.cards)
	if err := f.study.CreateSession(ctx, session, items); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	deleted, err := f.decks.DeleteCard(ctx, f.deck.ID, f.cards[0].ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteCard() = %v, %v", deleted, err)
	}

	stored, err := f.study.ListItems(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d items, want 1", len(stored))
	}
	if stored[0].CardID != nil {
		t.Errorf("CardID = %v, want nil after card deletion", *stored[0].CardID)
	}
	if stored[0].FrontSnapshot != "front" {
		t.Errorf("FrontSnapshot = %q", stored[0].FrontSnapshot)
	}
}
