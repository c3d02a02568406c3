package service

import (
	"context"
	"testing"
	"time"

	"cards/internal/repository"
	"cards/internal/srs"
	"cards/internal/validation"
)

func TestCreateDeckValidation(t *testing.T) {
	env := newTestEnv(t, srs.PolicyStay)
	ctx := context.Background()

	if _, err := env.decks.CreateDeck(ctx, env.user.ID, "   "); !validation.IsValidationError(err) {
		t.Errorf("CreateDeck() blank title error = %v, want validation error", err)
	}
	deck, err := env.decks.CreateDeck(ctx, env.user.ID, "  Spanish  ")
	if err != nil {
		t.Fatalf("CreateDeck() error = %v", err)
	}
	if deck.Title != "Spanish" {
		t.Errorf("Title = %q, want trimmed", deck.Title)
	}
}

func TestCreateCardRequiresOwnedDeck(t *testing.T) {
	env := newTestEnv(t, srs.PolicyStay)
	ctx := context.Background()
	deck, _ := env.createDeck(t, env.user.ID, 0)
	other := env.createUser(t, "other@example.com")

	card, err := env.decks.CreateCard(ctx, other.ID, deck.ID, "front", "back")
	if err != nil || card != nil {
		t.Fatalf("CreateCard() on foreign deck = %v, %v, want nil, nil", card, err)
	}
	if _, err := env.decks.CreateCard(ctx, env.user.ID, deck.ID, "", "back"); !validation.IsValidationError(err) {
		t.Errorf("CreateCard() blank front error = %v, want validation error", err)
	}
	deleted, err := env.decks.DeleteCard(ctx, other.ID, deck.ID, 1)
	if err != nil || deleted {
		t.Errorf("DeleteCard() on foreign deck = %v, %v, want false, nil", deleted, err)
	}
}

func TestCreateCardTouchesDeck(t *testing.T) {
	env := newTestEnv(t, srs.PolicyStay)
	ctx := context.Background()
	older, _ := env.createDeck(t, env.user.ID, 0)
	env.clock.Advance(time.Minute)
	newer, _ := env.createDeck(t, env.user.ID, 0)

	env.clock.Advance(time.Minute)
	if _, err := env.decks.CreateCard(ctx, env.user.ID, older.ID, "front", "back"); err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}

	decks, err := env.decks.ListDecks(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("ListDecks() error = %v", err)
	}
	if len(decks) != 2 || decks[0].Deck.ID != older.ID || decks[1].Deck.ID != newer.ID {
		t.Errorf("ListDecks() order is wrong: %+v", decks)
	}
}

func TestListDecksMastery(t *testing.T) {
	env := newTestEnv(t, srs.PolicyStay)
	ctx := context.Background()
	_, cards := env.createDeck(t, env.user.ID, 3)

	progress := repository.NewProgressRepository(env.db)
	for i, level := range []srs.KnowledgeLevel{6, 0, 3} {
		p, err := progress.GetOrCreate(ctx, env.user.ID, cards[i].ID, testNow)
		if err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
		if err := progress.Update(ctx, p, level, testNow, testNow, testNow); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	decks, err := env.decks.ListDecks(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("ListDecks() error = %v", err)
	}
	if len(decks) != 1 {
		t.Fatalf("got %d decks, want 1", len(decks))
	}
	d := decks[0]
	if d.TotalCards != 3 || d.ReviewedCards != 3 {
		t.Errorf("cards = %d total %d reviewed, want 3 and 3", d.TotalCards, d.ReviewedCards)
	}
	if d.AverageKnowledgeLevel != 3.0 || d.MasteryPercent != 50 {
		t.Errorf("mastery = %v avg %d%%, want 3.0 and 50%%", d.AverageKnowledgeLevel, d.MasteryPercent)
	}
}

func TestListDecksUnreviewedCountAsZero(t *testing.T) {
	env := newTestEnv(t, srs.PolicyStay)
	ctx := context.Background()
	_, cards := env.createDeck(t, env.user.ID, 4)

	progress := repository.NewProgressRepository(env.db)
	p, err := progress.GetOrCreate(ctx, env.user.ID, cards[0].ID, testNow)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := progress.Update(ctx, p, 6, testNow, testNow, testNow); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	decks, err := env.decks.ListDecks(ctx, env.user.ID)
	if err != nil {
		t.Fatalf("ListDecks() error = %v", err)
	}
	if decks[0].AverageKnowledgeLevel != 1.5 || decks[0].MasteryPercent != 25 {
		t.Errorf("mastery = %v / %d%%, want 1.5 and 25%%", decks[0].AverageKnowledgeLevel, decks[0].MasteryPercent)
	}
}

func TestDueCards(t *testing.T) {
	env := newTestEnv(t, srs.PolicyStay)
	ctx := context.Background()
	deck, cards := env.createDeck(t, env.user.ID, 3)

	view, err := env.study.CreateSession(ctx, env.user.ID, deck.ID, nil, 8)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := env.study.ReviewItem(ctx, env.user.ID, view.Session.ID, view.Items[0].ID, srs.OutcomeCorrect); err != nil {
		t.Fatalf("ReviewItem() error = %v", err)
	}

	due, err := env.decks.DueCards(ctx, env.user.ID, deck.ID)
	if err != nil {
		t.Fatalf("DueCards() error = %v", err)
	}
	if len(due) != 2 || due[0].Card.ID != cards[1].ID || due[1].Card.ID != cards[2].ID {
		t.Fatalf("DueCards() = %+v, want the two unreviewed cards", due)
	}

	env.clock.Advance(srs.Day)
	due, err = env.decks.DueCards(ctx, env.user.ID, deck.ID)
	if err != nil {
		t.Fatalf("DueCards() error = %v", err)
	}
	if len(due) != 3 {
		t.Errorf("after a day got %d due cards, want 3", len(due))
	}

	other := env.createUser(t, "other@example.com")
	due, err = env.decks.DueCards(ctx, other.ID, deck.ID)
	if err != nil || due != nil {
		t.Errorf("DueCards() for another user = %v, %v, want nil, nil", due, err)
	}
}

func TestChapterMastery(t *testing.T) {
	env := newTestEnv(t, srs.PolicyStay)
	ctx := context.Background()
	deck, cards := env.createDeck(t, env.user.ID, 10)

	progress := repository.NewProgressRepository(env.db)
	p, err := progress.GetOrCreate(ctx, env.user.ID, cards[9].ID, testNow)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := progress.Update(ctx, p, 6, testNow, testNow, testNow); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	chapters, err := env.decks.ChapterMastery(ctx, env.user.ID, deck.ID)
	if err != nil {
		t.Fatalf("ChapterMastery() error = %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("got %d chapters, want 2", len(chapters))
	}
	if chapters[0].TotalCards != 8 || chapters[0].MasteryPercent != 0 {
		t.Errorf("chapter 1 = %+v", chapters[0])
	}
	if chapters[1].ChapterNumber != 2 || chapters[1].TotalCards != 2 || chapters[1].AverageLevel != 3 || chapters[1].MasteryPercent != 50 {
		t.Errorf("chapter 2 = %+v", chapters[1])
	}
}

func TestGetAndDeleteDeck(t *testing.T) {
	env := newTestEnv(t, srs.PolicyStay)
	ctx := context.Background()
	deck, cards := env.createDeck(t, env.user.ID, 3)

	got, err := env.decks.GetDeck(ctx, env.user.ID, deck.ID)
	if err != nil {
		t.Fatalf("GetDeck() error = %v", err)
	}
	if len(got.Cards) != 3 || got.Cards[0].ID != cards[0].ID {
		t.Errorf("GetDeck() cards = %+v", got.Cards)
	}

	if _, err := env.study.CreateSession(ctx, env.user.ID, deck.ID, nil, 8); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	deleted, err := env.decks.DeleteDeck(ctx, env.user.ID, deck.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteDeck() = %v, %v", deleted, err)
	}
	got, err = env.decks.GetDeck(ctx, env.user.ID, deck.ID)
	if err != nil || got != nil {
		t.Errorf("GetDeck() after delete = %v, %v", got, err)
	}
}
