package service

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"

	"cards/internal/clock"
	"cards/internal/database"
	"cards/internal/repository"
	"cards/internal/security"
)

const (
	SeedEmail    = "seed@example.com"
	SeedPassword = "password123"
)

//go:embed seed/decks.json
var seedDecksJSON []byte

// SeedDeck is a demo deck and its cards
type SeedDeck struct {
	Title string     `json:"title"`
	Cards []SeedCard `json:"cards"`
}

// SeedCard is one demo card
type SeedCard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// SeedDecks returns the bundled demo decks
func SeedDecks() ([]SeedDeck, error) {
	var decks []SeedDeck
	if err := json.Unmarshal(seedDecksJSON, &decks); err != nil {
		return nil, fmt.Errorf("failed to parse seed decks: %w", err)
	}
	return decks, nil
}

// SeedService loads the demo account
type SeedService struct {
	db    *database.DB
	clock clock.Clock
}

// NewSeedService creates a new seed service
func NewSeedService(db *database.DB, c clock.Clock) *SeedService {
	return &SeedService{db: db, clock: clock.OrSystem(c)}
}

// SeedDemoData creates or resets the demo user and recreates its demo decks.
// Running it again leaves the same data in place.
func (s *SeedService) SeedDemoData(ctx context.Context) error {
	decks, err := SeedDecks()
	if err != nil {
		return err
	}
	passwordHash, err := security.HashPassword(SeedPassword)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.db.WithinTx(ctx, func(tx *database.Tx) error {
		users := repository.NewUserRepository(tx)
		user, err := users.GetUserByEmail(ctx, SeedEmail)
		if err != nil {
			return err
		}
		if user == nil {
			if user, err = users.CreateUser(ctx, SeedEmail, passwordHash, now); err != nil {
				return err
			}
		} else if err := users.UpdatePassword(ctx, user.ID, passwordHash, now); err != nil {
			return err
		}

		deckRepo := repository.NewDeckRepository(tx)
		for _, d := range decks {
			if err := deckRepo.DeleteDecksByTitle(ctx, user.ID, d.Title); err != nil {
				return err
			}
			deck, err := deckRepo.CreateDeck(ctx, user.ID, d.Title, now)
			if err != nil {
				return err
			}
			for _, c := range d.Cards {
				if _, err := deckRepo.CreateCard(ctx, deck.ID, c.Front, c.Back, now); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}

	log.Printf("Seed complete: %d decks created for %s", len(decks), SeedEmail)
	return nil
}
