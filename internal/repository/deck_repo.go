package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cards/internal/database"
	"cards/internal/models"
)

// DeckRepository handles database operations for decks and cards
type DeckRepository struct {
	db database.DBTX
}

// NewDeckRepository creates a new deck repository
func NewDeckRepository(db database.DBTX) *DeckRepository {
	return &DeckRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *DeckRepository) WithTx(tx database.DBTX) *DeckRepository {
	return &DeckRepository{db: tx}
}

// DeckStats is a deck joined with aggregate progress for one user
type DeckStats struct {
	Deck          models.Deck
	TotalCards    int
	ReviewedCards int
	LevelSum      int
}

// CreateDeck inserts a new deck for a user
func (r *DeckRepository) CreateDeck(ctx context.Context, userID int64, title string, now time.Time) (*models.Deck, error) {
	now = now.UTC()
	query := `INSERT INTO decks (user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`
	id, err := r.db.ExecReturningID(ctx, query, userID, title, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create deck: %w", err)
	}

	return &models.Deck{
		ID:        id,
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetDeck retrieves a deck owned by userID; it returns nil when absent or owned by someone else
func (r *DeckRepository) GetDeck(ctx context.Context, userID, deckID int64) (*models.Deck, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM decks
		WHERE id = ? AND user_id = ?
	`
	deck := &models.Deck{}
	err := r.db.QueryRowContext(ctx, query, deckID, userID).Scan(
		&deck.ID,
		&deck.UserID,
		&deck.Title,
		&deck.CreatedAt,
		&deck.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	deck.CreatedAt = deck.CreatedAt.UTC()
	deck.UpdatedAt = deck.UpdatedAt.UTC()
	return deck, nil
}

// ListDeckStats returns the user's decks, most recently updated first, with card and progress totals
func (r *DeckRepository) ListDeckStats(ctx context.Context, userID int64) ([]DeckStats, error) {
	query := `
		SELECT d.id, d.user_id, d.title, d.created_at, d.updated_at,
			COUNT(c.id), COUNT(p.last_reviewed_at), COALESCE(SUM(p.knowledge_level), 0)
		FROM decks d
		LEFT JOIN cards c ON c.deck_id = d.id
		LEFT JOIN card_progress p ON p.card_id = c.id AND p.user_id = ?
		WHERE d.user_id = ?
		GROUP BY d.id, d.user_id, d.title, d.created_at, d.updated_at
		ORDER BY d.updated_at DESC, d.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	var stats []DeckStats
	for rows.Next() {
		var s DeckStats
		if err := rows.Scan(
			&s.Deck.ID,
			&s.Deck.UserID,
			&s.Deck.Title,
			&s.Deck.CreatedAt,
			&s.Deck.UpdatedAt,
			&s.TotalCards,
			&s.ReviewedCards,
			&s.LevelSum,
		); err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		s.Deck.CreatedAt = s.Deck.CreatedAt.UTC()
		s.Deck.UpdatedAt = s.Deck.UpdatedAt.UTC()
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ListAllDecks returns every deck ordered by ID
func (r *DeckRepository) ListAllDecks(ctx context.Context) ([]models.Deck, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, title, created_at, updated_at FROM decks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	var decks []models.Deck
	for rows.Next() {
		var d models.Deck
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		d.CreatedAt = d.CreatedAt.UTC()
		d.UpdatedAt = d.UpdatedAt.UTC()
		decks = append(decks, d)
	}
	return decks, rows.Err()
}

// DeleteDeck removes a deck owned by userID. Cards, progress and sessions cascade.
func (r *DeckRepository) DeleteDeck(ctx context.Context, userID, deckID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM decks WHERE id = ? AND user_id = ?", deckID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete deck: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// DeleteDecksByTitle removes a user's decks with the given title
func (r *DeckRepository) DeleteDecksByTitle(ctx context.Context, userID int64, title string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM decks WHERE user_id = ? AND title = ?", userID, title); err != nil {
		return fmt.Errorf("failed to delete decks: %w", err)
	}
	return nil
}

// TouchDeck bumps a deck's updated_at
func (r *DeckRepository) TouchDeck(ctx context.Context, deckID int64, now time.Time) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE decks SET updated_at = ? WHERE id = ?", now.UTC(), deckID); err != nil {
		return fmt.Errorf("failed to touch deck: %w", err)
	}
	return nil
}

// CreateCard inserts a card into a deck
func (r *DeckRepository) CreateCard(ctx context.Context, deckID int64, front, back string, now time.Time) (*models.Card, error) {
	now = now.UTC()
	query := `INSERT INTO cards (deck_id, front, back, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	id, err := r.db.ExecReturningID(ctx, query, deckID, front, back, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	return &models.Card{
		ID:        id,
		DeckID:    deckID,
		Front:     front,
		Back:      back,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DeleteCard removes a card from a deck. Study items keep their snapshots.
func (r *DeckRepository) DeleteCard(ctx context.Context, deckID, cardID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ? AND deck_id = ?", cardID, deckID)
	if err != nil {
		return false, fmt.Errorf("failed to delete card: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ListCards returns a deck's cards in stable study order
func (r *DeckRepository) ListCards(ctx context.Context, deckID int64) ([]models.Card, error) {
	query := `
		SELECT id, deck_id, front, back, created_at, updated_at
		FROM cards
		WHERE deck_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return r.queryCards(ctx, query, deckID)
}

// ListAllCards returns every card ordered by ID
func (r *DeckRepository) ListAllCards(ctx context.Context) ([]models.Card, error) {
	return r.queryCards(ctx, `SELECT id, deck_id, front, back, created_at, updated_at FROM cards ORDER BY id`)
}

func (r *DeckRepository) queryCards(ctx context.Context, query string, args ...interface{}) ([]models.Card, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.ID, &c.DeckID, &c.Front, &c.Back, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// CardExists reports whether the card is still present
func (r *DeckRepository) CardExists(ctx context.Context, cardID int64) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cards WHERE id = ?", cardID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check card: %w", err)
	}
	return count > 0, nil
}
