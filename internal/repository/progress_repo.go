package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cards/internal/database"
	"cards/internal/models"
	"cards/internal/srs"
)

// ErrProgressConflict is returned when a progress row changed since it was read
var ErrProgressConflict = errors.New("card progress was modified concurrently")

// ProgressRepository stores per-user card progress
type ProgressRepository struct {
	db database.DBTX
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db database.DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *ProgressRepository) WithTx(tx database.DBTX) *ProgressRepository {
	return &ProgressRepository{db: tx}
}

const progressColumns = `id, user_id, card_id, knowledge_level, next_review_at, last_reviewed_at, version, created_at, updated_at`

func scanProgress(row interface{ Scan(...interface{}) error }) (*models.CardProgress, error) {
	p := &models.CardProgress{}
	var level int
	var lastReviewed sql.NullTime
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.CardID,
		&level,
		&p.NextReviewAt,
		&lastReviewed,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.KnowledgeLevel = srs.ClampLevel(level)
	p.NextReviewAt = p.NextReviewAt.UTC()
	p.LastReviewedAt = timePtr(lastReviewed)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// Get returns the progress for (userID, cardID), or nil if the card was never reviewed
func (r *ProgressRepository) Get(ctx context.Context, userID, cardID int64) (*models.CardProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM card_progress WHERE user_id = ? AND card_id = ?`
	p, err := scanProgress(r.db.QueryRowContext(ctx, query, userID, cardID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return p, nil
}

// GetOrCreate returns the progress for (userID, cardID), creating it at level 0 and due now.
// Concurrent callers converge on the same row through the (user_id, card_id) unique key.
func (r *ProgressRepository) GetOrCreate(ctx context.Context, userID, cardID int64, now time.Time) (*models.CardProgress, error) {
	now = now.UTC()
	dialect := r.db.GetDialect()
	query := dialect.InsertIgnoreQuery("card_progress",
		[]string{"user_id", "card_id", "knowledge_level", "next_review_at", "version", "created_at", "updated_at"},
		[]string{"user_id", "card_id"})
	if _, err := r.db.ExecContext(ctx, query, userID, cardID, int(srs.MinKnowledgeLevel), now, 0, now, now); err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}

	p, err := r.Get(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("progress for user %d card %d missing after insert", userID, cardID)
	}
	return p, nil
}

// Update overwrites the scheduling fields of p if nobody else updated it since it was read.
// On success p reflects the new state.
func (r *ProgressRepository) Update(ctx context.Context, p *models.CardProgress, level srs.KnowledgeLevel, lastReviewedAt, nextReviewAt, now time.Time) error {
	query := `
		UPDATE card_progress
		SET knowledge_level = ?, last_reviewed_at = ?, next_review_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		int(srs.ClampLevel(int(level))), lastReviewedAt.UTC(), nextReviewAt.UTC(), now.UTC(), p.ID, p.Version)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	if n == 0 {
		return ErrProgressConflict
	}

	reviewed := lastReviewedAt.UTC()
	p.KnowledgeLevel = srs.ClampLevel(int(level))
	p.LastReviewedAt = &reviewed
	p.NextReviewAt = nextReviewAt.UTC()
	p.Version++
	p.UpdatedAt = now.UTC()
	return nil
}

// ListByCardIDs returns the user's progress keyed by card ID. Cards without progress are absent.
func (r *ProgressRepository) ListByCardIDs(ctx context.Context, userID int64, cardIDs []int64) (map[int64]*models.CardProgress, error) {
	result := make(map[int64]*models.CardProgress, len(cardIDs))
	if len(cardIDs) == 0 {
		return result, nil
	}

	args := make([]interface{}, 0, len(cardIDs)+1)
	args = append(args, userID)
	for _, id := range cardIDs {
		args = append(args, id)
	}

	query := `SELECT ` + progressColumns + ` FROM card_progress WHERE user_id = ? AND card_id IN (` +
		database.Placeholders(len(cardIDs)) + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		result[p.CardID] = p
	}
	return result, rows.Err()
}

// ListAll returns every progress row ordered by ID
func (r *ProgressRepository) ListAll(ctx context.Context) ([]models.CardProgress, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+progressColumns+` FROM card_progress ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var all []models.CardProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		all = append(all, *p)
	}
	return all, rows.Err()
}
