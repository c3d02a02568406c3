package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cards/internal/database"
	"cards/internal/models"
	"cards/internal/srs"
)

// ErrOpenSessionExists is returned when the user already has an open session in the same slot
var ErrOpenSessionExists = errors.New("an open study session already exists for this deck and scope")

// StudyRepository stores study sessions and their items
type StudyRepository struct {
	db database.DBTX
}

// NewStudyRepository creates a new study repository
func NewStudyRepository(db database.DBTX) *StudyRepository {
	return &StudyRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *StudyRepository) WithTx(tx database.DBTX) *StudyRepository {
	return &StudyRepository{db: tx}
}

// OpenSlot names the scope an open session occupies: "deck" or "chapter:N"
func OpenSlot(chapter *int) string {
	if chapter == nil {
		return "deck"
	}
	return "chapter:" + strconv.Itoa(*chapter)
}

const sessionColumns = `s.id, s.user_id, s.deck_id, s.chapter_number, s.chapter_size, s.created_at, s.completed_at, s.abandoned_at`

func scanSession(row interface{ Scan(...interface{}) error }) (*models.StudySession, error) {
	s := &models.StudySession{}
	var chapter sql.NullInt64
	var completed, abandoned sql.NullTime
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.DeckID,
		&chapter,
		&s.ChapterSize,
		&s.CreatedAt,
		&completed,
		&abandoned,
	)
	if err != nil {
		return nil, err
	}
	s.ChapterNumber = intPtr(chapter)
	s.CreatedAt = s.CreatedAt.UTC()
	s.CompletedAt = timePtr(completed)
	s.AbandonedAt = timePtr(abandoned)
	return s, nil
}

const itemColumns = `i.id, i.session_id, i.card_id, i.position, i.chapter_number, i.front, i.back, i.knowledge_before, i.knowledge_after, i.outcome, i.reviewed_at`

func scanItem(row interface{ Scan(...interface{}) error }) (*models.StudyItem, error) {
	item := &models.StudyItem{}
	var cardID, after sql.NullInt64
	var before int
	var outcome sql.NullString
	var reviewed sql.NullTime
	err := row.Scan(
		&item.ID,
		&item.SessionID,
		&cardID,
		&item.Position,
		&item.ChapterNumber,
		&item.FrontSnapshot,
		&item.BackSnapshot,
		&before,
		&after,
		&outcome,
		&reviewed,
	)
	if err != nil {
		return nil, err
	}
	item.CardID = int64Ptr(cardID)
	item.KnowledgeAtStart = srs.ClampLevel(before)
	if after.Valid {
		level := srs.ClampLevel(int(after.Int64))
		item.KnowledgeAfter = &level
	}
	if outcome.Valid {
		o := srs.Outcome(outcome.String)
		item.Outcome = &o
	}
	item.ReviewedAt = timePtr(reviewed)
	return item, nil
}

// CreateSession inserts the session and assigns IDs to it and its items.
// It returns ErrOpenSessionExists if the slot is taken.
func (r *StudyRepository) CreateSession(ctx context.Context, session *models.StudySession, items []models.StudyItem) error {
	var chapter interface{}
	if session.ChapterNumber != nil {
		chapter = *session.ChapterNumber
	}
	var slot interface{}
	if session.IsOpen() {
		slot = OpenSlot(session.ChapterNumber)
	}

	query := `
		INSERT INTO study_sessions (user_id, deck_id, chapter_number, chapter_size, open_slot, created_at, completed_at, abandoned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		session.UserID, session.DeckID, chapter, session.ChapterSize, slot, session.CreatedAt.UTC(),
		nullTime(session.CompletedAt), nullTime(session.AbandonedAt))
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return ErrOpenSessionExists
		}
		return fmt.Errorf("failed to create study session: %w", err)
	}
	session.ID = id

	for i := range items {
		items[i].SessionID = id
		if err := r.insertItem(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *StudyRepository) insertItem(ctx context.Context, item *models.StudyItem) error {
	var cardID interface{}
	if item.CardID != nil {
		cardID = *item.CardID
	}
	var after interface{}
	if item.KnowledgeAfter != nil {
		after = int(*item.KnowledgeAfter)
	}
	var outcome interface{}
	if item.Outcome != nil {
		outcome = string(*item.Outcome)
	}

	query := `
		INSERT INTO study_items (session_id, card_id, position, chapter_number, front, back, knowledge_before, knowledge_after, outcome, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		item.SessionID, cardID, item.Position, item.ChapterNumber, item.FrontSnapshot, item.BackSnapshot,
		int(item.KnowledgeAtStart), after, outcome, nullTime(item.ReviewedAt))
	if err != nil {
		return fmt.Errorf("failed to create study item: %w", err)
	}
	item.ID = id
	return nil
}

// FindOpenSession returns the newest open session for (userID, deckID). When chapter is set, only
// sessions holding at least one item of that chapter match, so whole-deck sessions qualify too.
func (r *StudyRepository) FindOpenSession(ctx context.Context, userID, deckID int64, chapter *int) (*models.StudySession, error) {
	query := `SELECT ` + sessionColumns + ` FROM study_sessions s
		WHERE s.user_id = ? AND s.deck_id = ? AND s.completed_at IS NULL AND s.abandoned_at IS NULL`
	args := []interface{}{userID, deckID}
	if chapter != nil {
		query += ` AND EXISTS (SELECT 1 FROM study_items i WHERE i.session_id = s.id AND i.chapter_number = ?)`
		args = append(args, *chapter)
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC LIMIT 1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	return session, nil
}

// GetSession returns a session owned by userID, or nil
func (r *StudyRepository) GetSession(ctx context.Context, userID, sessionID int64) (*models.StudySession, error) {
	query := `SELECT ` + sessionColumns + ` FROM study_sessions s WHERE s.id = ? AND s.user_id = ?`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, sessionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get study session: %w", err)
	}
	return session, nil
}

// ListItems returns a session's items ordered by position
func (r *StudyRepository) ListItems(ctx context.Context, sessionID int64) ([]models.StudyItem, error) {
	query := `SELECT ` + itemColumns + ` FROM study_items i WHERE i.session_id = ? ORDER BY i.position ASC`
	return r.queryItems(ctx, query, sessionID)
}

func (r *StudyRepository) queryItems(ctx context.Context, query string, args ...interface{}) ([]models.StudyItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query study items: %w", err)
	}
	defer rows.Close()

	var items []models.StudyItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan study item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetItemForUser loads an item together with its session. Both the session ID and the
// owning user must match, otherwise nil is returned.
func (r *StudyRepository) GetItemForUser(ctx context.Context, userID, sessionID, itemID int64) (*models.StudyItem, *models.StudySession, error) {
	query := `SELECT ` + itemColumns + `, ` + sessionColumns + `
		FROM study_items i
		JOIN study_sessions s ON s.id = i.session_id
		WHERE i.id = ? AND i.session_id = ? AND s.user_id = ?`

	item := &models.StudyItem{}
	session := &models.StudySession{}
	var cardID, after, chapter sql.NullInt64
	var before int
	var outcome sql.NullString
	var reviewed, completed, abandoned sql.NullTime

	err := r.db.QueryRowContext(ctx, query, itemID, sessionID, userID).Scan(
		&item.ID, &item.SessionID, &cardID, &item.Position, &item.ChapterNumber,
		&item.FrontSnapshot, &item.BackSnapshot, &before, &after, &outcome, &reviewed,
		&session.ID, &session.UserID, &session.DeckID, &chapter, &session.ChapterSize,
		&session.CreatedAt, &completed, &abandoned,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get study item: %w", err)
	}

	item.CardID = int64Ptr(cardID)
	item.KnowledgeAtStart = srs.ClampLevel(before)
	if after.Valid {
		level := srs.ClampLevel(int(after.Int64))
		item.KnowledgeAfter = &level
	}
	if outcome.Valid {
		o := srs.Outcome(outcome.String)
		item.Outcome = &o
	}
	item.ReviewedAt = timePtr(reviewed)

	session.ChapterNumber = intPtr(chapter)
	session.CreatedAt = session.CreatedAt.UTC()
	session.CompletedAt = timePtr(completed)
	session.AbandonedAt = timePtr(abandoned)
	return item, session, nil
}

// MarkItemReviewed stamps an unreviewed item. It reports false if the item was already reviewed.
func (r *StudyRepository) MarkItemReviewed(ctx context.Context, itemID int64, outcome srs.Outcome, knowledgeAfter srs.KnowledgeLevel, reviewedAt time.Time) (bool, error) {
	query := `
		UPDATE study_items
		SET reviewed_at = ?, outcome = ?, knowledge_after = ?
		WHERE id = ? AND reviewed_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, reviewedAt.UTC(), string(outcome), int(knowledgeAfter), itemID)
	if err != nil {
		return false, fmt.Errorf("failed to mark item reviewed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark item reviewed: %w", err)
	}
	return n > 0, nil
}

// CountUnreviewed returns how many items of the session are still unanswered
func (r *StudyRepository) CountUnreviewed(ctx context.Context, sessionID int64) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM study_items WHERE session_id = ? AND reviewed_at IS NULL"
	if err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unreviewed items: %w", err)
	}
	return count, nil
}

// CompleteSession stamps the completion time once and frees the session's slot.
// It reports false if the session was already completed.
func (r *StudyRepository) CompleteSession(ctx context.Context, sessionID int64, completedAt time.Time) (bool, error) {
	query := `
		UPDATE study_sessions
		SET completed_at = ?, open_slot = NULL
		WHERE id = ? AND completed_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, completedAt.UTC(), sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// AbandonOpenSession closes whichever open session occupies the slot for (userID, deckID, chapter)
func (r *StudyRepository) AbandonOpenSession(ctx context.Context, userID, deckID int64, chapter *int, at time.Time) (int64, error) {
	query := `
		UPDATE study_sessions
		SET abandoned_at = ?, open_slot = NULL
		WHERE user_id = ? AND deck_id = ? AND open_slot = ?
	`
	result, err := r.db.ExecContext(ctx, query, at.UTC(), userID, deckID, OpenSlot(chapter))
	if err != nil {
		return 0, fmt.Errorf("failed to abandon session: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// ListAllSessions returns every session ordered by ID
func (r *StudyRepository) ListAllSessions(ctx context.Context) ([]models.StudySession, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM study_sessions s ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query study sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.StudySession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan study session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListAllItems returns every study item ordered by ID
func (r *StudyRepository) ListAllItems(ctx context.Context) ([]models.StudyItem, error) {
	return r.queryItems(ctx, `SELECT `+itemColumns+` FROM study_items i ORDER BY i.id`)
}
