package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"cards/internal/clock"
	"cards/internal/database"
	"cards/internal/models"
	"cards/internal/repository"
	"cards/internal/srs"
)

// BackupVersion is written into every export
const BackupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version       string                `json:"version"`
	ExportedAt    time.Time             `json:"exported_at"`
	DatabaseType  string                `json:"database_type"`
	Users         []UserBackup          `json:"users"`
	Decks         []models.Deck         `json:"decks"`
	Cards         []models.Card         `json:"cards"`
	Progress      []ProgressBackup      `json:"card_progress"`
	StudySessions []models.StudySession `json:"study_sessions"`
	StudyItems    []models.StudyItem    `json:"study_items"`
}

// UserBackup represents a user record for backup, including its credentials
type UserBackup struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"password_hash"`
	OAuthProvider string    `json:"oauth_provider"`
	OAuthSubject  string    `json:"oauth_subject"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProgressBackup represents a card progress record for backup
type ProgressBackup struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	CardID         int64      `json:"card_id"`
	KnowledgeLevel int        `json:"knowledge_level"`
	NextReviewAt   time.Time  `json:"next_review_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db    *database.DB
	clock clock.Clock
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, c clock.Clock) *BackupService {
	return &BackupService{db: db, clock: clock.OrSystem(c)}
}

// Export collects every table into a BackupData value
func (s *BackupService) Export(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   s.clock.Now(),
		DatabaseType: s.db.Dialect.MigrationsSubdir(),
	}

	users, err := repository.NewUserRepository(s.db).ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	for _, u := range users {
		backup.Users = append(backup.Users, UserBackup{
			ID:            u.ID,
			Email:         u.Email,
			PasswordHash:  u.PasswordHash,
			OAuthProvider: u.OAuthProvider,
			OAuthSubject:  u.OAuthSubject,
			CreatedAt:     u.CreatedAt,
			UpdatedAt:     u.UpdatedAt,
		})
	}

	decks := repository.NewDeckRepository(s.db)
	if backup.Decks, err = decks.ListAllDecks(ctx); err != nil {
		return nil, fmt.Errorf("failed to export decks: %w", err)
	}
	if backup.Cards, err = decks.ListAllCards(ctx); err != nil {
		return nil, fmt.Errorf("failed to export cards: %w", err)
	}

	progress, err := repository.NewProgressRepository(s.db).ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export progress: %w", err)
	}
	for _, p := range progress {
		backup.Progress = append(backup.Progress, ProgressBackup{
			ID:             p.ID,
			UserID:         p.UserID,
			CardID:         p.CardID,
			KnowledgeLevel: int(p.KnowledgeLevel),
			NextReviewAt:   p.NextReviewAt,
			LastReviewedAt: p.LastReviewedAt,
			Version:        p.Version,
			CreatedAt:      p.CreatedAt,
			UpdatedAt:      p.UpdatedAt,
		})
	}

	studies := repository.NewStudyRepository(s.db)
	if backup.StudySessions, err = studies.ListAllSessions(ctx); err != nil {
		return nil, fmt.Errorf("failed to export study sessions: %w", err)
	}
	if backup.StudyItems, err = studies.ListAllItems(ctx); err != nil {
		return nil, fmt.Errorf("failed to export study items: %w", err)
	}

	return backup, nil
}

// ExportToWriter exports the database as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup, err := s.Export(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	log.Printf("Exported: %d users, %d decks, %d cards, %d progress records, %d study sessions, %d study items",
		len(backup.Users), len(backup.Decks), len(backup.Cards),
		len(backup.Progress), len(backup.StudySessions), len(backup.StudyItems))
	return nil
}

// ExportToFile creates a complete backup of the database in a file
func (s *BackupService) ExportToFile(ctx context.Context, outputPath string) error {
	log.Println("Starting database export...")

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	log.Printf("Database exported successfully to %s", outputPath)
	return nil
}

// ImportFromFile restores a database from a backup file
func (s *BackupService) ImportFromFile(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores a backup in a single transaction
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader) error {
	log.Println("Starting database import...")

	var backup BackupData
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	log.Printf("Backup version: %s, exported at: %s", backup.Version, backup.ExportedAt)

	return s.Import(ctx, &backup)
}

// Import writes backup into the database. Nothing is written if any row fails.
func (s *BackupService) Import(ctx context.Context, backup *BackupData) error {
	err := s.db.WithinTx(ctx, func(tx *database.Tx) error {
		// Import in order of dependencies
		if err := importUsers(ctx, tx, backup.Users); err != nil {
			return fmt.Errorf("failed to import users: %w", err)
		}
		if err := importDecks(ctx, tx, backup.Decks); err != nil {
			return fmt.Errorf("failed to import decks: %w", err)
		}
		if err := importCards(ctx, tx, backup.Cards); err != nil {
			return fmt.Errorf("failed to import cards: %w", err)
		}
		if err := importProgress(ctx, tx, backup.Progress); err != nil {
			return fmt.Errorf("failed to import progress: %w", err)
		}
		if err := importStudySessions(ctx, tx, backup.StudySessions); err != nil {
			return fmt.Errorf("failed to import study sessions: %w", err)
		}
		if err := importStudyItems(ctx, tx, backup.StudyItems); err != nil {
			return fmt.Errorf("failed to import study items: %w", err)
		}

		for _, table := range []string{"users", "decks", "cards", "card_progress", "study_sessions", "study_items"} {
			if query := tx.GetDialect().SyncSequenceQuery(table); query != "" {
				if _, err := tx.ExecContext(ctx, query); err != nil {
					return fmt.Errorf("failed to sync %s sequence: %w", table, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Println("Database import completed successfully")
	return nil
}

// clearOrder lists every table children first
var clearOrder = []string{
	"study_items",
	"study_sessions",
	"card_progress",
	"cards",
	"decks",
	"password_reset_tokens",
	"sessions",
	"users",
}

// Clear deletes every row in the database in one transaction
func (s *BackupService) Clear(ctx context.Context) error {
	return s.db.WithinTx(ctx, func(tx *database.Tx) error {
		for _, table := range clearOrder {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
			log.Printf("Cleared table: %s", table)
		}
		return nil
	})
}

func importUsers(ctx context.Context, tx database.DBTX, users []UserBackup) error {
	log.Printf("Importing %d users...", len(users))
	query := "INSERT INTO users (id, email, password_hash, oauth_provider, oauth_subject, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	for _, u := range users {
		_, err := tx.ExecContext(ctx, query, u.ID, u.Email, u.PasswordHash,
			nullIfEmpty(u.OAuthProvider), nullIfEmpty(u.OAuthSubject), u.CreatedAt.UTC(), u.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to import user %d: %w", u.ID, err)
		}
	}
	return nil
}

func importDecks(ctx context.Context, tx database.DBTX, decks []models.Deck) error {
	log.Printf("Importing %d decks...", len(decks))
	query := "INSERT INTO decks (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
	for _, d := range decks {
		if _, err := tx.ExecContext(ctx, query, d.ID, d.UserID, d.Title, d.CreatedAt.UTC(), d.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to import deck %d: %w", d.ID, err)
		}
	}
	return nil
}

func importCards(ctx context.Context, tx database.DBTX, cards []models.Card) error {
	log.Printf("Importing %d cards...", len(cards))
	query := "INSERT INTO cards (id, deck_id, front, back, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
	for _, c := range cards {
		if _, err := tx.ExecContext(ctx, query, c.ID, c.DeckID, c.Front, c.Back, c.CreatedAt.UTC(), c.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to import card %d: %w", c.ID, err)
		}
	}
	return nil
}

func importProgress(ctx context.Context, tx database.DBTX, progress []ProgressBackup) error {
	log.Printf("Importing %d progress records...", len(progress))
	query := `INSERT INTO card_progress (id, user_id, card_id, knowledge_level, next_review_at, last_reviewed_at, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, p := range progress {
		level := int(srs.ClampLevel(p.KnowledgeLevel))
		_, err := tx.ExecContext(ctx, query, p.ID, p.UserID, p.CardID, level, p.NextReviewAt.UTC(),
			utcOrNil(p.LastReviewedAt), p.Version, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to import progress %d: %w", p.ID, err)
		}
	}
	return nil
}

func importStudySessions(ctx context.Context, tx database.DBTX, sessions []models.StudySession) error {
	log.Printf("Importing %d study sessions...", len(sessions))
	query := `INSERT INTO study_sessions (id, user_id, deck_id, chapter_number, chapter_size, open_slot, created_at, completed_at, abandoned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, ss := range sessions {
		var chapter interface{}
		if ss.ChapterNumber != nil {
			chapter = *ss.ChapterNumber
		}
		var slot interface{}
		if ss.IsOpen() {
			slot = repository.OpenSlot(ss.ChapterNumber)
		}
		_, err := tx.ExecContext(ctx, query, ss.ID, ss.UserID, ss.DeckID, chapter, ss.ChapterSize, slot,
			ss.CreatedAt.UTC(), utcOrNil(ss.CompletedAt), utcOrNil(ss.AbandonedAt))
		if err != nil {
			return fmt.Errorf("failed to import study session %d: %w", ss.ID, err)
		}
	}
	return nil
}

func importStudyItems(ctx context.Context, tx database.DBTX, items []models.StudyItem) error {
	log.Printf("Importing %d study items...", len(items))
	query := `INSERT INTO study_items (id, session_id, card_id, position, chapter_number, front, back, knowledge_before, knowledge_after, outcome, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, it := range items {
		var cardID, after, outcome interface{}
		if it.CardID != nil {
			cardID = *it.CardID
		}
		if it.KnowledgeAfter != nil {
			after = int(*it.KnowledgeAfter)
		}
		if it.Outcome != nil {
			outcome = string(*it.Outcome)
		}
		_, err := tx.ExecContext(ctx, query, it.ID, it.SessionID, cardID, it.Position, it.ChapterNumber,
			it.FrontSnapshot, it.BackSnapshot, int(it.KnowledgeAtStart), after, outcome, utcOrNil(it.ReviewedAt))
		if err != nil {
			return fmt.Errorf("failed to import study item %d: %w", it.ID, err)
		}
	}
	return nil
}

func utcOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
