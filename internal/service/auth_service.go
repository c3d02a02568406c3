package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cards/internal/clock"
	"cards/internal/database"
	"cards/internal/models"
	"cards/internal/repository"
	"cards/internal/security"
	"cards/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// AuthConfig holds the lifetimes used by AuthService
type AuthConfig struct {
	SessionDuration time.Duration
	ResetTokenTTL   time.Duration
}

// AuthService handles authentication business logic
type AuthService struct {
	db       *database.DB
	userRepo *repository.UserRepository
	email    *EmailService
	tokens   *security.TokenIssuer
	clock    clock.Clock
	cfg      AuthConfig
}

// NewAuthService creates a new auth service. email and tokens may be nil.
func NewAuthService(db *database.DB, email *EmailService, tokens *security.TokenIssuer, c clock.Clock, cfg AuthConfig) *AuthService {
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = 24 * time.Hour
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	if tokens == nil {
		tokens = security.NewTokenIssuer("", 0)
	}
	return &AuthService{
		db:       db,
		userRepo: repository.NewUserRepository(db),
		email:    email,
		tokens:   tokens,
		clock:    clock.OrSystem(c),
		cfg:      cfg,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new password account
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.CreateUser(ctx, email, passwordHash, s.clock.Now())
	if errors.Is(err, repository.ErrEmailExists) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

func (s *AuthService) createSession(ctx context.Context, userID int64) (*models.Session, error) {
	now := s.clock.Now()
	session, err := s.userRepo.CreateSession(ctx, security.GenerateSessionID(), userID, now.Add(s.cfg.SessionDuration), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateSession checks if a session is valid and returns the associated user
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*models.User, error) {
	session, err := s.userRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired(s.clock.Now()) {
		_ = s.userRepo.DeleteSession(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	user, err := s.userRepo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}
	return user, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.userRepo.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.userRepo.DeleteExpiredSessions(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return n, nil
}

// OAuthLogin signs in the user linked to the provider subject. An existing
// password account with the same email is linked; otherwise a new user is created.
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email string) (*models.Session, *models.User, error) {
	if provider == "" || subject == "" {
		return nil, nil, errors.New("missing oauth provider information")
	}
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetUserByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existing, err := s.userRepo.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
		}
		switch {
		case existing != nil && existing.OAuthProvider != "" && existing.OAuthProvider != provider:
			return nil, nil, ErrEmailTaken
		case existing != nil:
			if err := s.userRepo.LinkOAuthProvider(ctx, existing.ID, provider, subject, s.clock.Now()); err != nil {
				return nil, nil, err
			}
			existing.OAuthProvider = provider
			existing.OAuthSubject = subject
			user = existing
		default:
			user, err = s.userRepo.CreateOAuthUser(ctx, email, provider, subject, s.clock.Now())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create oauth user: %w", err)
			}
		}
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// RequestPasswordReset creates a reset token and emails the link.
// Unknown emails succeed silently so the endpoint does not reveal accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil
	}

	token, tokenHash, err := security.GenerateResetToken()
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.db.WithinTx(ctx, func(tx *database.Tx) error {
		users := s.userRepo.WithTx(tx)
		if err := users.DeleteUserResetTokens(ctx, user.ID); err != nil {
			return err
		}
		return users.CreateResetToken(ctx, user.ID, tokenHash, now.Add(s.cfg.ResetTokenTTL), now)
	})
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if s.email != nil {
		if err := s.email.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
			return fmt.Errorf("failed to send reset email: %w", err)
		}
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
// Every session of the user is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	resetToken, err := s.userRepo.GetResetToken(ctx, security.HashToken(token))
	if err != nil {
		return err
	}
	if resetToken == nil {
		return ErrInvalidResetToken
	}

	now := s.clock.Now()
	if resetToken.IsExpired(now) {
		_, _ = s.userRepo.DeleteResetToken(ctx, resetToken.ID)
		return ErrInvalidResetToken
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.db.WithinTx(ctx, func(tx *database.Tx) error {
		users := s.userRepo.WithTx(tx)
		consumed, err := users.DeleteResetToken(ctx, resetToken.ID)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrInvalidResetToken
		}
		if err := users.UpdatePassword(ctx, resetToken.UserID, passwordHash, now); err != nil {
			return err
		}
		return users.DeleteUserSessions(ctx, resetToken.UserID)
	})
}

// CleanupExpiredResetTokens removes expired reset tokens
func (s *AuthService) CleanupExpiredResetTokens(ctx context.Context) (int64, error) {
	n, err := s.userRepo.DeleteExpiredResetTokens(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup reset tokens: %w", err)
	}
	return n, nil
}

// RunCleanup removes expired sessions and reset tokens, logging the result
func (s *AuthService) RunCleanup(ctx context.Context) {
	sessions, err := s.CleanupExpiredSessions(ctx)
	if err != nil {
		log.Printf("Session cleanup failed: %v", err)
	}
	tokens, err := s.CleanupExpiredResetTokens(ctx)
	if err != nil {
		log.Printf("Reset token cleanup failed: %v", err)
	}
	if sessions > 0 || tokens > 0 {
		log.Printf("Cleanup removed %d expired sessions and %d reset tokens", sessions, tokens)
	}
}

// IssueAPIToken returns a bearer token for the user
func (s *AuthService) IssueAPIToken(user *models.User) (string, time.Time, error) {
	return s.tokens.Issue(user.ID, s.clock.Now())
}

// AuthenticateAPIToken resolves a bearer token to its user
func (s *AuthService) AuthenticateAPIToken(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Verify(token, s.clock.Now())
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, security.ErrInvalidToken
	}
	return user, nil
}
