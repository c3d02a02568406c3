package handlers

import (
	"net/http"
	"time"

	"cards/internal/models"
	"cards/internal/security"
	"cards/internal/service"
	"cards/internal/validation"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *service.AuthService
	csrf        *security.CSRFGenerator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, csrf *security.CSRFGenerator) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		csrf:        csrf,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	User      *models.User `json:"user"`
	CSRFToken string       `json:"csrfToken,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (*credentialsRequest, bool) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return nil, false
	}
	if err := validation.Struct(req); err != nil {
		respondValidation(w, err)
		return nil, false
	}
	return &req, true
}

// Register creates an account and signs it in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	if _, err := h.authService.Register(r.Context(), req.Email, req.Password); err != nil {
		handleServiceError(w, "Error registering user", err)
		return
	}

	session, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, "Error creating session", err)
		return
	}
	h.startSession(w, r, http.StatusCreated, session, user)
}

// Login handles password sign in
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	session, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, "Error logging in", err)
		return
	}
	h.startSession(w, r, http.StatusOK, session, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, status int, session *models.Session, user *models.User) {
	csrfToken, err := h.csrf.GenerateToken(session.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error generating CSRF token", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, session.ID, session.ExpiresAt))
	expires := session.ExpiresAt
	respondJSON(w, status, sessionResponse{User: user, CSRFToken: csrfToken, ExpiresAt: &expires})
}

// Logout ends the cookie session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := GetSessionIDFromContext(r.Context()); sessionID != "" {
		if err := h.authService.Logout(r.Context(), sessionID); err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error logging out", err)
			return
		}
	}

	http.SetCookie(w, security.CreateDeleteCookie(r))
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in user and, for cookie sessions, the CSRF token
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	resp := sessionResponse{User: user}
	if sessionID := GetSessionIDFromContext(r.Context()); sessionID != "" {
		token, err := h.csrf.GenerateToken(sessionID)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Error generating CSRF token", err)
			return
		}
		resp.CSRFToken = token
	}
	respondJSON(w, http.StatusOK, resp)
}

// IssueToken exchanges credentials for a bearer token
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	// Login creates a cookie session as a side effect, so drop it right away
	session, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, "Error logging in", err)
		return
	}
	_ = h.authService.Logout(r.Context(), session.ID)

	token, expiresAt, err := h.authService.IssueAPIToken(user)
	if err != nil {
		handleServiceError(w, "Error issuing API token", err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt})
}

// ForgotPassword emails a reset link. The response is identical whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, "Error requesting password reset", err)
		return
	}
	respondJSON(w, http.StatusAccepted, messageResponse{Message: "If that account exists, a reset link has been sent"})
}

// ResetPassword sets a new password from an emailed token
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		handleServiceError(w, "Error resetting password", err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}
