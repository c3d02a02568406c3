package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"cards/internal/repository"
	"cards/internal/security"
	"cards/internal/service"
	"cards/internal/srs"
	"cards/internal/validation"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields validation.Errors `json:"fields,omitempty"`
}

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}

	respondJSON(w, status, errorResponse{Error: userMsg})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func respondValidation(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: ErrValidationFailed}
	var single validation.ValidationError
	var many validation.Errors
	switch {
	case errors.As(err, &many):
		resp.Fields = many
		if len(many) > 0 {
			resp.Error = many[0].Message
		}
	case errors.As(err, &single):
		resp.Fields = validation.Errors{single}
		resp.Error = single.Message
	}
	respondJSON(w, http.StatusBadRequest, resp)
}

func decodeJSON(r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// handleServiceError maps a service error to its status code
func handleServiceError(w http.ResponseWriter, logMsg string, err error) {
	switch {
	case validation.IsValidationError(err):
		respondValidation(w, err)
	case errors.Is(err, srs.ErrInvalidOutcome):
		respondWithError(w, http.StatusBadRequest, ErrInvalidOutcome, "", nil)
	case errors.Is(err, service.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, "Email already registered", "", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password", "", nil)
	case errors.Is(err, service.ErrInvalidResetToken):
		respondWithError(w, http.StatusBadRequest, "Invalid or expired reset link", "", nil)
	case errors.Is(err, service.ErrItemAlreadyReviewed):
		respondWithError(w, http.StatusConflict, "Card already reviewed", "", nil)
	case errors.Is(err, service.ErrSessionClosed):
		respondWithError(w, http.StatusConflict, "Study session is closed", "", nil)
	case errors.Is(err, repository.ErrOpenSessionExists):
		respondWithError(w, http.StatusConflict, "Study session already open", "", nil)
	case errors.Is(err, service.ErrNoCardsToStudy):
		respondWithError(w, http.StatusUnprocessableEntity, "No cards to study", "", nil)
	case errors.Is(err, security.ErrTokensDisabled):
		respondWithError(w, http.StatusNotImplemented, "API tokens are not configured", "", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, logMsg, err)
	}
}
