package handlers

import (
	"net/http"
	"strconv"

	"cards/internal/models"
	"cards/internal/service"
	"cards/internal/validation"
)

// DeckHandler handles deck and card requests
type DeckHandler struct {
	deckService *service.DeckService
}

// NewDeckHandler creates a new deck handler
func NewDeckHandler(deckService *service.DeckService) *DeckHandler {
	return &DeckHandler{deckService: deckService}
}

type createDeckRequest struct {
	Title string `json:"title" validate:"required"`
}

type createCardRequest struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back" validate:"required"`
}

type chaptersResponse struct {
	ChapterSize int                     `json:"chapterSize"`
	Chapters    []models.ChapterMastery `json:"chapters"`
}

// pathID parses a positive int64 path value, writing a 400 when it is malformed
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		respondWithError(w, http.StatusBadRequest, ErrInvalidID, "", nil)
		return 0, false
	}
	return id, true
}

// ListDecks returns the user's decks with mastery stats
func (h *DeckHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	decks, err := h.deckService.ListDecks(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, "Error listing decks", err)
		return
	}
	if decks == nil {
		decks = []models.DeckSummary{}
	}
	respondJSON(w, http.StatusOK, decks)
}

// CreateDeck creates an empty deck
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req createDeckRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	deck, err := h.deckService.CreateDeck(r.Context(), user.ID, req.Title)
	if err != nil {
		handleServiceError(w, "Error creating deck", err)
		return
	}
	respondJSON(w, http.StatusCreated, deck)
}

// GetDeck returns a deck with its cards
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	deckID, ok := pathID(w, r, "deckId")
	if !ok {
		return
	}

	deck, err := h.deckService.GetDeck(r.Context(), user.ID, deckID)
	if err != nil {
		handleServiceError(w, "Error getting deck", err)
		return
	}
	if deck == nil {
		respondWithError(w, http.StatusNotFound, ErrDeckNotFound, "", nil)
		return
	}
	respondJSON(w, http.StatusOK, deck)
}

// DeleteDeck removes a deck with its cards and sessions
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	deckID, ok := pathID(w, r, "deckId")
	if !ok {
		return
	}

	deleted, err := h.deckService.DeleteDeck(r.Context(), user.ID, deckID)
	if err != nil {
		handleServiceError(w, "Error deleting deck", err)
		return
	}
	if !deleted {
		respondWithError(w, http.StatusNotFound, ErrDeckNotFound, "", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateCard appends a card to a deck
func (h *DeckHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	deckID, ok := pathID(w, r, "deckId")
	if !ok {
		return
	}

	var req createCardRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	card, err := h.deckService.CreateCard(r.Context(), user.ID, deckID, req.Front, req.Back)
	if err != nil {
		handleServiceError(w, "Error creating card", err)
		return
	}
	if card == nil {
		respondWithError(w, http.StatusNotFound, ErrDeckNotFound, "", nil)
		return
	}
	respondJSON(w, http.StatusCreated, card)
}

// DeleteCard removes a card from a deck
func (h *DeckHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	deckID, ok := pathID(w, r, "deckId")
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardId")
	if !ok {
		return
	}

	deleted, err := h.deckService.DeleteCard(r.Context(), user.ID, deckID, cardID)
	if err != nil {
		handleServiceError(w, "Error deleting card", err)
		return
	}
	if !deleted {
		respondWithError(w, http.StatusNotFound, "Card not found", "", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DueCards returns the cards of a deck that are due now
func (h *DeckHandler) DueCards(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	deckID, ok := pathID(w, r, "deckId")
	if !ok {
		return
	}

	cards, err := h.deckService.DueCards(r.Context(), user.ID, deckID)
	if err != nil {
		handleServiceError(w, "Error listing due cards", err)
		return
	}
	if cards == nil {
		respondWithError(w, http.StatusNotFound, ErrDeckNotFound, "", nil)
		return
	}
	respondJSON(w, http.StatusOK, cards)
}

// Chapters returns the user's mastery of each chapter of a deck
func (h *DeckHandler) Chapters(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	deckID, ok := pathID(w, r, "deckId")
	if !ok {
		return
	}

	// ChapterMastery is nil both for a missing deck and an empty one
	deck, err := h.deckService.GetDeck(r.Context(), user.ID, deckID)
	if err != nil {
		handleServiceError(w, "Error getting deck", err)
		return
	}
	if deck == nil {
		respondWithError(w, http.StatusNotFound, ErrDeckNotFound, "", nil)
		return
	}

	chapters, err := h.deckService.ChapterMastery(r.Context(), user.ID, deckID)
	if err != nil {
		handleServiceError(w, "Error computing chapter mastery", err)
		return
	}
	if chapters == nil {
		chapters = []models.ChapterMastery{}
	}
	respondJSON(w, http.StatusOK, chaptersResponse{ChapterSize: h.deckService.ChapterSize(), Chapters: chapters})
}
