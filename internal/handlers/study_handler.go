package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"cards/internal/models"
	"cards/internal/service"
	"cards/internal/srs"
	"cards/internal/validation"
)

// StudyHandler handles study session requests
type StudyHandler struct {
	studyService *service.StudyService
	deckService  *service.DeckService
}

// NewStudyHandler creates a new study handler
func NewStudyHandler(studyService *service.StudyService, deckService *service.DeckService) *StudyHandler {
	return &StudyHandler{
		studyService: studyService,
		deckService:  deckService,
	}
}

type startStudyRequest struct {
	Chapter *int `json:"chapter"`
}

type reviewRequest struct {
	Outcome string `json:"outcome" validate:"required"`
}

type studySessionResponse struct {
	Session  models.StudySession     `json:"session"`
	Items    []models.StudyItem      `json:"items"`
	Chapters []models.ChapterSummary `json:"chapters"`
	Chapter  *int                    `json:"chapter,omitempty"`
	Next     *models.StudyItem       `json:"next"`
}

type reviewResponse struct {
	Item      *models.StudyItem `json:"item"`
	Completed bool              `json:"completed"`
	Next      *models.StudyItem `json:"next"`
}

func newStudySessionResponse(view *models.StudySessionView, chapter *int) studySessionResponse {
	items := view.Items
	if items == nil {
		items = []models.StudyItem{}
	}
	return studySessionResponse{
		Session:  view.Session,
		Items:    items,
		Chapters: service.ChapterSummaries(items),
		Chapter:  chapter,
		Next:     service.NextUnreviewed(items, chapter),
	}
}

// StartStudy resumes the open session for the deck or chapter, creating one when none exists
func (h *StudyHandler) StartStudy(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, h.studyService.GetOrCreateSession, http.StatusOK)
}

// StartNewStudy abandons the open session in the same scope and starts over
func (h *StudyHandler) StartNewStudy(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, h.studyService.StartNewSession, http.StatusCreated)
}

type sessionStarter func(ctx context.Context, userID, deckID int64, chapter *int, chapterSize int) (*models.StudySessionView, error)

func (h *StudyHandler) start(w http.ResponseWriter, r *http.Request, begin sessionStarter, status int) {
	user := GetUserFromContext(r.Context())
	deckID, ok := pathID(w, r, "deckId")
	if !ok {
		return
	}

	var req startStudyRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
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

	chapterSize := h.studyService.ChapterSize()
	var chapter *int
	if req.Chapter != nil {
		clamped := service.ClampChapter(*req.Chapter, service.ChapterCount(len(deck.Cards), chapterSize))
		chapter = &clamped
	}

	view, err := begin(r.Context(), user.ID, deckID, chapter, chapterSize)
	if err != nil {
		handleServiceError(w, "Error starting study session", err)
		return
	}
	if view == nil {
		respondWithError(w, http.StatusNotFound, ErrDeckNotFound, "", nil)
		return
	}
	respondJSON(w, status, newStudySessionResponse(view, chapter))
}

// GetSession returns a session with its chapter summaries and the next card to review.
// The optional chapter query narrows the next card within a whole-deck session.
func (h *StudyHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	sessionID, ok := pathID(w, r, "sessionId")
	if !ok {
		return
	}

	var requested *int
	if raw := r.URL.Query().Get("chapter"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid chapter", "", nil)
			return
		}
		requested = &n
	}

	view, err := h.studyService.GetSession(r.Context(), user.ID, sessionID)
	if err != nil {
		handleServiceError(w, "Error getting study session", err)
		return
	}
	if view == nil {
		respondWithError(w, http.StatusNotFound, "Study session not found", "", nil)
		return
	}

	respondJSON(w, http.StatusOK, newStudySessionResponse(view, focusChapter(view, requested)))
}

// focusChapter picks the chapter a session page shows. Chapter sessions always show their own chapter.
func focusChapter(view *models.StudySessionView, requested *int) *int {
	if view.Session.ChapterNumber != nil {
		chapter := *view.Session.ChapterNumber
		return &chapter
	}
	if requested == nil {
		return nil
	}
	count := 0
	for _, item := range view.Items {
		if item.ChapterNumber > count {
			count = item.ChapterNumber
		}
	}
	chapter := service.ClampChapter(*requested, count)
	return &chapter
}

// Review records the outcome of one item
func (h *StudyHandler) Review(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	sessionID, ok := pathID(w, r, "sessionId")
	if !ok {
		return
	}
	itemID, ok := pathID(w, r, "itemId")
	if !ok {
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}
	outcome, err := srs.ParseOutcome(req.Outcome)
	if err != nil {
		handleServiceError(w, "", err)
		return
	}

	item, err := h.studyService.ReviewItem(r.Context(), user.ID, sessionID, itemID, outcome)
	if err != nil {
		handleServiceError(w, "Error reviewing item", err)
		return
	}
	if item == nil {
		respondWithError(w, http.StatusNotFound, "Study item not found", "", nil)
		return
	}

	view, err := h.studyService.GetSession(r.Context(), user.ID, sessionID)
	if err != nil {
		handleServiceError(w, "Error getting study session", err)
		return
	}
	resp := reviewResponse{Item: item}
	if view != nil {
		resp.Completed = view.Session.CompletedAt != nil
		chapter := item.ChapterNumber
		resp.Next = service.NextUnreviewed(view.Items, &chapter)
	}
	respondJSON(w, http.StatusOK, resp)
}
