package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"notarium/internal/domain/models"
	"notarium/internal/httputil"
	"notarium/internal/service"
)

// ReviewHandler handles flashcard review HTTP requests.
type ReviewHandler struct {
	reviews *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviews *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

type reviewRequest struct {
	Quality int `json:"quality"`
}

// CreateCard stores a new card in a deck.
// POST /api/cards
func (h *ReviewHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCardRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	card, err := h.reviews.CreateCard(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, card)
}

// ReviewCard applies a 0-5 quality review to a card.
// POST /api/cards/{id}/review
func (h *ReviewHandler) ReviewCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req reviewRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.reviews.ReviewCard(r.Context(), id, req.Quality)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}

// DueCards lists a deck's due cards, soonest-due first.
// GET /api/decks/{id}/due?limit=N
func (h *ReviewHandler) DueCards(w http.ResponseWriter, r *http.Request) {
	deckID := r.PathValue("id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.RespondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	cards, err := h.reviews.DueCards(r.Context(), deckID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"cards": cards})
}

// ReviewHistory returns a card's review history, oldest first.
// GET /api/cards/{id}/history
func (h *ReviewHandler) ReviewHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entries, err := h.reviews.ReviewHistory(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}
