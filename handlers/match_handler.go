package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/badminton-platform/middleware"
	"github.com/Dosada05/badminton-platform/models"
	"github.com/Dosada05/badminton-platform/services"
)

type MatchHandler struct {
	matches services.ConfirmationService
}

func NewMatchHandler(matches services.ConfirmationService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

type submitMatchRequest struct {
	Discipline     models.Discipline `json:"discipline"`
	SideA          []string          `json:"side_a"`
	SideB          []string          `json:"side_b"`
	SetScores      [][]int           `json:"set_scores"`
	DeclaredWinner models.SideID     `json:"declared_winner"`
	SubmittedBy    string            `json:"submitted_by,omitempty"`
}

type rejectMatchRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// Submit godoc
// @Summary Submit a match result
// @Tags matches
// @Description The authenticated account reports a finished match it played in. The opposing side must confirm it before ratings change.
// @Accept json
// @Produce json
// @Param input body submitMatchRequest true "Match result"
// @Success 201 {object} map[string]interface{} "Pending match record"
// @Failure 400 {object} map[string]string "Malformed body"
// @Failure 403 {object} map[string]string "Submitter does not play in the match"
// @Failure 404 {object} map[string]string "Unknown participant"
// @Failure 422 {object} map[string]interface{} "Validation errors per field"
// @Security BearerAuth
// @Router /matches [post]
func (h *MatchHandler) Submit(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetAccountIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input submitMatchRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if submitter := strings.TrimSpace(input.SubmittedBy); submitter != "" && submitter != accountID {
		forbiddenResponse(w, r, "submitted_by must be the authenticated account")
		return
	}

	match, err := h.matches.Submit(r.Context(), services.SubmitMatchInput{
		Discipline:     input.Discipline,
		SideA:          input.SideA,
		SideB:          input.SideB,
		SetScores:      input.SetScores,
		DeclaredWinner: input.DeclaredWinner,
		SubmittedBy:    accountID,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", "/matches/"+match.ID)
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, headers); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get godoc
// @Summary Get a match record
// @Tags matches
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]interface{} "Match record"
// @Failure 404 {object} map[string]string "Match not found"
// @Security BearerAuth
// @Router /matches/{matchID} [get]
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	match, err := h.matches.GetMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"match": match})
}

// Confirm godoc
// @Summary Confirm a match result
// @Tags matches
// @Description Records the authenticated account's confirmation. The last awaited confirmation confirms the match and updates ratings. Repeating a confirmation returns the record unchanged.
// @Produce json
// @Param matchID path string true "Match ID"
// @Success 200 {object} map[string]interface{} "Updated match record"
// @Failure 403 {object} map[string]string "Account is not awaited on this match"
// @Failure 404 {object} map[string]string "Match not found"
// @Failure 409 {object} map[string]interface{} "Match already resolved, or rating update kept conflicting"
// @Security BearerAuth
// @Router /matches/{matchID}/confirm [post]
func (h *MatchHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetAccountIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	match, err := h.matches.Confirm(r.Context(), chi.URLParam(r, "matchID"), accountID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"match": match})
}

// Reject godoc
// @Summary Reject a match result
// @Tags matches
// @Description Vetoes a pending match. A single awaited account is enough.
// @Accept json
// @Produce json
// @Param matchID path string true "Match ID"
// @Param input body rejectMatchRequest false "Optional reason"
// @Success 200 {object} map[string]interface{} "Rejected match record"
// @Failure 400 {object} map[string]string "Malformed body"
// @Failure 403 {object} map[string]string "Account is not awaited on this match"
// @Failure 404 {object} map[string]string "Match not found"
// @Failure 409 {object} map[string]interface{} "Match already resolved"
// @Failure 422 {object} map[string]interface{} "Reason too long"
// @Security BearerAuth
// @Router /matches/{matchID}/reject [post]
func (h *MatchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.GetAccountIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input rejectMatchRequest
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matches.Reject(r.Context(), chi.URLParam(r, "matchID"), accountID, input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"match": match})
}
