package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/badminton-platform/middleware"
	"github.com/Dosada05/badminton-platform/models"
	"github.com/Dosada05/badminton-platform/repositories"
	"github.com/Dosada05/badminton-platform/services"
)

type AccountHandler struct {
	matches services.ConfirmationService
	ratings services.RatingService
}

func NewAccountHandler(matches services.ConfirmationService, ratings services.RatingService) *AccountHandler {
	return &AccountHandler{matches: matches, ratings: ratings}
}

// Pending godoc
// @Summary List matches awaiting the account's confirmation
// @Tags accounts
// @Produce json
// @Param accountID path string true "Account ID"
// @Success 200 {object} map[string]interface{} "Pending matches, oldest first"
// @Failure 403 {object} map[string]string "Only the account itself may list its queue"
// @Security BearerAuth
// @Router /accounts/{accountID}/pending [get]
func (h *AccountHandler) Pending(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.GetAccountIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	accountID := chi.URLParam(r, "accountID")
	if accountID != callerID {
		forbiddenResponse(w, r, "pending confirmations are visible to the account only")
		return
	}

	matches, err := h.matches.PendingFor(r.Context(), accountID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"matches": matches})
}

// Matches godoc
// @Summary List the account's match history
// @Tags accounts
// @Produce json
// @Param accountID path string true "Account ID"
// @Param status query string false "pending, confirmed or rejected"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]interface{} "Matches, newest first"
// @Failure 422 {object} map[string]interface{} "Invalid query parameters"
// @Security BearerAuth
// @Router /accounts/{accountID}/matches [get]
func (h *AccountHandler) Matches(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]string)
	filter := repositories.MatchListFilter{
		Limit:  queryInt(r, "limit", fields),
		Offset: queryInt(r, "offset", fields),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.MatchStatus(raw)
		switch status {
		case models.MatchStatusPending, models.MatchStatusConfirmed, models.MatchStatusRejected:
			filter.Status = &status
		default:
			fields["status"] = "must be one of pending, confirmed, rejected"
		}
	}
	if len(fields) > 0 {
		failedValidationResponse(w, r, fields)
		return
	}

	matches, err := h.matches.ListMatches(r.Context(), chi.URLParam(r, "accountID"), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"matches": matches})
}

// Ratings godoc
// @Summary Get the account's ratings
// @Tags accounts
// @Produce json
// @Param accountID path string true "Account ID"
// @Success 200 {object} map[string]interface{} "One rating per discipline"
// @Failure 404 {object} map[string]string "Account not found"
// @Security BearerAuth
// @Router /accounts/{accountID}/ratings [get]
func (h *AccountHandler) Ratings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.ratings.ListRatings(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"ratings": ratings})
}

// RatingHistory godoc
// @Summary Get the account's rating history
// @Tags accounts
// @Produce json
// @Param accountID path string true "Account ID"
// @Param discipline query string false "singles, doubles or mixed-doubles"
// @Param limit query int false "Number of entries (default 100)"
// @Success 200 {object} map[string]interface{} "Rating changes, newest first"
// @Failure 422 {object} map[string]interface{} "Invalid query parameters"
// @Security BearerAuth
// @Router /accounts/{accountID}/rating-history [get]
func (h *AccountHandler) RatingHistory(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]string)
	limit := queryInt(r, "limit", fields)
	if len(fields) > 0 {
		failedValidationResponse(w, r, fields)
		return
	}
	var discipline *models.Discipline
	if raw := r.URL.Query().Get("discipline"); raw != "" {
		d := models.Discipline(raw)
		discipline = &d
	}

	history, err := h.ratings.ListHistory(r.Context(), chi.URLParam(r, "accountID"), discipline, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"history": history})
}
