package handler

import (
	"net/http"

	"github.com/sakif/soundscape/internal/auth"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/service"
)

// RecommendationHandler serves genre-based picks for the signed-in user.
type RecommendationHandler struct {
	recommendations *service.RecommendationService
	auth            *service.AuthService
}

func NewRecommendationHandler(recommendations *service.RecommendationService, authService *service.AuthService) *RecommendationHandler {
	return &RecommendationHandler{recommendations: recommendations, auth: authService}
}

// RecommendationsResponse is one random sample. With no preferences set
// only Recommendations (empty) and Message are sent.
type RecommendationsResponse struct {
	Recommendations []model.Event `json:"recommendations"`
	Genres          []string      `json:"genres,omitempty"`
	TotalAvailable  *int          `json:"totalAvailable,omitempty"`
	Message         string        `json:"message,omitempty"`
}

// HandleGet returns up to four upcoming events for the user's genres.
//
// HTTP: GET /api/recommendations (requires auth)
func (h *RecommendationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recommendations.Get(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rec.Message != "" {
		writeJSON(w, http.StatusOK, RecommendationsResponse{
			Recommendations: rec.Events,
			Message:         rec.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{
		Recommendations: rec.Events,
		Genres:          rec.Genres,
		TotalAvailable:  &rec.TotalAvailable,
	})
}

// HandlePreferences replaces the user's genres. It stores them exactly like
// PUT /api/auth/preferences.
//
// HTTP: PUT /api/recommendations/preferences (requires auth)
// REQUEST BODY: {"genres": ["Rock"]}
func (h *RecommendationHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := updatePreferences(w, r, h.auth)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{
		Message: "Genre preferences updated successfully",
		User:    user.Public(),
	})
}
