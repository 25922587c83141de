package handlers

import (
	"net/http"

	"studentpredict/backend/internal/gateway/util"
	"studentpredict/backend/internal/prediction"
)

// FacultyHandler holds the prediction service for faculty dashboard views.
type FacultyHandler struct {
	PredictionService *prediction.Service
}

// Dashboard handles GET /api/faculty/dashboard
func (h *FacultyHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	dash, err := h.PredictionService.DashboardStats(r.Context(), user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, dash, "Faculty dashboard")
}
