package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/tekfollow/tekfollow/internal/api"
	"github.com/tekfollow/tekfollow/internal/services"
)

// AnalyticsHandler serves the aggregate follow-up report.
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analytics *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// HandleReport computes and returns the analytics report. Optional query
// parameters: user_id, start_date, end_date (RFC 3339).
func (h *AnalyticsHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter := services.ReportFilter{}
	if userID := r.URL.Query().Get("user_id"); userID != "" && userID != "all" {
		filter.UserID = userID
	}

	var err error
	if filter.Start, err = parseTimeParam(r, "start_date"); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid start_date")
		return
	}
	if filter.End, err = parseTimeParam(r, "end_date"); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid end_date")
		return
	}

	report, err := h.analytics.Report(r.Context(), filter)
	if err != nil {
		log.Printf("Analytics report failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute analytics")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"analytics": report,
	})
}

// parseTimeParam reads an optional RFC 3339 timestamp query parameter.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
