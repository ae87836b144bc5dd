package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/tekfollow/tekfollow/internal/api"
	"github.com/tekfollow/tekfollow/internal/database"
)

// RepairOrderHandler serves the repair order read endpoints consumed by the
// dashboard boards and trackers.
type RepairOrderHandler struct {
	db *gorm.DB
}

// NewRepairOrderHandler creates a new RepairOrderHandler.
func NewRepairOrderHandler(db *gorm.DB) *RepairOrderHandler {
	return &RepairOrderHandler{db: db}
}

// HandleList returns one page of repair orders filtered by workflow status.
func (h *RepairOrderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status := database.FollowUpStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = database.StatusFollowUpBoard
	}
	switch status {
	case database.StatusFollowUpBoard, database.StatusFollowUpTracker,
		database.StatusAppointmentTracker, database.StatusDeleted:
	default:
		api.RespondError(w, http.StatusBadRequest, "Unknown status")
		return
	}

	page := api.ParsePagination(r)
	ros, total, err := database.ListRepairOrdersByStatus(h.db.WithContext(r.Context()), status, page.Offset(), page.PerPage)
	if err != nil {
		log.Printf("Repair order list failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list repair orders")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"repair_orders": ros,
		"total":         total,
		"page":          page.Page,
		"per_page":      page.PerPage,
		"total_pages":   page.TotalPages(total),
	})
}

// HandleGet returns a single repair order with its ordered contact history.
func (h *RepairOrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	roID := strings.TrimPrefix(r.URL.Path, "/api/repair-orders/")
	if roID == "" || strings.Contains(roID, "/") {
		api.RespondError(w, http.StatusBadRequest, "Missing repair order id")
		return
	}

	ro, err := database.GetRepairOrder(h.db.WithContext(r.Context()), roID)
	if errors.Is(err, database.ErrNotFound) {
		api.RespondErrorWithCode(w, http.StatusNotFound, "not_found", "Repair order not found")
		return
	}
	if err != nil {
		log.Printf("Repair order get failed for %s: %v", roID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load repair order")
		return
	}

	api.RespondJSON(w, http.StatusOK, ro)
}
