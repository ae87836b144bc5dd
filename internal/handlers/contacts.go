package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/tekfollow/tekfollow/internal/api"
	"github.com/tekfollow/tekfollow/internal/database"
	"github.com/tekfollow/tekfollow/internal/services"
)

// ContactHandler serves the contact save endpoint.
type ContactHandler struct {
	contacts *services.ContactService
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// contactSaveRequest is the request body of POST /api/contacts.
type contactSaveRequest struct {
	ROID        string                `json:"ro_id" validate:"required"`
	ContactData services.ContactInput `json:"contact_data" validate:"required"`
}

// HandleSave records one contact event against a repair order.
func (h *ContactHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req contactSaveRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	result, err := h.contacts.RecordContact(r.Context(), req.ROID, req.ContactData)
	if err != nil {
		h.respondSaveError(w, req.ROID, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"ro_id":       result.ROID,
		"new_status":  result.NewStatus,
		"reach_count": result.ReachCount,
		"edit_mode":   result.EditMode,
	})
}

func (h *ContactHandler) respondSaveError(w http.ResponseWriter, roID string, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		api.RespondValidationError(w, validationErr.Fields)
	case errors.Is(err, database.ErrNotFound):
		api.RespondErrorWithCode(w, http.StatusNotFound, "not_found", "Repair order not found")
	case errors.Is(err, database.ErrVersionConflict):
		api.RespondErrorWithCode(w, http.StatusConflict, "conflict", "Repair order was modified concurrently, retry the save")
	default:
		log.Printf("Contact save failed for %s: %v", roID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to save contact")
	}
}
