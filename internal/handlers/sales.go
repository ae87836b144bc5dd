package handlers

import (
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/tekfollow/tekfollow/internal/api"
	"github.com/tekfollow/tekfollow/internal/database"
)

// SalesHandler serves attributed sale records to the return-sales view.
type SalesHandler struct {
	db *gorm.DB
}

// NewSalesHandler creates a new SalesHandler.
func NewSalesHandler(db *gorm.DB) *SalesHandler {
	return &SalesHandler{db: db}
}

// HandleList returns attributed sales, optionally filtered by type.
func (h *SalesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	db := h.db.WithContext(r.Context())

	var sales []database.SaleRecord
	var err error
	switch saleType := r.URL.Query().Get("type"); saleType {
	case "":
		sales, err = database.ListSaleRecords(db)
	case string(database.SaleTypeDirect), string(database.SaleTypeIndirect):
		sales, err = database.ListSaleRecordsByType(db, database.SaleType(saleType))
	default:
		api.RespondError(w, http.StatusBadRequest, "Unknown sale type")
		return
	}
	if err != nil {
		log.Printf("Sale list failed: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list sales")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"sales": sales,
		"total": len(sales),
	})
}
