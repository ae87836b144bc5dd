package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// HTTPHandler wires all HTTP endpoints.
type HTTPHandler struct {
	contacts  *ContactHandler
	orders    *RepairOrderHandler
	sales     *SalesHandler
	analytics *AnalyticsHandler
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(contacts *ContactHandler, orders *RepairOrderHandler, sales *SalesHandler, analytics *AnalyticsHandler) *HTTPHandler {
	return &HTTPHandler{
		contacts:  contacts,
		orders:    orders,
		sales:     sales,
		analytics: analytics,
	}
}

// SetupRoutes configures all HTTP routes.
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/contacts", h.contacts.HandleSave)
	mux.HandleFunc("/api/repair-orders", h.orders.HandleList)
	mux.HandleFunc("/api/repair-orders/", h.orders.HandleGet)
	mux.HandleFunc("/api/sales", h.sales.HandleList)
	mux.HandleFunc("/api/analytics", h.analytics.HandleReport)
}

// handleHealth returns a simple health check response.
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := map[string]string{
		"status": "ok",
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}
