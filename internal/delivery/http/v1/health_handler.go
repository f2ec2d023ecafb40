package v1

import (
	"context"
	"net/http"
	"time"

	"coupon-service/internal/domain"
	"coupon-service/pkg/utils"
)

// Pinger is implemented by backends whose liveness the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a health handler. db may be nil when the
// service runs without a database.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /health", h.Health) // Root health check for load balancers
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			utils.WriteJSON(w, http.StatusServiceUnavailable, domain.Response{Success: false, Message: "database unavailable"})
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, domain.Response{Success: true, Message: "ok"})
}
