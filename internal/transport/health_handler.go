package transport

import (
	"context"
	"net/http"
	"time"

	"wtb-catalog/internal/middleware"
	"wtb-catalog/internal/service"
)

// HealthCheck reports the state of a dependency. A "status" key of "down"
// marks the dependency unhealthy.
type HealthCheck func(ctx context.Context) map[string]string

// HealthResponse is the /health payload
type HealthResponse struct {
	Status             string                       `json:"status"`
	ProductCacheStatus string                       `json:"product_cache_status"`
	ProductsCached     int                          `json:"products_cached"`
	LastCacheUpdate    *time.Time                   `json:"last_cache_update"`
	Timestamp          int64                        `json:"timestamp"`
	Dependencies       map[string]map[string]string `json:"dependencies,omitempty"`
}

// HealthHandler serves liveness and catalog readiness
type HealthHandler struct {
	catalog service.ProductCatalog
	checks  map[string]HealthCheck
	now     func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(catalog service.ProductCatalog, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{catalog: catalog, checks: checks, now: time.Now}
}

// ServeHTTP reports "healthy" unless a dependency is down. The catalog is
// "loading" until it holds at least one product.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.catalog.Status()

	response := HealthResponse{
		Status:             "healthy",
		ProductCacheStatus: "loading",
		ProductsCached:     status.ProductsCount,
		LastCacheUpdate:    status.LastUpdate,
		Timestamp:          h.now().Unix(),
	}
	if status.ProductsCount > 0 {
		response.ProductCacheStatus = "initialized"
	}

	code := http.StatusOK
	if len(h.checks) > 0 {
		response.Dependencies = make(map[string]map[string]string, len(h.checks))
		for name, check := range h.checks {
			result := check(r.Context())
			response.Dependencies[name] = result
			if result["status"] == "down" {
				response.Status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
	}

	middleware.RespondWithJSON(w, code, response)
}
