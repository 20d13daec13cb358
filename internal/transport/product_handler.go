package transport

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wtb-catalog/internal/domain"
	"wtb-catalog/internal/middleware"
	"wtb-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RetryAfter is suggested to clients while the first catalog load is running
const RetryAfter = 30 * time.Second

// LookupParams are the path and query parameters of a product lookup
type LookupParams struct {
	SKU      string   `validate:"required,max=64,printascii"`
	Variant  string   `validate:"omitempty,max=32"`
	Variants []string `validate:"omitempty,max=50,dive,required,max=32"`
}

// RefreshRequest represents the manual refresh request payload
type RefreshRequest struct {
	Force bool `json:"force"`
}

// RefreshResponse reports the cache state after a manual refresh
type RefreshResponse struct {
	Refreshed bool               `json:"refreshed"`
	Message   string             `json:"message,omitempty"`
	Status    domain.CacheStatus `json:"status"`
}

// ProductHandler handles HTTP requests for product lookups and cache control
type ProductHandler struct {
	catalog service.ProductCatalog
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.ProductCatalog, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers the lookup and cache routes. Lookup middleware
// wraps the product routes and refresh middleware the manual refresh.
func (h *ProductHandler) RegisterRoutes(r chi.Router, lookupMiddleware, refreshMiddleware []func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(lookupMiddleware...)
		r.Use(h.requireCache)
		r.Get("/{sku}", h.GetAllSizes)
		r.Get("/{sku}/variants", h.GetVariants)
		r.Get("/{sku}/variants/{variant}", h.GetVariant)
	})

	r.Route("/api/cache", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.With(refreshMiddleware...).Post("/refresh", h.Refresh)
	})
}

// requireCache answers 503 while the first load is still running
func (h *ProductHandler) requireCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := h.catalog.Status()
		if status.IsRefreshing && !status.HasCache {
			h.logger.Info("Lookup blocked while catalog loads", zap.String("path", r.URL.Path))
			middleware.RespondUnavailable(w, RetryAfter, "product data is being refreshed, please try again in a moment")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetAllSizes handles a lookup without a size
func (h *ProductHandler) GetAllSizes(w http.ResponseWriter, r *http.Request) {
	sku, ok := h.pathParam(w, r, "sku")
	if !ok {
		return
	}
	params := LookupParams{SKU: sku}
	if !h.validate(w, params) {
		return
	}

	summary, err := h.catalog.FindBySkuAllSizes(params.SKU)
	if err != nil {
		h.respondLookupError(w, err, params)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// GetVariant handles a lookup of a single size
func (h *ProductHandler) GetVariant(w http.ResponseWriter, r *http.Request) {
	sku, ok := h.pathParam(w, r, "sku")
	if !ok {
		return
	}
	variant, ok := h.pathParam(w, r, "variant")
	if !ok {
		return
	}
	params := LookupParams{SKU: sku, Variant: variant}
	if !h.validate(w, params) {
		return
	}

	result, err := h.catalog.FindBySkuAndVariant(params.SKU, params.Variant)
	if err != nil {
		h.respondLookupError(w, err, params)
		return
	}

	h.logger.Info("Product found",
		zap.String("sku", result.SKU),
		zap.String("variant", result.Variant),
	)
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// GetVariants handles a lookup of several sizes given as ?names=42,43
func (h *ProductHandler) GetVariants(w http.ResponseWriter, r *http.Request) {
	sku, ok := h.pathParam(w, r, "sku")
	if !ok {
		return
	}
	params := LookupParams{
		SKU:      sku,
		Variants: splitVariants(r.URL.Query()["names"]),
	}
	if !h.validate(w, params) {
		return
	}

	result, err := h.catalog.FindBySkuWithVariants(params.SKU, params.Variants)
	if err != nil {
		h.respondLookupError(w, err, params)
		return
	}

	if !result.Valid() {
		h.logger.Info("Invalid variants requested",
			zap.String("sku", result.SKU),
			zap.Strings("invalid_variants", result.InvalidVariants),
		)
		middleware.RespondWithJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// GetStatus reports the cache state
func (h *ProductHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.catalog.Status())
}

// Refresh runs a manual refresh. It keeps running when the client goes away
// so a started fetch is never abandoned halfway.
func (h *ProductHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Refresh validation failed", zap.Error(err))
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return
	}

	userID, _ := middleware.GetUserID(r.Context())
	h.logger.Info("Manual cache refresh requested",
		zap.String("user_id", userID),
		zap.Bool("force", req.Force),
	)

	err := h.catalog.Refresh(context.WithoutCancel(r.Context()), req.Force)
	status := h.catalog.Status()

	switch {
	case err == nil:
		middleware.RespondWithJSON(w, http.StatusOK, RefreshResponse{Refreshed: true, Status: status})
	case errors.Is(err, service.ErrNoProductsFetched), errors.Is(err, service.ErrNoIndexableProducts):
		h.logger.Warn("Manual cache refresh kept the existing cache", zap.Error(err))
		middleware.RespondWithJSON(w, http.StatusBadGateway, RefreshResponse{
			Refreshed: false,
			Message:   err.Error(),
			Status:    status,
		})
	default:
		h.logger.Error("Manual cache refresh failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to refresh cache")
	}
}

// pathParam returns a decoded route parameter. chi matches on the raw path
// when the request escapes a slash, leaving parameters escaped.
func (h *ProductHandler) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, true
	}

	decoded, err := url.PathUnescape(value)
	if err != nil {
		h.logger.Debug("Malformed path parameter", zap.String("param", name), zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "malformed "+name+" in path")
		return "", false
	}
	return decoded, true
}

func (h *ProductHandler) validate(w http.ResponseWriter, params LookupParams) bool {
	if err := middleware.ValidateRequest(params); err != nil {
		h.logger.Debug("Lookup validation failed", zap.Error(err))
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return false
	}
	return true
}

func (h *ProductHandler) respondLookupError(w http.ResponseWriter, err error, params LookupParams) {
	switch {
	case errors.Is(err, domain.ErrSKUNotFound):
		h.logger.Info("Product not found", zap.String("sku", params.SKU))
		middleware.RespondWithError(w, http.StatusNotFound, "product not found for sku: "+params.SKU)
	case errors.Is(err, domain.ErrVariantNotFound):
		h.logger.Info("Variant not found", zap.String("sku", params.SKU), zap.String("variant", params.Variant))
		middleware.RespondWithError(w, http.StatusNotFound,
			"product not found for sku: "+params.SKU+" with variant: "+params.Variant)
	case errors.Is(err, domain.ErrNoVariantsRequested):
		middleware.RespondWithError(w, http.StatusBadRequest, "at least one variant name is required")
	default:
		h.logger.Error("Lookup failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
	}
}

// splitVariants accepts both ?names=42,43 and repeated ?names= parameters
func splitVariants(values []string) []string {
	var variants []string
	for _, value := range values {
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				variants = append(variants, name)
			}
		}
	}
	return variants
}
