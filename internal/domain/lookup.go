package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrSKUNotFound         = fmt.Errorf("sku %w", ErrNotFound)
	ErrVariantNotFound     = fmt.Errorf("variant %w", ErrNotFound)
	ErrNoVariantsRequested = errors.New("no variants requested")
)

// ProductResult is the answer to a single size lookup
type ProductResult struct {
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Variant     string          `json:"variant"`
	ImageURL    string          `json:"image_url,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Available   bool            `json:"available"`
	ProductURL  string          `json:"product_url"`
}

// MarshalJSON writes the price as a bare JSON number
func (r ProductResult) MarshalJSON() ([]byte, error) {
	type result ProductResult
	return json.Marshal(struct {
		result
		Price json.Number `json:"price"`
	}{
		result: result(r),
		Price:  json.Number(r.Price.String()),
	})
}

// ProductSummary references a product without committing to a size
type ProductSummary struct {
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	ImageURL    string `json:"image_url,omitempty"`
	ProductURL  string `json:"product_url"`
}

// MultiVariantResult is the answer to a lookup of several sizes at once.
// When InvalidVariants is not empty only SKU is set alongside it.
type MultiVariantResult struct {
	ProductName     string   `json:"product_name,omitempty"`
	SKU             string   `json:"sku"`
	Variants        []string `json:"variants,omitempty"`
	InvalidVariants []string `json:"invalid_variants,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
	ProductURL      string   `json:"product_url,omitempty"`
}

// Valid reports whether every requested variant exists on the product
func (r *MultiVariantResult) Valid() bool {
	return len(r.InvalidVariants) == 0
}

// CacheStatus is a read-only view of the product cache state
type CacheStatus struct {
	IsRefreshing  bool       `json:"is_refreshing"`
	HasCache      bool       `json:"has_cache"`
	ProductsCount int        `json:"products_count"`
	LastUpdate    *time.Time `json:"last_update"`
}
