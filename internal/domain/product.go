package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductRecord represents a storefront product as published by the upstream catalog
type ProductRecord struct {
	ID       int64     `json:"id,omitempty"`
	SKU      string    `json:"sku,omitempty"`
	Title    string    `json:"title"`
	Handle   string    `json:"handle"`
	Vendor   string    `json:"vendor,omitempty"`
	Tags     Tags      `json:"tags,omitempty"`
	BodyHTML string    `json:"body_html,omitempty"`
	Variants []Variant `json:"variants"`
	Images   []Image   `json:"images"`
}

// Variant represents a size or option of a product
type Variant struct {
	ID            int64           `json:"id,omitempty"`
	Title         string          `json:"title"`
	Price         decimal.Decimal `json:"price"`
	Available     bool            `json:"available"`
	FeaturedImage *ImageRef       `json:"featured_image,omitempty"`
}

// Image represents a product image. The first image of a product is its default image.
type Image struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
}

// URL returns the storefront page of the product
func (p ProductRecord) URL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/products/" + p.Handle
}
