package service

import (
	"strings"

	"wtb-catalog/internal/domain"
)

// FindBySkuAndVariant returns the product matching sku together with the
// requested size. Variant titles are compared trimmed and case-insensitively.
func (c *ProductCache) FindBySkuAndVariant(sku, variant string) (*domain.ProductResult, error) {
	idx := c.index.Load()

	key, product, ok := idx.Resolve(sku)
	if !ok {
		return nil, domain.ErrSKUNotFound
	}

	match, ok := findVariant(product.Variants, variant)
	if !ok {
		return nil, domain.ErrVariantNotFound
	}

	return &domain.ProductResult{
		ProductName: product.Title,
		SKU:         key,
		Variant:     strings.TrimSpace(match.Title),
		ImageURL:    resolveImage(product, &match),
		Price:       match.Price,
		Available:   match.Available,
		ProductURL:  product.URL(c.options.BaseURL),
	}, nil
}

// FindBySkuAllSizes returns the product matching sku without checking sizes
func (c *ProductCache) FindBySkuAllSizes(sku string) (*domain.ProductSummary, error) {
	idx := c.index.Load()

	key, product, ok := idx.Resolve(sku)
	if !ok {
		return nil, domain.ErrSKUNotFound
	}

	return &domain.ProductSummary{
		ProductName: product.Title,
		SKU:         key,
		ImageURL:    resolveImage(product, nil),
		ProductURL:  product.URL(c.options.BaseURL),
	}, nil
}

// FindBySkuWithVariants checks several sizes at once. Missing sizes are
// reported through InvalidVariants with a nil error.
func (c *ProductCache) FindBySkuWithVariants(sku string, variants []string) (*domain.MultiVariantResult, error) {
	if len(variants) == 0 {
		return nil, domain.ErrNoVariantsRequested
	}

	idx := c.index.Load()

	key, product, ok := idx.Resolve(sku)
	if !ok {
		return nil, domain.ErrSKUNotFound
	}

	matched := make([]string, 0, len(variants))
	var invalid []string
	for _, requested := range variants {
		match, ok := findVariant(product.Variants, requested)
		if !ok {
			invalid = append(invalid, requested)
			continue
		}
		matched = append(matched, strings.TrimSpace(match.Title))
	}

	if len(invalid) > 0 {
		return &domain.MultiVariantResult{
			SKU:             key,
			InvalidVariants: invalid,
		}, nil
	}

	first, _ := findVariant(product.Variants, variants[0])
	return &domain.MultiVariantResult{
		ProductName: product.Title,
		SKU:         key,
		Variants:    matched,
		ImageURL:    resolveImage(product, &first),
		ProductURL:  product.URL(c.options.BaseURL),
	}, nil
}

func findVariant(variants []domain.Variant, title string) (domain.Variant, bool) {
	wanted := strings.TrimSpace(title)
	for _, v := range variants {
		if strings.EqualFold(strings.TrimSpace(v.Title), wanted) {
			return v, true
		}
	}
	return domain.Variant{}, false
}

// resolveImage picks the product's first image, or the variant's featured
// image when it is one of the product images
func resolveImage(product domain.ProductRecord, variant *domain.Variant) string {
	if len(product.Images) == 0 {
		return ""
	}
	url := product.Images[0].Src

	if variant == nil {
		return url
	}
	if id := variant.FeaturedImage.ID(); id != 0 {
		for _, image := range product.Images {
			if image.ID == id {
				return image.Src
			}
		}
	}
	return url
}
