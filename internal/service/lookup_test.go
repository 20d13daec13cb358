package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"wtb-catalog/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func loadedCache(t *testing.T, records ...domain.ProductRecord) *ProductCache {
	t.Helper()
	cache := NewProductCache(&mockFetcher{records: records}, newMockStore(), Options{BaseURL: "https://shop.test/"}, zap.NewNop())
	require.NoError(t, cache.Refresh(context.Background(), true))
	return cache
}

func TestFindBySkuAndVariant(t *testing.T) {
	cache := loadedCache(t, shoeA())

	result, err := cache.FindBySkuAndVariant("ABC-1", "42")
	require.NoError(t, err)
	require.Equal(t, "Shoe A", result.ProductName)
	require.Equal(t, "ABC-1", result.SKU)
	require.Equal(t, "42", result.Variant)
	require.True(t, decimal.RequireFromString("120").Equal(result.Price))
	require.True(t, result.Available)
	require.Equal(t, "http://x/a.png", result.ImageURL)
	require.Equal(t, "https://shop.test/products/shoe-a", result.ProductURL)
}

func TestFindBySkuAndVariant_NormalizesInput(t *testing.T) {
	cache := loadedCache(t, shoeA())

	result, err := cache.FindBySkuAndVariant("  abc-1 ", " 43 ")
	require.NoError(t, err)
	require.Equal(t, "ABC-1", result.SKU)
	require.Equal(t, "43", result.Variant, "stored title is returned trimmed")
	require.False(t, result.Available)
}

func TestFindBySkuAndVariant_NotFound(t *testing.T) {
	cache := loadedCache(t, shoeA())

	_, err := cache.FindBySkuAndVariant("ABC-1", "99")
	require.ErrorIs(t, err, domain.ErrVariantNotFound)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = cache.FindBySkuAndVariant("ZZZ-9", "42")
	require.ErrorIs(t, err, domain.ErrSKUNotFound)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = cache.FindBySkuAndVariant("   ", "42")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFindBySkuAndVariant_SubstringMatch(t *testing.T) {
	cache := loadedCache(t,
		domain.ProductRecord{SKU: "FZ8117-100", Title: "Dunk", Handle: "dunk", Variants: []domain.Variant{{Title: "42"}}},
		domain.ProductRecord{SKU: "DD1391-100", Title: "Panda", Handle: "panda", Variants: []domain.Variant{{Title: "42"}}},
	)

	result, err := cache.FindBySkuAndVariant("8117-100", "42")
	require.NoError(t, err)
	require.Equal(t, "FZ8117-100", result.SKU)
	require.Equal(t, "Dunk", result.ProductName)
}

func TestResolveImage(t *testing.T) {
	featured := domain.ImageRef(2)
	missing := domain.ImageRef(9)
	product := domain.ProductRecord{Images: []domain.Image{{ID: 1, Src: "first.png"}, {ID: 2, Src: "second.png"}}}

	require.Equal(t, "first.png", resolveImage(product, nil))
	require.Equal(t, "first.png", resolveImage(product, &domain.Variant{}))
	require.Equal(t, "second.png", resolveImage(product, &domain.Variant{FeaturedImage: &featured}))
	require.Equal(t, "first.png", resolveImage(product, &domain.Variant{FeaturedImage: &missing}))
	require.Empty(t, resolveImage(domain.ProductRecord{}, &domain.Variant{FeaturedImage: &featured}))
}

func TestFindBySkuAllSizes(t *testing.T) {
	product := shoeA()
	product.Images = []domain.Image{{ID: 5, Src: "http://x/main.png"}, {ID: 1, Src: "http://x/a.png"}}
	cache := loadedCache(t, product)

	summary, err := cache.FindBySkuAllSizes("abc")
	require.NoError(t, err)
	require.Equal(t, "ABC-1", summary.SKU)
	require.Equal(t, "Shoe A", summary.ProductName)
	require.Equal(t, "http://x/main.png", summary.ImageURL, "all sizes uses the first image")
	require.Equal(t, "https://shop.test/products/shoe-a", summary.ProductURL)

	_, err = cache.FindBySkuAllSizes("nope")
	require.ErrorIs(t, err, domain.ErrSKUNotFound)
}

func TestFindBySkuWithVariants(t *testing.T) {
	product := shoeA()
	product.Images = []domain.Image{{ID: 5, Src: "http://x/main.png"}, {ID: 1, Src: "http://x/a.png"}}
	cache := loadedCache(t, product)

	t.Run("all valid keeps request order", func(t *testing.T) {
		result, err := cache.FindBySkuWithVariants("abc-1", []string{"43", " 42"})
		require.NoError(t, err)
		require.True(t, result.Valid())
		require.Equal(t, []string{"43", "42"}, result.Variants)
		require.Equal(t, "http://x/main.png", result.ImageURL, "first requested variant has no featured image")
		require.Equal(t, "Shoe A", result.ProductName)
	})

	t.Run("first variant featured image", func(t *testing.T) {
		result, err := cache.FindBySkuWithVariants("abc-1", []string{"42", "43"})
		require.NoError(t, err)
		require.Equal(t, "http://x/a.png", result.ImageURL)
	})

	t.Run("invalid variants reported as given", func(t *testing.T) {
		result, err := cache.FindBySkuWithVariants("ABC-1", []string{"42", " 99 "})
		require.NoError(t, err)
		require.False(t, result.Valid())
		require.Equal(t, []string{" 99 "}, result.InvalidVariants)
		require.Equal(t, "ABC-1", result.SKU)
		require.Empty(t, result.Variants)
		require.Empty(t, result.ProductName)
	})

	t.Run("empty request", func(t *testing.T) {
		_, err := cache.FindBySkuWithVariants("ABC-1", nil)
		require.ErrorIs(t, err, domain.ErrNoVariantsRequested)
	})

	t.Run("unknown sku", func(t *testing.T) {
		_, err := cache.FindBySkuWithVariants("QQQ", []string{"42"})
		require.ErrorIs(t, err, domain.ErrSKUNotFound)
	})
}

func TestLookups_EmptyCache(t *testing.T) {
	cache := NewProductCache(&mockFetcher{}, newMockStore(), Options{}, zap.NewNop())

	_, err := cache.FindBySkuAllSizes("ABC-1")
	require.ErrorIs(t, err, domain.ErrSKUNotFound)
	_, err = cache.FindBySkuAndVariant("ABC-1", "42")
	require.ErrorIs(t, err, domain.ErrSKUNotFound)
}

// Feature: wtb-catalog, Property 6: Lookups ignore case and surrounding whitespace
func TestProperty_LookupsIgnoreCaseAndWhitespace(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a mangled sku and size resolve to the stored product", prop.ForAll(
		func(code string, size string, lpad int, rpad int) bool {
			cache := NewProductCache(&mockFetcher{records: []domain.ProductRecord{{
				SKU:      code,
				Title:    "Generated",
				Handle:   "generated",
				Variants: []domain.Variant{{Title: size, Price: decimal.NewFromInt(1)}},
			}}}, newMockStore(), Options{}, zap.NewNop())
			if err := cache.Refresh(context.Background(), true); err != nil {
				return false
			}

			query := strings.Repeat(" ", lpad) + strings.ToLower(code) + strings.Repeat(" ", rpad)
			variant := strings.Repeat(" ", rpad) + strings.ToLower(size) + strings.Repeat(" ", lpad)

			result, err := cache.FindBySkuAndVariant(query, variant)
			if err != nil {
				return false
			}
			return result.SKU == code && result.Variant == size
		},
		gen.RegexMatch(`[A-Z]{2}[0-9]{4}-[0-9]{3}`),
		gen.RegexMatch(`[0-9]{2}(\.5)?|[SMLX]{1,2}`),
		gen.IntRange(0, 3),
		gen.IntRange(0, 3),
	))

	properties.Property("an invalid size never yields a partial multi-size result", prop.ForAll(
		func(valid []string, bogus string) bool {
			variants := make([]domain.Variant, len(valid))
			for i, title := range valid {
				variants[i] = domain.Variant{Title: title}
			}
			cache := NewProductCache(&mockFetcher{records: []domain.ProductRecord{{SKU: "ABC-1", Variants: variants}}},
				newMockStore(), Options{}, zap.NewNop())
			if err := cache.Refresh(context.Background(), true); err != nil {
				return false
			}

			requested := append(append([]string{}, valid...), bogus)
			result, err := cache.FindBySkuWithVariants("ABC-1", requested)
			if err != nil {
				return false
			}
			return !result.Valid() &&
				len(result.InvalidVariants) == 1 &&
				result.InvalidVariants[0] == bogus &&
				len(result.Variants) == 0
		},
		gen.SliceOf(gen.RegexMatch(`[0-9]{2}`)),
		gen.RegexMatch(`X[A-Z]{3}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
