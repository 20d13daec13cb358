// Package index builds the SKU keyed view of the catalog used for lookups.
//
// An Index is immutable once built. Refreshes build a new Index and publish
// it as a whole, so readers holding the previous one are unaffected.
package index

import (
	"sort"
	"strings"

	"wtb-catalog/internal/domain"
	"wtb-catalog/internal/sku"
)

// Index maps normalized SKUs to products
type Index struct {
	products map[string]domain.ProductRecord
	// keys in resolution order: shortest first, then lexicographic
	keys      []string
	total     int
	unindexed []domain.ProductRecord
}

// DeriveSKU returns the normalized SKU of a record. An explicit SKU field wins
// over one extracted from the description.
func DeriveSKU(record domain.ProductRecord) (string, bool) {
	if explicit := sku.Normalize(record.SKU); explicit != "" {
		return explicit, true
	}

	extracted, ok := sku.Extract(record.BodyHTML)
	if !ok {
		return "", false
	}
	normalized := sku.Normalize(extracted)
	return normalized, normalized != ""
}

// Build indexes records by SKU. Records without a SKU are skipped; when two
// records share a SKU the later one wins.
func Build(records []domain.ProductRecord) *Index {
	idx := &Index{
		products: make(map[string]domain.ProductRecord, len(records)),
		total:    len(records),
	}

	for _, record := range records {
		key, ok := DeriveSKU(record)
		if !ok {
			idx.unindexed = append(idx.unindexed, record)
			continue
		}
		record.SKU = key
		idx.products[key] = record
	}

	idx.keys = make([]string, 0, len(idx.products))
	for key := range idx.products {
		idx.keys = append(idx.keys, key)
	}
	sort.Slice(idx.keys, func(i, j int) bool {
		a, b := idx.keys[i], idx.keys[j]
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})

	return idx
}

// Empty returns an index with no products
func Empty() *Index {
	return Build(nil)
}

// Len returns the number of indexed SKUs
func (i *Index) Len() int {
	return len(i.products)
}

// Total returns the number of records the index was built from
func (i *Index) Total() int {
	return i.total
}

// Get returns the product stored under an already normalized SKU
func (i *Index) Get(key string) (domain.ProductRecord, bool) {
	product, ok := i.products[key]
	return product, ok
}

// Keys returns the indexed SKUs in resolution order
func (i *Index) Keys() []string {
	keys := make([]string, len(i.keys))
	copy(keys, i.keys)
	return keys
}

// Unindexed returns the records that yielded no SKU
func (i *Index) Unindexed() []domain.ProductRecord {
	return i.unindexed
}

// Resolve finds the product for a user supplied SKU. An exact match wins;
// otherwise the first key, in resolution order, that contains the query or is
// contained by it. The matched key is returned alongside the product.
func (i *Index) Resolve(query string) (string, domain.ProductRecord, bool) {
	normalized := sku.Normalize(query)
	if normalized == "" {
		return "", domain.ProductRecord{}, false
	}

	if product, ok := i.products[normalized]; ok {
		return normalized, product, true
	}

	for _, key := range i.keys {
		if strings.Contains(key, normalized) || strings.Contains(normalized, key) {
			return key, i.products[key], true
		}
	}

	return "", domain.ProductRecord{}, false
}
