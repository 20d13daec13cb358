// Package snapshot persists the indexed catalog so a restart within the cache
// duration can serve lookups without contacting the storefront.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"wtb-catalog/internal/domain"
	"wtb-catalog/internal/index"
	"wtb-catalog/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrSnapshotExpired = errors.New("snapshot expired")
)

// Shape is the layout of the products entry of a stored document
type Shape string

const (
	// ShapeMap keys products by SKU
	ShapeMap Shape = "map"
	// ShapeList is the legacy layout holding raw records
	ShapeList Shape = "list"
)

// naive timestamps carry no zone and are read as local time
const naiveLayout = "2006-01-02T15:04:05.999999999"

// PersistenceError wraps a failure to read, write, encode or decode a snapshot
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Snapshot is a decoded, still valid, stored catalog
type Snapshot struct {
	LastUpdate time.Time
	Records    []domain.ProductRecord
	Shape      Shape
}

type document struct {
	LastUpdate         string            `json:"last_update,omitempty"`
	TotalProducts      int               `json:"total_products"`
	ProductsWithSKU    int               `json:"products_with_sku"`
	Products           json.RawMessage   `json:"products"`
	ProductsWithoutSKU []unindexedRecord `json:"products_without_sku"`
}

type storedProduct struct {
	SKU        string           `json:"sku"`
	Title      string           `json:"title"`
	Handle     string           `json:"handle"`
	Vendor     string           `json:"vendor"`
	Tags       domain.Tags      `json:"tags"`
	Variants   []domain.Variant `json:"variants"`
	Images     []domain.Image   `json:"images"`
	ProductURL string           `json:"product_url"`
}

type unindexedRecord struct {
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

// Store encodes indexes into snapshot documents kept in a SnapshotRepository
type Store struct {
	repo          repository.SnapshotRepository
	cacheDuration time.Duration
	baseURL       string
	logger        *zap.Logger
	now           func() time.Time
}

// NewStore creates a new snapshot store
func NewStore(repo repository.SnapshotRepository, cacheDuration time.Duration, baseURL string, logger *zap.Logger) *Store {
	return &Store{
		repo:          repo,
		cacheDuration: cacheDuration,
		baseURL:       baseURL,
		logger:        logger,
		now:           time.Now,
	}
}

// Save writes the index as the current snapshot, stamped with at
func (s *Store) Save(ctx context.Context, idx *index.Index, at time.Time) error {
	products := make(map[string]storedProduct, idx.Len())
	for _, key := range idx.Keys() {
		record, _ := idx.Get(key)
		products[key] = storedProduct{
			SKU:        key,
			Title:      record.Title,
			Handle:     record.Handle,
			Vendor:     record.Vendor,
			Tags:       nonNilTags(record.Tags),
			Variants:   nonNil(record.Variants),
			Images:     nonNil(record.Images),
			ProductURL: record.URL(s.baseURL),
		}
	}

	encodedProducts, err := json.Marshal(products)
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}

	unindexed := make([]unindexedRecord, 0, len(idx.Unindexed()))
	for _, record := range idx.Unindexed() {
		unindexed = append(unindexed, unindexedRecord{Title: record.Title, Handle: record.Handle})
	}

	data, err := json.MarshalIndent(document{
		LastUpdate:         at.UTC().Format(time.RFC3339Nano),
		TotalProducts:      idx.Total(),
		ProductsWithSKU:    idx.Len(),
		Products:           encodedProducts,
		ProductsWithoutSKU: unindexed,
	}, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}

	if err := s.repo.Write(ctx, data); err != nil {
		return &PersistenceError{Op: "write", Err: err}
	}

	s.logger.Info("Saved catalog snapshot",
		zap.String("backend", s.repo.Describe()),
		zap.Int("products_with_sku", idx.Len()),
		zap.Int("products_without_sku", len(unindexed)),
	)
	return nil
}

// Load reads the current snapshot. It returns repository.ErrSnapshotNotFound
// when nothing is stored and ErrSnapshotExpired when the stored document is
// older than the cache duration or carries no timestamp.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.repo.Read(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "read", Err: err}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &PersistenceError{Op: "decode", Err: err}
	}

	if doc.LastUpdate == "" {
		return nil, ErrSnapshotExpired
	}
	lastUpdate, err := parseTimestamp(doc.LastUpdate)
	if err != nil {
		return nil, &PersistenceError{Op: "decode", Err: err}
	}
	if s.now().Sub(lastUpdate) >= s.cacheDuration {
		return nil, ErrSnapshotExpired
	}

	records, shape, err := decodeProducts(doc.Products)
	if err != nil {
		return nil, &PersistenceError{Op: "decode", Err: err}
	}

	s.logger.Info("Loaded catalog snapshot",
		zap.String("backend", s.repo.Describe()),
		zap.String("shape", string(shape)),
		zap.Int("products", len(records)),
		zap.Time("last_update", lastUpdate),
	)

	return &Snapshot{LastUpdate: lastUpdate, Records: records, Shape: shape}, nil
}

func decodeProducts(raw json.RawMessage) ([]domain.ProductRecord, Shape, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ShapeMap, nil
	}

	if raw[0] == '[' {
		var records []domain.ProductRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, ShapeList, fmt.Errorf("failed to decode product list: %w", err)
		}
		return records, ShapeList, nil
	}

	var byKey map[string]domain.ProductRecord
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, ShapeMap, fmt.Errorf("failed to decode product map: %w", err)
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := make([]domain.ProductRecord, 0, len(keys))
	for _, key := range keys {
		record := byKey[key]
		if strings.TrimSpace(record.SKU) == "" {
			record.SKU = key
		}
		records = append(records, record)
	}
	return records, ShapeMap, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid last_update %q: %w", value, err)
	}
	return t, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func nonNilTags(tags domain.Tags) domain.Tags {
	if tags == nil {
		return domain.Tags{}
	}
	return tags
}
