// Package catalog retrieves the storefront product listing.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wtb-catalog/internal/domain"

	"go.uber.org/zap"
)

const (
	DefaultPageSize    = 250
	DefaultPageTimeout = 30 * time.Second

	// upper bound for a single listing page body
	maxPageBytes = 64 << 20
)

// Config holds catalog client settings
type Config struct {
	BaseURL     string
	PageSize    int
	PageTimeout time.Duration
	MaxPages    int // 0 means no limit
	Paginate    bool
	UserAgent   string
}

// FetchError describes why pagination stopped before the end of the catalog
type FetchError struct {
	Page       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog page %d: unexpected status %d", e.Page, e.StatusCode)
	}
	return fmt.Sprintf("catalog page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type listingResponse struct {
	Products []domain.ProductRecord `json:"products"`
}

// Client pages through <base>/products.json
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new catalog client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger.With(zap.String("component", "catalog")),
	}
}

// FetchAll retrieves every page of the catalog. The records accumulated so far
// are returned even when a page fails; the error then reports the failing page.
func (c *Client) FetchAll(ctx context.Context) ([]domain.ProductRecord, error) {
	var all []domain.ProductRecord
	start := time.Now()

	for page := 1; ; page++ {
		if c.config.MaxPages > 0 && page > c.config.MaxPages {
			c.logger.Warn("Reached page limit, stopping pagination",
				zap.Int("max_pages", c.config.MaxPages),
				zap.Int("total", len(all)),
			)
			break
		}

		c.logger.Info("Fetching catalog page", zap.Int("page", page), zap.Int("size", c.config.PageSize))

		products, err := c.fetchPage(ctx, page)
		if err != nil {
			c.logger.Error("Failed to fetch catalog page",
				zap.Int("page", page),
				zap.Int("total", len(all)),
				zap.Error(err),
			)
			return all, err
		}

		if len(products) == 0 {
			c.logger.Info("Reached end of catalog", zap.Int("page", page))
			break
		}

		all = append(all, products...)
		c.logger.Info("Fetched catalog page",
			zap.Int("page", page),
			zap.Int("count", len(products)),
			zap.Int("total", len(all)),
		)

		if !c.config.Paginate {
			break
		}
	}

	c.logger.Info("Fetched catalog",
		zap.Int("total", len(all)),
		zap.Duration("duration", time.Since(start)),
	)
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]domain.ProductRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.PageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(page), nil)
	if err != nil {
		return nil, &FetchError{Page: page, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Page: page, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			Page:       page,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var listing listingResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPageBytes)).Decode(&listing); err != nil {
		return nil, &FetchError{Page: page, Err: fmt.Errorf("failed to decode listing: %w", err)}
	}

	return listing.Products, nil
}

func (c *Client) pageURL(page int) string {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(c.config.PageSize))
	return c.config.BaseURL + "/products.json?" + query.Encode()
}
