// Package sku derives product SKUs from storefront records.
package sku

import (
	"regexp"
	"strings"
)

var (
	// A SKU rendered as the only text of an element, e.g. <p>FZ8117-100</p>
	taggedToken = regexp.MustCompile(`>([A-Z0-9-]+)<`)
	markup      = regexp.MustCompile(`<[^>]+>`)
)

// Extract pulls a SKU out of a product description. It prefers a token
// wrapped in markup and falls back to the tag-stripped text.
func Extract(html string) (string, bool) {
	if strings.TrimSpace(html) == "" {
		return "", false
	}

	if match := taggedToken.FindStringSubmatch(html); match != nil {
		return strings.TrimSpace(match[1]), true
	}

	text := strings.TrimSpace(markup.ReplaceAllString(html, ""))
	if text == "" {
		return "", false
	}
	return text, true
}

// Normalize returns the form SKUs are indexed and matched under
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
