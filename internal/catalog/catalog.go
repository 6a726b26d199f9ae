// Package catalog filters the purchasable product list for display.
package catalog

import (
	"sort"
	"strings"
	"time"

	"pharmacy-store/internal/models"
	"pharmacy-store/internal/pricing"
)

// Query narrows the catalog. Zero values match everything.
type Query struct {
	Text     string
	Category string
}

// Matches reports whether p satisfies q.
func (q Query) Matches(p models.Product) bool {
	if q.Category != "" && (p.Category == nil || *p.Category != q.Category) {
		return false
	}

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	if strings.Contains(strings.ToLower(p.Name), needle) {
		return true
	}
	if p.Description != nil && strings.Contains(strings.ToLower(*p.Description), needle) {
		return true
	}
	return p.Barcode != nil && strings.Contains(*p.Barcode, text)
}

// Filter returns the products matching q, preserving input order.
func Filter(products []models.Product, q Query) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// Categories lists the distinct non-empty categories, sorted.
func Categories(products []models.Product) []string {
	seen := make(map[string]struct{})
	for _, p := range products {
		if p.Category != nil && *p.Category != "" {
			seen[*p.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Featured returns up to limit products that currently have a promotion.
func Featured(products []models.Product, promotions []models.Promotion, now time.Time, limit int) []models.Product {
	if limit <= 0 {
		return nil
	}
	out := make([]models.Product, 0, limit)
	for _, p := range products {
		if len(out) >= limit {
			break
		}
		if pricing.ApplicablePromotion(p, promotions, now) != nil {
			out = append(out, p)
		}
	}
	return out
}
