// Package pricing computes effective product prices under promotions and
// the totals of a set of cart lines.
package pricing

import (
	"sort"
	"strings"
	"time"

	"pharmacy-store/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is one product and the quantity being bought.
type Line struct {
	Product  models.Product
	Quantity int
}

// Quote is the priced view of a set of lines.
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// ApplicablePromotion returns the promotion that prices product at now, or nil.
// When several apply the one granting the largest discount wins, then the
// earliest start date, then the lowest ID.
func ApplicablePromotion(product models.Product, promotions []models.Promotion, now time.Time) *models.Promotion {
	var candidates []models.Promotion
	for _, promo := range promotions {
		if promo.ActiveAt(now) && promo.Covers(product.ID) {
			candidates = append(candidates, promo)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		di := product.Price.Sub(discounted(product.Price, candidates[i]))
		dj := product.Price.Sub(discounted(product.Price, candidates[j]))
		if !di.Equal(dj) {
			return di.GreaterThan(dj)
		}
		if !candidates[i].StartDate.Equal(candidates[j].StartDate) {
			return candidates[i].StartDate.Before(candidates[j].StartDate)
		}
		return strings.Compare(candidates[i].ID.String(), candidates[j].ID.String()) < 0
	})

	best := candidates[0]
	return &best
}

// EffectivePrice is the per-unit price of product after the applicable promotion.
func EffectivePrice(product models.Product, promotions []models.Promotion, now time.Time) decimal.Decimal {
	promo := ApplicablePromotion(product, promotions, now)
	if promo == nil {
		return product.Price
	}
	return discounted(product.Price, *promo)
}

// UnitDiscount is the per-unit amount taken off the list price.
func UnitDiscount(product models.Product, promotions []models.Promotion, now time.Time) decimal.Decimal {
	return product.Price.Sub(EffectivePrice(product, promotions, now))
}

// LineSubtotal is EffectivePrice * quantity.
func LineSubtotal(product models.Product, quantity int, promotions []models.Promotion, now time.Time) decimal.Decimal {
	return EffectivePrice(product, promotions, now).Mul(decimal.NewFromInt(int64(quantity)))
}

// CartTotal sums LineSubtotal over lines.
func CartTotal(lines []Line, promotions []models.Promotion, now time.Time) decimal.Decimal {
	return QuoteLines(lines, promotions, now).Total
}

// QuoteLines prices every line and returns the list subtotal, the promotional
// discount and the payable total.
func QuoteLines(lines []Line, promotions []models.Promotion, now time.Time) Quote {
	q := Quote{Subtotal: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero}
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		effective := EffectivePrice(line.Product, promotions, now)
		q.Subtotal = q.Subtotal.Add(line.Product.Price.Mul(qty))
		q.Total = q.Total.Add(effective.Mul(qty))
	}
	q.Discount = q.Subtotal.Sub(q.Total)
	return q
}

// discounted applies promo to price. The result is rounded to cents and kept
// within [0, price] whatever the configured value.
func discounted(price decimal.Decimal, promo models.Promotion) decimal.Decimal {
	var out decimal.Decimal
	switch promo.DiscountType {
	case models.DiscountPercentage:
		out = price.Mul(hundred.Sub(promo.DiscountValue)).Div(hundred)
	case models.DiscountFixed:
		out = price.Sub(promo.DiscountValue)
	default:
		return price
	}

	if out.IsNegative() {
		out = decimal.Zero
	}
	if out.GreaterThan(price) {
		out = price
	}
	return out.Round(2)
}
