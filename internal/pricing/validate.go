package pricing

import (
	"strings"

	"pharmacy-store/internal/models"
)

// ValidatePromotion rejects promotions that could price a product below zero
// or outside a sensible window.
func ValidatePromotion(p models.Promotion) error {
	if strings.TrimSpace(p.Name) == "" {
		return models.NewValidationError("name", "is required")
	}

	switch p.DiscountType {
	case models.DiscountPercentage:
		if p.DiscountValue.IsNegative() || p.DiscountValue.GreaterThan(hundred) {
			return models.NewValidationError("discount_value", "percentage must be between 0 and 100")
		}
	case models.DiscountFixed:
		if p.DiscountValue.IsNegative() {
			return models.NewValidationError("discount_value", "fixed discount must not be negative")
		}
	default:
		return models.NewValidationError("discount_type", "must be percentage or fixed")
	}

	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return models.NewValidationError("start_date", "start and end dates are required")
	}
	if p.EndDate.Before(p.StartDate) {
		return models.NewValidationError("end_date", "must not be before start_date")
	}
	if len(p.ProductIDs) == 0 {
		return models.NewValidationError("product_ids", "at least one product is required")
	}
	return nil
}
