package workflow

import (
	"strings"

	"pharmacy-store/internal/models"
	"pharmacy-store/internal/ordercode"
)

// TabAll disables the status filter.
const TabAll = "all"

// FilterOrders keeps orders matching text and tab. Text is matched
// case-insensitively against order number, pickup code and customer name, and
// as a plain substring of the phone. Tab is a status or TabAll.
func FilterOrders(orders []models.Order, text, tab string) []models.Order {
	needle := strings.ToLower(strings.TrimSpace(text))
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if tab != "" && tab != TabAll && string(o.Status) != tab {
			continue
		}
		if needle != "" && !matchesText(o, needle, strings.TrimSpace(text)) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func matchesText(o models.Order, lower, raw string) bool {
	return strings.Contains(strings.ToLower(o.OrderNumber), lower) ||
		strings.Contains(strings.ToLower(o.PickupCode), lower) ||
		strings.Contains(strings.ToLower(o.CustomerName), lower) ||
		strings.Contains(o.CustomerPhone, raw)
}

// CountByStatus tallies orders per status; every status is present in the result.
func CountByStatus(orders []models.Order) map[models.OrderStatus]int {
	counts := make(map[models.OrderStatus]int, len(models.OrderStatuses))
	for _, s := range models.OrderStatuses {
		counts[s] = 0
	}
	for _, o := range orders {
		counts[o.Status]++
	}
	return counts
}

// FindByPickupCode returns the open order whose pickup code equals code,
// ignoring case and surrounding spaces.
func FindByPickupCode(orders []models.Order, code string) (*models.Order, bool) {
	want := ordercode.NormalizePickupCode(code)
	if want == "" {
		return nil, false
	}
	for i := range orders {
		if orders[i].Status.Open() && strings.EqualFold(orders[i].PickupCode, want) {
			return &orders[i], true
		}
	}
	return nil, false
}
