// Package cart holds the in-progress selection of a single storefront session.
package cart

import (
	"errors"
	"time"

	"pharmacy-store/internal/models"
	"pharmacy-store/internal/pricing"

	"github.com/google/uuid"
)

var (
	// ErrStockLimit is returned when a change would exceed the product's stock.
	// The cart is left unchanged.
	ErrStockLimit   = errors.New("quantity would exceed available stock")
	ErrItemNotFound = errors.New("product is not in the cart")
)

// Item is a product snapshot and its quantity. 1 <= Quantity <= Product.Stock.
type Item struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

// Cart is owned by one session and mutated sequentially; it is not safe for
// concurrent use.
type Cart struct {
	ID        uuid.UUID `json:"id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty cart with a fresh identity.
func New() *Cart {
	return &Cart{ID: uuid.New(), Items: []Item{}, UpdatedAt: time.Now().UTC()}
}

func (c *Cart) index(productID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// AddItem puts one unit of product in the cart. Stock is the value carried by
// the product snapshot passed in.
func (c *Cart) AddItem(product models.Product) error {
	if i := c.index(product.ID); i >= 0 {
		if c.Items[i].Quantity >= product.Stock {
			return ErrStockLimit
		}
		c.Items[i].Product = product
		c.Items[i].Quantity++
		c.touch()
		return nil
	}

	if !product.Purchasable() {
		return ErrStockLimit
	}
	c.Items = append(c.Items, Item{Product: product, Quantity: 1})
	c.touch()
	return nil
}

// UpdateQuantity moves an item's quantity by delta. Reaching zero or less removes it.
func (c *Cart) UpdateQuantity(productID uuid.UUID, delta int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}

	next := c.Items[i].Quantity + delta
	switch {
	case next <= 0:
		c.removeAt(i)
	case next > c.Items[i].Product.Stock:
		return ErrStockLimit
	default:
		c.Items[i].Quantity = next
	}
	c.touch()
	return nil
}

// RemoveItem drops the product from the cart whether or not it was there.
func (c *Cart) RemoveItem(productID uuid.UUID) {
	if i := c.index(productID); i >= 0 {
		c.removeAt(i)
		c.touch()
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []Item{}
	c.touch()
}

// ItemCount is the sum of all quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// Lines converts the cart into priceable checkout lines.
func (c *Cart) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, pricing.Line{Product: item.Product, Quantity: item.Quantity})
	}
	return lines
}

// ProductIDs lists the products in the cart.
func (c *Cart) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.Product.ID)
	}
	return ids
}

// Refresh replaces product snapshots with current catalog data. Lines whose
// product disappeared or sold out are dropped and quantities are trimmed to
// the current stock. It reports whether anything had to be adjusted.
func (c *Cart) Refresh(current map[uuid.UUID]models.Product) bool {
	adjusted := false
	kept := c.Items[:0]
	for _, item := range c.Items {
		p, ok := current[item.Product.ID]
		if !ok || !p.Purchasable() {
			adjusted = true
			continue
		}
		if item.Quantity > p.Stock {
			item.Quantity = p.Stock
			adjusted = true
		}
		item.Product = p
		kept = append(kept, item)
	}
	c.Items = kept
	if adjusted {
		c.touch()
	}
	return adjusted
}

func (c *Cart) removeAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
