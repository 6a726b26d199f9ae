package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	Barcode     *string         `db:"barcode" json:"barcode"`
	Category    *string         `db:"category" json:"category"`
	Section     *string         `db:"section" json:"section"`
	ImageURL    *string         `db:"image_url" json:"image_url"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Purchasable reports whether the product can be put in a cart.
func (p Product) Purchasable() bool {
	return p.Stock > 0
}

// DiscountType selects how a promotion's value is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Promotion is a time-bounded discount scoped to a set of products
type Promotion struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   *string         `db:"description" json:"description"`
	DiscountType  DiscountType    `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal `db:"discount_value" json:"discount_value"`
	StartDate     time.Time       `db:"start_date" json:"start_date"`
	EndDate       time.Time       `db:"end_date" json:"end_date"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	ProductIDs    []uuid.UUID     `db:"-" json:"product_ids"`
}

// Covers reports whether productID belongs to the promotion's product set.
func (p Promotion) Covers(productID uuid.UUID) bool {
	for _, id := range p.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the promotion is switched on and now falls inside its window.
func (p Promotion) ActiveAt(now time.Time) bool {
	return p.IsActive && !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every status in workflow order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Open reports whether an order in this status is still waiting to be picked up.
func (s OrderStatus) Open() bool {
	return s == OrderStatusPending || s == OrderStatusPreparing || s == OrderStatusReady
}

// Order represents a customer pickup order
type Order struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrderNumber    string          `db:"order_number" json:"order_number"`
	PickupCode     string          `db:"pickup_code" json:"pickup_code"`
	CustomerName   string          `db:"customer_name" json:"customer_name"`
	CustomerPhone  string          `db:"customer_phone" json:"customer_phone"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount       decimal.Decimal `db:"discount" json:"discount"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Status         OrderStatus     `db:"status" json:"status"`
	Notes          *string         `db:"notes" json:"notes"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	Items          []OrderItem     `db:"-" json:"items,omitempty"`
}

// OrderItem is an immutable line of an order. Name, price and discount are
// snapshots taken when the order was placed.
type OrderItem struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	OrderID     uuid.UUID       `db:"order_id" json:"order_id"`
	ProductID   uuid.UUID       `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Discount    decimal.Decimal `db:"discount" json:"discount"`
	Subtotal    decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// Customer is the contact information captured at checkout
type Customer struct {
	Name  string `json:"customer_name"`
	Phone string `json:"customer_phone"`
	Notes string `json:"notes,omitempty"`
}

// Receipt is what the storefront shows after a successful checkout
type Receipt struct {
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	PickupCode    string          `json:"pickup_code"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
}

// ReceiptFor builds the receipt view of a placed order.
func ReceiptFor(o *Order) *Receipt {
	return &Receipt{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		PickupCode:    o.PickupCode,
		Total:         o.Total,
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
	}
}
