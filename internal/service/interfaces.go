package service

import (
	"context"
	"time"

	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/models"
	"pharmacy-store/internal/notify"

	"github.com/google/uuid"
)

// CatalogStore is the durable product and promotion storage
type CatalogStore interface {
	ListPurchasableProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	UpsertProduct(ctx context.Context, p *models.Product) error
	SetProductStock(ctx context.Context, id uuid.UUID, stock int) error
	PromotionsBetween(ctx context.Context, from, until time.Time) ([]models.Promotion, error)
	CreatePromotion(ctx context.Context, p *models.Promotion) error
}

// OrderStore is the durable order storage. PlaceOrder must write the order,
// its items and the conditional stock decrements atomically.
type OrderStore interface {
	PlaceOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	FindOpenOrderByPickupCode(ctx context.Context, code string) (*models.Order, error)
	ListOrders(ctx context.Context, limit int) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error)
}

// CartSessions persists carts between requests
type CartSessions interface {
	SaveCart(ctx context.Context, c *cart.Cart) error
	LoadCart(ctx context.Context, id uuid.UUID) (*cart.Cart, error)
	DeleteCart(ctx context.Context, id uuid.UUID) error
}

// PromotionCache keeps the active promotion set close to the catalog reads
type PromotionCache interface {
	CachePromotions(ctx context.Context, promotions []models.Promotion, ttl time.Duration) error
	CachedPromotions(ctx context.Context) ([]models.Promotion, bool, error)
	InvalidatePromotions(ctx context.Context) error
}

// Locker guards a checkout against being submitted twice at once
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher broadcasts order changes to other replicas
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// Notifier is the in-process change feed
type Notifier interface {
	Publish(n notify.Notification)
	Subscribe(ctx context.Context) <-chan notify.Notification
}
