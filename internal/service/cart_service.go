package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/models"
	"pharmacy-store/internal/pricing"
	"pharmacy-store/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService manages storefront cart sessions
type CartService struct {
	sessions CartSessions
	catalog  *CatalogService
	now      func() time.Time
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(sessions CartSessions, catalog *CatalogService) *CartService {
	return &CartService{
		sessions: sessions,
		catalog:  catalog,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// CartLine is one priced cart line
type CartLine struct {
	Product        models.Product  `json:"product"`
	Quantity       int             `json:"quantity"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Promotion      *PromotionBadge `json:"promotion,omitempty"`
}

// CartView is the priced state of a cart
type CartView struct {
	ID        uuid.UUID  `json:"id"`
	Items     []CartLine `json:"items"`
	ItemCount int        `json:"item_count"`
	pricing.Quote
	// Adjusted is set when items were trimmed to match the current catalog.
	Adjusted bool `json:"adjusted,omitempty"`
}

func (s *CartService) view(ctx context.Context, c *cart.Cart) (*CartView, error) {
	promotions, err := s.catalog.ActivePromotions(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	v := &CartView{
		ID:        c.ID,
		Items:     make([]CartLine, 0, len(c.Items)),
		ItemCount: c.ItemCount(),
		Quote:     pricing.QuoteLines(c.Lines(), promotions, now),
	}
	for _, item := range c.Items {
		v.Items = append(v.Items, CartLine{
			Product:        item.Product,
			Quantity:       item.Quantity,
			EffectivePrice: pricing.EffectivePrice(item.Product, promotions, now),
			Subtotal:       pricing.LineSubtotal(item.Product, item.Quantity, promotions, now),
			Promotion:      badgeFor(pricing.ApplicablePromotion(item.Product, promotions, now)),
		})
	}
	return v, nil
}

// Create opens an empty cart session
func (s *CartService) Create(ctx context.Context) (*CartView, error) {
	c := cart.New()
	if err := s.sessions.SaveCart(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return s.view(ctx, c)
}

// Get loads a cart and reconciles it with the current catalog
func (s *CartService) Get(ctx context.Context, id uuid.UUID) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Get")
	defer span.End()

	c, err := s.sessions.LoadCart(ctx, id)
	if err != nil {
		return nil, err
	}

	current, err := s.catalog.Products(ctx, c.ProductIDs())
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	adjusted := c.Refresh(current)
	if adjusted {
		s.logger.Info("Cart adjusted to current stock", zap.String("cart_id", id.String()))
		if err := s.sessions.SaveCart(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to save cart: %w", err)
		}
	}

	v, err := s.view(ctx, c)
	if err != nil {
		return nil, err
	}
	v.Adjusted = adjusted
	return v, nil
}

// AddItem adds one unit of a product. On cart.ErrStockLimit the unchanged
// cart is returned along with the error.
func (s *CartService) AddItem(ctx context.Context, id, productID uuid.UUID) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	c, err := s.sessions.LoadCart(ctx, id)
	if err != nil {
		return nil, err
	}
	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, c, "add", func() error {
		return c.AddItem(*product)
	})
}

// UpdateQuantity changes a line's quantity by delta
func (s *CartService) UpdateQuantity(ctx context.Context, id, productID uuid.UUID, delta int) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if delta == 0 {
		return nil, models.NewValidationError("delta", "must not be zero")
	}
	c, err := s.sessions.LoadCart(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, c, "update", func() error {
		return c.UpdateQuantity(productID, delta)
	})
}

// RemoveItem drops a product from the cart
func (s *CartService) RemoveItem(ctx context.Context, id, productID uuid.UUID) (*CartView, error) {
	c, err := s.sessions.LoadCart(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, c, "remove", func() error {
		c.RemoveItem(productID)
		return nil
	})
}

func (s *CartService) mutate(ctx context.Context, c *cart.Cart, op string, fn func() error) (*CartView, error) {
	if err := fn(); err != nil {
		outcome := "error"
		if errors.Is(err, cart.ErrStockLimit) {
			outcome = "stock_limit"
		}
		util.CartMutationsTotal.WithLabelValues(op, outcome).Inc()

		if errors.Is(err, cart.ErrStockLimit) {
			v, viewErr := s.view(ctx, c)
			if viewErr != nil {
				return nil, viewErr
			}
			return v, err
		}
		return nil, err
	}

	if err := s.sessions.SaveCart(ctx, c); err != nil {
		util.CartMutationsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	util.CartMutationsTotal.WithLabelValues(op, "ok").Inc()
	return s.view(ctx, c)
}
