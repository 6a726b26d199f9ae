package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmacy-store/internal/models"
	"pharmacy-store/internal/ordercode"
	"pharmacy-store/internal/pricing"
	"pharmacy-store/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService turns carts into pickup orders
type OrderService struct {
	orders       OrderStore
	sessions     CartSessions
	catalog      *CatalogService
	locker       Locker
	publisher    EventPublisher
	notifier     Notifier
	numbers      *ordercode.Generator
	pickupCode   func() (string, error)
	codeAttempts int
	lockTTL      time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// OrderServiceConfig holds the checkout tunables
type OrderServiceConfig struct {
	CodeAttempts int
	LockTTL      time.Duration
}

// NewOrderService creates a new order service. publisher and notifier may be nil.
func NewOrderService(
	orders OrderStore,
	sessions CartSessions,
	catalog *CatalogService,
	locker Locker,
	publisher EventPublisher,
	notifier Notifier,
	cfg OrderServiceConfig,
) *OrderService {
	if cfg.CodeAttempts < 1 {
		cfg.CodeAttempts = 1
	}
	return &OrderService{
		orders:       orders,
		sessions:     sessions,
		catalog:      catalog,
		locker:       locker,
		publisher:    publisher,
		notifier:     notifier,
		numbers:      ordercode.NewGenerator(),
		pickupCode:   ordercode.PickupCode,
		codeAttempts: cfg.CodeAttempts,
		lockTTL:      cfg.LockTTL,
		now:          time.Now,
		logger:       util.GetLogger(),
	}
}

// PlaceOrder checks out a cart. The order, its items and every stock
// decrement are committed together or not at all. Repeating a request with
// the same idempotency key returns the receipt of the first order.
func (s *OrderService) PlaceOrder(ctx context.Context, cartID uuid.UUID, customer models.Customer, idempotencyKey string) (*models.Receipt, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	customer, err := normalizeCustomer(customer)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_customer").Inc()
		return nil, err
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, util.RecordError(span, fmt.Errorf("failed to check idempotency: %w", err))
		}
		if existing != nil {
			s.logger.Info("Duplicate checkout request detected",
				zap.String("idempotency_key", idempotencyKey),
				zap.String("order_id", existing.ID.String()))
			return models.ReceiptFor(existing), nil
		}
	}

	lockKey := fmt.Sprintf("checkout:%s", cartID)
	token, acquired, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to acquire checkout lock: %w", err))
	}
	if !acquired {
		util.OrdersFailedTotal.WithLabelValues("checkout_in_progress").Inc()
		return nil, models.ErrCheckoutInProgress
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.String("cart_id", cartID.String()), zap.Error(err))
		}
	}()

	c, err := s.sessions.LoadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, models.NewValidationError("items", "cart is empty")
	}

	lines, err := s.currentLines(ctx, c.Lines())
	if err != nil {
		if errors.Is(err, models.ErrInsufficientStock) {
			util.StockConflictsTotal.Inc()
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		}
		return nil, err
	}

	promotions, err := s.catalog.ActivePromotions(ctx)
	if err != nil {
		return nil, err
	}

	order := BuildOrder(lines, promotions, customer, s.now())
	if idempotencyKey != "" {
		order.IdempotencyKey = &idempotencyKey
	}

	if err := s.persist(ctx, order); err != nil {
		if errors.Is(err, models.ErrDuplicateRequest) {
			existing, getErr := s.orders.GetOrderByIdempotencyKey(ctx, idempotencyKey)
			if getErr == nil && existing != nil {
				return models.ReceiptFor(existing), nil
			}
		}
		return nil, util.RecordError(span, err)
	}

	util.OrdersPlacedTotal.Inc()
	revenue, _ := order.Total.Float64()
	util.OrderRevenueTotal.Add(revenue)
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)))

	if err := s.sessions.DeleteCart(ctx, cartID); err != nil {
		s.logger.Warn("Failed to clear cart after checkout", zap.String("cart_id", cartID.String()), zap.Error(err))
	}
	s.announce(ctx, order)

	return models.ReceiptFor(order), nil
}

// persist writes order, drawing a fresh pickup code and order number each
// time the previous pair collided with an existing order.
func (s *OrderService) persist(ctx context.Context, order *models.Order) error {
	for attempt := 1; ; attempt++ {
		code, err := s.pickupCode()
		if err != nil {
			return fmt.Errorf("failed to generate pickup code: %w", err)
		}
		order.PickupCode = code
		order.OrderNumber = s.numbers.OrderNumber()

		err = s.orders.PlaceOrder(ctx, order)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, models.ErrDuplicateCode) && attempt < s.codeAttempts:
			util.PickupCodeCollisionsTotal.Inc()
			s.logger.Warn("Order reference collision, retrying",
				zap.String("pickup_code", code),
				zap.Int("attempt", attempt))
		case errors.Is(err, models.ErrInsufficientStock):
			util.StockConflictsTotal.Inc()
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return err
		case errors.Is(err, models.ErrDuplicateRequest):
			return err
		default:
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
			return fmt.Errorf("failed to place order: %w", err)
		}
	}
}

// currentLines swaps the cart's product snapshots for current catalog rows so
// names and prices are taken at the moment of ordering.
func (s *OrderService) currentLines(ctx context.Context, lines []pricing.Line) ([]pricing.Line, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.Product.ID)
	}
	current, err := s.catalog.Products(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		p, ok := current[l.Product.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, l.Product.Name)
		}
		if p.Stock < l.Quantity {
			return nil, &models.StockError{ProductID: p.ID.String(), ProductName: p.Name, Requested: l.Quantity}
		}
		out = append(out, pricing.Line{Product: p, Quantity: l.Quantity})
	}
	return out, nil
}

func (s *OrderService) announce(ctx context.Context, order *models.Order) {
	if s.notifier != nil {
		s.notifier.Publish(notificationFor(order.ID, models.EventTypeOrderPlaced, order.CreatedAt))
	}
	if s.publisher == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	event := &models.OrderPlacedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeOrderPlaced, s.now()),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		PickupCode:  order.PickupCode,
		Total:       order.Total,
		Items:       items,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

// GetReceipt returns the receipt of a placed order
func (s *OrderService) GetReceipt(ctx context.Context, orderID uuid.UUID) (*models.Receipt, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return models.ReceiptFor(order), nil
}

// BuildOrder prices lines at now and assembles a pending order with
// snapshotted item names, unit prices and per-unit discounts. Pickup code
// and order number are left for the caller to assign.
func BuildOrder(lines []pricing.Line, promotions []models.Promotion, customer models.Customer, now time.Time) *models.Order {
	quote := pricing.QuoteLines(lines, promotions, now)

	order := &models.Order{
		ID:            uuid.New(),
		CustomerName:  customer.Name,
		CustomerPhone: customer.Phone,
		Subtotal:      quote.Subtotal,
		Discount:      quote.Discount,
		Total:         quote.Total,
		Status:        models.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         make([]models.OrderItem, 0, len(lines)),
	}
	if customer.Notes != "" {
		notes := customer.Notes
		order.Notes = &notes
	}

	for _, l := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.Product.Price,
			Discount:    pricing.UnitDiscount(l.Product, promotions, now),
			Subtotal:    pricing.LineSubtotal(l.Product, l.Quantity, promotions, now),
		})
	}
	return order
}

func normalizeCustomer(c models.Customer) (models.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Notes = strings.TrimSpace(c.Notes)

	if c.Name == "" {
		return c, models.NewValidationError("customer_name", "is required")
	}
	if c.Phone == "" {
		return c, models.NewValidationError("customer_phone", "is required")
	}
	return c, nil
}

