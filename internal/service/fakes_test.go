package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"pharmacy-store/internal/cart"
	"pharmacy-store/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore mimics the Postgres store: PlaceOrder is all-or-nothing, stock
// decrements are conditional and open pickup codes are unique.
type memStore struct {
	mu         sync.Mutex
	products   map[uuid.UUID]models.Product
	promotions []models.Promotion
	orders     map[uuid.UUID]*models.Order

	promotionReads int
	// beforeUpdate runs inside UpdateOrderStatus before the status check.
	beforeUpdate func(o *models.Order)
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[uuid.UUID]models.Product),
		orders:   make(map[uuid.UUID]*models.Order),
	}
}

func (m *memStore) addProduct(name, price string, stock int) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := models.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	m.products[p.ID] = p
	return p
}

func (m *memStore) stockOf(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) ListPurchasableProducts(_ context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, p := range m.products {
		if p.Stock > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) GetProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	return &p, nil
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpsertProduct(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) SetProductStock(_ context.Context, id uuid.UUID, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	p.Stock = stock
	m.products[id] = p
	return nil
}

func (m *memStore) PromotionsBetween(_ context.Context, from, until time.Time) ([]models.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotionReads++
	var out []models.Promotion
	for _, p := range m.promotions {
		if p.IsActive && !p.EndDate.Before(from) && !p.StartDate.After(until) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) CreatePromotion(_ context.Context, p *models.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.promotions = append(m.promotions, *p)
	return nil
}

func (m *memStore) PlaceOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if order.IdempotencyKey != nil && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
			return models.ErrDuplicateRequest
		}
		if o.OrderNumber == order.OrderNumber || (o.Status.Open() && o.PickupCode == order.PickupCode) {
			return models.ErrDuplicateCode
		}
	}
	for _, item := range order.Items {
		if m.products[item.ProductID].Stock < item.Quantity {
			return &models.StockError{ProductID: item.ProductID.String(), ProductName: item.ProductName, Requested: item.Quantity}
		}
	}
	for _, item := range order.Items {
		p := m.products[item.ProductID]
		p.Stock -= item.Quantity
		m.products[item.ProductID] = p
	}

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
		order.UpdatedAt = order.CreatedAt
	}
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *memStore) GetOrderByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	return copyOrder(o), nil
}

func (m *memStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return copyOrder(o), nil
		}
	}
	return nil, nil
}

func (m *memStore) FindOpenOrderByPickupCode(_ context.Context, code string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Status.Open() && o.PickupCode == code {
			return copyOrder(o), nil
		}
	}
	return nil, fmt.Errorf("%w: pickup code %s", models.ErrOrderNotFound, code)
}

func (m *memStore) ListOrders(_ context.Context, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].OrderNumber > out[j].OrderNumber
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(o)
	}
	if o.Status != from {
		return nil, models.ErrConcurrentUpdate
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	out := copyOrder(o)
	out.Items = nil
	return out, nil
}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	return &c
}

// memSessions round-trips carts through JSON the way the Redis client does.
type memSessions struct {
	mu    sync.Mutex
	carts map[uuid.UUID][]byte
}

func newMemSessions() *memSessions {
	return &memSessions{carts: make(map[uuid.UUID][]byte)}
}

func (m *memSessions) SaveCart(_ context.Context, c *cart.Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.ID] = payload
	return nil
}

func (m *memSessions) LoadCart(_ context.Context, id uuid.UUID) (*cart.Cart, error) {
	m.mu.Lock()
	payload, ok := m.carts[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrCartNotFound, id)
	}
	var c cart.Cart
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *memSessions) DeleteCart(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, id)
	return nil
}

type memCache struct {
	mu          sync.Mutex
	promotions  []models.Promotion
	cached      bool
	readErr     error
	invalidated int
}

func (m *memCache) CachePromotions(_ context.Context, promotions []models.Promotion, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotions = promotions
	m.cached = true
	return nil
}

func (m *memCache) CachedPromotions(_ context.Context) ([]models.Promotion, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	return m.promotions, m.cached, nil
}

func (m *memCache) InvalidatePromotions(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotions = nil
	m.cached = false
	m.invalidated++
	return nil
}

type memLocker struct {
	mu    sync.Mutex
	locks map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]string)}
}

func (m *memLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[key]; held {
		return "", false, nil
	}
	token := uuid.New().String()
	m.locks[key] = token
	return token, true, nil
}

func (m *memLocker) ReleaseLock(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] == token {
		delete(m.locks, key)
	}
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	placed  []*models.OrderPlacedEvent
	changed []*models.OrderStatusChangedEvent
}

func (r *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, e)
	return nil
}

func (r *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, e)
	return nil
}
