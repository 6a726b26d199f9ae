package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"pharmacy-store/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_DATABASE_URL and applies the schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL to run")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedProduct(t *testing.T, s *Store, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:  "Loratadina 10mg " + uuid.NewString()[:8],
		Price: decimal.RequireFromString("7.50"),
		Stock: stock,
	}
	require.NoError(t, s.UpsertProduct(context.Background(), p))
	return p
}

func newOrder(p *models.Product, qty int) *models.Order {
	code := "T" + uuid.NewString()[:5]
	subtotal := p.Price.Mul(decimal.NewFromInt(int64(qty)))
	return &models.Order{
		OrderNumber:   "ORD-TEST-" + uuid.NewString(),
		PickupCode:    sanitizeCode(code),
		CustomerName:  "Integration",
		CustomerPhone: "5550000",
		Subtotal:      subtotal,
		Discount:      decimal.Zero,
		Total:         subtotal,
		Status:        models.OrderStatusPending,
		Items: []models.OrderItem{{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    qty,
			UnitPrice:   p.Price,
			Discount:    decimal.Zero,
			Subtotal:    subtotal,
		}},
	}
}

// sanitizeCode maps arbitrary hex into the pickup alphabet.
func sanitizeCode(s string) string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	out := make([]byte, 6)
	for i := 0; i < 6; i++ {
		out[i] = alphabet[int(s[i%len(s)])%len(alphabet)]
	}
	return string(out)
}

func TestPlaceOrderDecrementsStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := seedProduct(t, s, 5)
	order := newOrder(p, 2)
	require.NoError(t, s.PlaceOrder(ctx, order))
	assert.False(t, order.CreatedAt.IsZero())

	after, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Stock)

	stored, err := s.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, p.Name, stored.Items[0].ProductName)
	assert.True(t, stored.Total.Equal(order.Total))
}

func TestPlaceOrderRollsBackOnInsufficientStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := seedProduct(t, s, 1)
	order := newOrder(p, 2)

	err := s.PlaceOrder(ctx, order)
	require.ErrorIs(t, err, models.ErrInsufficientStock)

	_, err = s.GetOrderByID(ctx, order.ID)
	assert.ErrorIs(t, err, models.ErrOrderNotFound, "order must not survive a failed decrement")

	after, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Stock)
}

func TestConcurrentOrdersDoNotOversell(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.PlaceOrder(ctx, newOrder(p, 1))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestDuplicateOpenPickupCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 10)

	first := newOrder(p, 1)
	require.NoError(t, s.PlaceOrder(ctx, first))

	second := newOrder(p, 1)
	second.PickupCode = first.PickupCode
	assert.ErrorIs(t, s.PlaceOrder(ctx, second), models.ErrDuplicateCode)

	_, err := s.UpdateOrderStatus(ctx, first.ID, models.OrderStatusPending, models.OrderStatusCancelled)
	require.NoError(t, err)

	third := newOrder(p, 1)
	third.PickupCode = first.PickupCode
	assert.NoError(t, s.PlaceOrder(ctx, third), "codes of closed orders may be reused")
}

func TestUpdateOrderStatusIsConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 10)

	order := newOrder(p, 1)
	require.NoError(t, s.PlaceOrder(ctx, order))

	time.Sleep(5 * time.Millisecond)
	updated, err := s.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, updated.Status)
	assert.True(t, updated.UpdatedAt.After(order.UpdatedAt) || updated.UpdatedAt.Equal(order.UpdatedAt))

	_, err = s.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, models.ErrConcurrentUpdate)

	_, err = s.UpdateOrderStatus(ctx, uuid.New(), models.OrderStatusPending, models.OrderStatusPreparing)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)

	found, err := s.FindOpenOrderByPickupCode(ctx, order.PickupCode)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
}

func TestPromotionsBetweenIncludesUpcomingWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 3)
	now := time.Now().UTC().Truncate(time.Second)

	promo := func(name string, start, end time.Time) *models.Promotion {
		pr := &models.Promotion{
			Name:          name + " " + uuid.NewString()[:8],
			DiscountType:  models.DiscountFixed,
			DiscountValue: decimal.NewFromInt(1),
			StartDate:     start,
			EndDate:       end,
			IsActive:      true,
			ProductIDs:    []uuid.UUID{p.ID},
		}
		require.NoError(t, s.CreatePromotion(ctx, pr))
		return pr
	}
	current := promo("current", now.Add(-time.Hour), now.Add(time.Hour))
	upcoming := promo("upcoming", now.Add(10*time.Second), now.Add(time.Hour))
	later := promo("later", now.Add(time.Hour), now.Add(2*time.Hour))
	ended := promo("ended", now.Add(-2*time.Hour), now.Add(-time.Hour))

	got, err := s.PromotionsBetween(ctx, now, now.Add(30*time.Second))
	require.NoError(t, err)

	ids := map[uuid.UUID]bool{}
	for _, pr := range got {
		ids[pr.ID] = true
	}
	assert.True(t, ids[current.ID])
	assert.True(t, ids[upcoming.ID])
	assert.False(t, ids[later.ID])
	assert.False(t, ids[ended.ID])
	for _, pr := range got {
		if pr.ID == upcoming.ID {
			assert.Equal(t, []uuid.UUID{p.ID}, pr.ProductIDs)
		}
	}
}
