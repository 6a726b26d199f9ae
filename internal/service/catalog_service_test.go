package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pharmacy-store/internal/catalog"
	"pharmacy-store/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func promoFor(ids ...uuid.UUID) models.Promotion {
	return models.Promotion{
		Name:          "Winter sale",
		DiscountType:  models.DiscountFixed,
		DiscountValue: decimal.NewFromInt(1),
		StartDate:     time.Now().Add(-time.Hour),
		EndDate:       time.Now().Add(24 * time.Hour),
		IsActive:      true,
		ProductIDs:    ids,
	}
}

func TestListProductsFiltersAndPrices(t *testing.T) {
	store := newMemStore()
	svc := NewCatalogService(store, nil, time.Minute, 6)
	ctx := context.Background()

	p := store.addProduct("Vitamin D", "6.00", 3)
	p.Category = strPtr("Vitamins")
	require.NoError(t, store.UpsertProduct(ctx, &p))
	store.addProduct("Shampoo", "4.00", 2)
	store.addProduct("Sold out", "1.00", 0)
	require.NoError(t, svc.CreatePromotion(ctx, &models.Promotion{
		Name:          "D days",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(50),
		StartDate:     time.Now().Add(-time.Hour),
		EndDate:       time.Now().Add(time.Hour),
		IsActive:      true,
		ProductIDs:    []uuid.UUID{p.ID},
	}))

	all, err := svc.ListProducts(ctx, catalog.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "sold-out products are not listed")

	views, err := svc.ListProducts(ctx, catalog.Query{Text: "vitamin"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, decimal.RequireFromString("3.00").Equal(views[0].EffectivePrice))
	require.NotNil(t, views[0].Promotion)
	assert.Equal(t, "D days", views[0].Promotion.Name)

	featured, err := svc.Featured(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, p.ID, featured[0].ID)

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vitamins"}, categories)
}

func TestActivePromotionsUsesCache(t *testing.T) {
	store := newMemStore()
	cache := &memCache{}
	svc := NewCatalogService(store, cache, time.Minute, 6)
	ctx := context.Background()
	p := store.addProduct("Gel", "9.00", 1)
	store.promotions = []models.Promotion{promoFor(p.ID)}

	_, err := svc.ActivePromotions(ctx)
	require.NoError(t, err)
	promos, err := svc.ActivePromotions(ctx)
	require.NoError(t, err)

	assert.Len(t, promos, 1)
	assert.Equal(t, 1, store.promotionReads)
}

func TestCachedPromotionsPickUpWindowOpeningWhileCached(t *testing.T) {
	store := newMemStore()
	svc := NewCatalogService(store, &memCache{}, 30*time.Second, 6)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	p := store.addProduct("Ibuprofeno 400mg", "10.00", 4)
	store.promotions = []models.Promotion{{
		ID:            uuid.New(),
		Name:          "Flash",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartDate:     base.Add(10 * time.Second),
		EndDate:       base.Add(time.Hour),
		IsActive:      true,
		ProductIDs:    []uuid.UUID{p.ID},
	}}

	svc.now = func() time.Time { return base }
	views, err := svc.ListProducts(ctx, catalog.Query{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "10.00", views[0].EffectivePrice.StringFixed(2), "not started yet")
	assert.Nil(t, views[0].Promotion)

	svc.now = func() time.Time { return base.Add(20 * time.Second) }
	views, err = svc.ListProducts(ctx, catalog.Query{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "9.00", views[0].EffectivePrice.StringFixed(2))
	assert.Equal(t, 1, store.promotionReads, "second read served from cache")
}

func TestActivePromotionsFallsBackOnCacheError(t *testing.T) {
	store := newMemStore()
	cache := &memCache{readErr: errors.New("connection refused")}
	svc := NewCatalogService(store, cache, time.Minute, 6)
	p := store.addProduct("Gel", "9.00", 1)
	store.promotions = []models.Promotion{promoFor(p.ID)}

	promos, err := svc.ActivePromotions(context.Background())
	require.NoError(t, err)
	assert.Len(t, promos, 1)
}

func TestCreatePromotionValidatesAndInvalidates(t *testing.T) {
	store := newMemStore()
	cache := &memCache{}
	svc := NewCatalogService(store, cache, time.Minute, 6)
	ctx := context.Background()
	p := store.addProduct("Gel", "9.00", 1)

	bad := promoFor(p.ID)
	bad.DiscountType = models.DiscountPercentage
	bad.DiscountValue = decimal.NewFromInt(150)
	err := svc.CreatePromotion(ctx, &bad)
	assert.True(t, models.IsValidation(err))
	assert.Empty(t, store.promotions)

	_, err = svc.ActivePromotions(ctx)
	require.NoError(t, err)
	require.True(t, cache.cached)

	good := promoFor(p.ID)
	require.NoError(t, svc.CreatePromotion(ctx, &good))
	assert.NotEqual(t, uuid.Nil, good.ID)
	assert.Equal(t, 1, cache.invalidated)

	promos, err := svc.ActivePromotions(ctx)
	require.NoError(t, err)
	assert.Len(t, promos, 1, "new promotion visible after invalidation")
}

func TestSetStockAndSaveProduct(t *testing.T) {
	store := newMemStore()
	svc := NewCatalogService(store, nil, time.Minute, 6)
	ctx := context.Background()

	assert.True(t, models.IsValidation(svc.SetStock(ctx, uuid.New(), -1)))
	assert.ErrorIs(t, svc.SetStock(ctx, uuid.New(), 3), models.ErrProductNotFound)

	p := &models.Product{Name: "Lotion", Price: decimal.RequireFromString("5.25"), Stock: 2}
	require.NoError(t, svc.SaveProduct(ctx, p))
	assert.NotEqual(t, uuid.Nil, p.ID)
	require.NoError(t, svc.SetStock(ctx, p.ID, 7))
	assert.Equal(t, 7, store.stockOf(p.ID))

	for _, name := range []string{"", "   "} {
		err := svc.SaveProduct(ctx, &models.Product{Name: name, Price: decimal.Zero})
		assert.True(t, models.IsValidation(err), "name %q", name)
	}

	trimmed := &models.Product{Name: "  Crema solar  ", Price: decimal.RequireFromString("12.00")}
	require.NoError(t, svc.SaveProduct(ctx, trimmed))
	saved, err := svc.Product(ctx, trimmed.ID)
	require.NoError(t, err)
	assert.Equal(t, "Crema solar", saved.Name)
}

func TestFeaturedFallsBackToDefaultLimit(t *testing.T) {
	store := newMemStore()
	svc := NewCatalogService(store, nil, time.Minute, -1)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < DefaultFeaturedLimit+2; i++ {
		ids = append(ids, store.addProduct(fmt.Sprintf("Crema %02d", i), "4.00", 1).ID)
	}
	store.promotions = []models.Promotion{promoFor(ids...)}

	featured, err := svc.Featured(ctx)
	require.NoError(t, err)
	assert.Len(t, featured, DefaultFeaturedLimit)
}
