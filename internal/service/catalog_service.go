package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmacy-store/internal/catalog"
	"pharmacy-store/internal/models"
	"pharmacy-store/internal/pricing"
	"pharmacy-store/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService serves the storefront product list with promotion pricing
type CatalogService struct {
	store         CatalogStore
	cache         PromotionCache
	cacheTTL      time.Duration
	featuredLimit int
	now           func() time.Time
	logger        *zap.Logger
}

// DefaultFeaturedLimit is used when the configured limit is not positive
const DefaultFeaturedLimit = 6

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(store CatalogStore, cache PromotionCache, cacheTTL time.Duration, featuredLimit int) *CatalogService {
	if featuredLimit < 1 {
		featuredLimit = DefaultFeaturedLimit
	}
	return &CatalogService{
		store:         store,
		cache:         cache,
		cacheTTL:      cacheTTL,
		featuredLimit: featuredLimit,
		now:           time.Now,
		logger:        util.GetLogger(),
	}
}

// PromotionBadge is the short promotion summary shown next to a price
type PromotionBadge struct {
	ID            uuid.UUID           `json:"id"`
	Name          string              `json:"name"`
	DiscountType  models.DiscountType `json:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
}

// ProductView is a catalog product with its current price
type ProductView struct {
	models.Product
	EffectivePrice decimal.Decimal `json:"effective_price"`
	Promotion      *PromotionBadge `json:"promotion,omitempty"`
}

func badgeFor(p *models.Promotion) *PromotionBadge {
	if p == nil {
		return nil
	}
	return &PromotionBadge{
		ID:            p.ID,
		Name:          p.Name,
		DiscountType:  p.DiscountType,
		DiscountValue: p.DiscountValue,
	}
}

func viewsFor(products []models.Product, promotions []models.Promotion, now time.Time) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{
			Product:        p,
			EffectivePrice: pricing.EffectivePrice(p, promotions, now),
			Promotion:      badgeFor(pricing.ApplicablePromotion(p, promotions, now)),
		})
	}
	return views
}

// ActivePromotions returns the promotions active now, from cache when possible.
// The cached set covers every promotion whose window overlaps the cache
// lifetime, so one that opens while cached is picked up on time.
// A cache failure is logged and the store is read instead.
func (s *CatalogService) ActivePromotions(ctx context.Context) ([]models.Promotion, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ActivePromotions")
	defer span.End()

	now := s.now()
	if s.cache != nil {
		promotions, ok, err := s.cache.CachedPromotions(ctx)
		if err != nil {
			s.logger.Warn("Promotion cache read failed", zap.Error(err))
		} else if ok {
			return activeAt(promotions, now), nil
		}
	}

	promotions, err := s.store.PromotionsBetween(ctx, now, now.Add(s.cacheTTL))
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to load promotions: %w", err))
	}

	if s.cache != nil {
		if err := s.cache.CachePromotions(ctx, promotions, s.cacheTTL); err != nil {
			s.logger.Warn("Promotion cache write failed", zap.Error(err))
		}
	}
	return activeAt(promotions, now), nil
}

func activeAt(promotions []models.Promotion, now time.Time) []models.Promotion {
	out := make([]models.Promotion, 0, len(promotions))
	for _, p := range promotions {
		if p.ActiveAt(now) {
			out = append(out, p)
		}
	}
	return out
}

// ListProducts returns purchasable products matching q
func (s *CatalogService) ListProducts(ctx context.Context, q catalog.Query) ([]ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	products, err := s.store.ListPurchasableProducts(ctx)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list products: %w", err))
	}
	promotions, err := s.ActivePromotions(ctx)
	if err != nil {
		return nil, err
	}

	return viewsFor(catalog.Filter(products, q), promotions, s.now()), nil
}

// Featured returns the promoted products for the storefront header
func (s *CatalogService) Featured(ctx context.Context) ([]ProductView, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Featured")
	defer span.End()

	products, err := s.store.ListPurchasableProducts(ctx)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to list products: %w", err))
	}
	promotions, err := s.ActivePromotions(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return viewsFor(catalog.Featured(products, promotions, now, s.featuredLimit), promotions, now), nil
}

// Categories lists the categories of purchasable products
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	products, err := s.store.ListPurchasableProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return catalog.Categories(products), nil
}

// Product returns the current state of one product
func (s *CatalogService) Product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.store.GetProductByID(ctx, id)
}

// Products returns the current state of the given products keyed by ID.
// Unknown IDs are absent from the result.
func (s *CatalogService) Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// CreatePromotion validates and stores a promotion, then drops the cached set
func (s *CatalogService) CreatePromotion(ctx context.Context, p *models.Promotion) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreatePromotion")
	defer span.End()

	if err := pricing.ValidatePromotion(*p); err != nil {
		return err
	}
	if err := s.store.CreatePromotion(ctx, p); err != nil {
		return util.RecordError(span, fmt.Errorf("failed to create promotion: %w", err))
	}

	s.invalidatePromotions(ctx)
	s.logger.Info("Promotion created",
		zap.String("promotion_id", p.ID.String()),
		zap.String("name", p.Name),
		zap.Int("products", len(p.ProductIDs)))
	return nil
}

// SaveProduct creates or replaces a product
func (s *CatalogService) SaveProduct(ctx context.Context, p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return models.NewValidationError("name", "is required")
	}
	if p.Price.IsNegative() {
		return models.NewValidationError("price", "must not be negative")
	}
	if p.Stock < 0 {
		return models.NewValidationError("stock", "must not be negative")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return s.store.UpsertProduct(ctx, p)
}

// SetStock overwrites a product's stock level
func (s *CatalogService) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		return models.NewValidationError("stock", "must not be negative")
	}
	if err := s.store.SetProductStock(ctx, id, stock); err != nil {
		return err
	}
	s.logger.Info("Stock updated", zap.String("product_id", id.String()), zap.Int("stock", stock))
	return nil
}

func (s *CatalogService) invalidatePromotions(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePromotions(ctx); err != nil {
		s.logger.Warn("Promotion cache invalidation failed", zap.Error(err))
	}
}
