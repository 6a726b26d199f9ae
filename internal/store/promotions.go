package store

import (
	"context"
	"fmt"
	"time"

	"pharmacy-store/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const promotionColumns = `id, name, description, discount_type, discount_value, start_date, end_date, is_active`

// PromotionsBetween returns switched-on promotions whose window overlaps
// [from, until], each with its product set loaded
func (s *Store) PromotionsBetween(ctx context.Context, from, until time.Time) ([]models.Promotion, error) {
	var promotions []models.Promotion
	err := s.db.SelectContext(ctx, &promotions,
		"SELECT "+promotionColumns+` FROM promotions
		 WHERE is_active AND end_date >= $1 AND start_date <= $2
		 ORDER BY start_date, id`, from, until)
	if err != nil {
		return nil, err
	}
	if len(promotions) == 0 {
		return promotions, nil
	}

	ids := make([]uuid.UUID, len(promotions))
	for i, p := range promotions {
		ids[i] = p.ID
	}

	var links []struct {
		PromotionID uuid.UUID `db:"promotion_id"`
		ProductID   uuid.UUID `db:"product_id"`
	}
	err = s.db.SelectContext(ctx, &links,
		"SELECT promotion_id, product_id FROM product_promotions WHERE promotion_id = ANY($1)",
		pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to load promotion products: %w", err)
	}

	byPromotion := make(map[uuid.UUID][]uuid.UUID, len(promotions))
	for _, l := range links {
		byPromotion[l.PromotionID] = append(byPromotion[l.PromotionID], l.ProductID)
	}
	for i := range promotions {
		promotions[i].ProductIDs = byPromotion[promotions[i].ID]
	}
	return promotions, nil
}

// CreatePromotion inserts a promotion and its product set atomically
func (s *Store) CreatePromotion(ctx context.Context, p *models.Promotion) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO promotions (id, name, description, discount_type, discount_value, start_date, end_date, is_active)
			VALUES (:id, :name, :description, :discount_type, :discount_value, :start_date, :end_date, :is_active)`, p)
		if err != nil {
			return fmt.Errorf("failed to insert promotion: %w", err)
		}

		for _, productID := range p.ProductIDs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO product_promotions (promotion_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
				p.ID, productID); err != nil {
				return fmt.Errorf("failed to link product %s: %w", productID, err)
			}
		}
		return nil
	})
}
