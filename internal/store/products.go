package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pharmacy-store/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const productColumns = `id, name, description, price, stock, barcode, category, section, image_url, created_at`

// ListPurchasableProducts returns products with stock, ordered by name
func (s *Store) ListPurchasableProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE stock > 0 ORDER BY name")
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE id = ANY($1)", pq.Array(uuidStrings(ids)))
	return products, err
}

// UpsertProduct inserts a product or replaces its catalog fields
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	query := `
		INSERT INTO products (id, name, description, price, stock, barcode, category, section, image_url)
		VALUES (:id, :name, :description, :price, :stock, :barcode, :category, :section, :image_url)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			barcode = EXCLUDED.barcode,
			category = EXCLUDED.category,
			section = EXCLUDED.section,
			image_url = EXCLUDED.image_url
		RETURNING created_at`

	rows, err := s.db.NamedQueryContext(ctx, query, p)
	if err != nil {
		return err
	}
	defer rows.Close()
	if rows.Next() {
		return rows.Scan(&p.CreatedAt)
	}
	return rows.Err()
}

// SetProductStock overwrites the stock count of a product
func (s *Store) SetProductStock(ctx context.Context, id uuid.UUID, stock int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE products SET stock = $1 WHERE id = $2", stock, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
