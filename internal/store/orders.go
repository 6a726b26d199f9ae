package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pharmacy-store/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, order_number, pickup_code, customer_name, customer_phone, subtotal, discount, total,
	status, notes, idempotency_key, created_at, updated_at`

// PlaceOrder writes the order, its items and the stock decrements in one
// transaction. Each decrement only succeeds while stock covers the quantity;
// otherwise nothing is written and a *models.StockError is returned.
func (s *Store) PlaceOrder(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO orders (id, order_number, pickup_code, customer_name, customer_phone,
				subtotal, discount, total, status, notes, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at, updated_at`

		if err := tx.QueryRowxContext(ctx, query,
			order.ID, order.OrderNumber, order.PickupCode, order.CustomerName, order.CustomerPhone,
			order.Subtotal, order.Discount, order.Total, order.Status, order.Notes, order.IdempotencyKey,
		).Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
			return classifyUniqueViolation(err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			if item.ID == uuid.Nil {
				item.ID = uuid.New()
			}
			item.OrderID = order.ID

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, discount, subtotal)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				item.ID, item.OrderID, item.ProductID, item.ProductName, item.Quantity,
				item.UnitPrice, item.Discount, item.Subtotal); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}

			res, err := tx.ExecContext(ctx,
				"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
				item.Quantity, item.ProductID)
			if err != nil {
				return fmt.Errorf("failed to decrement stock: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return &models.StockError{
					ProductID:   item.ProductID.String(),
					ProductName: item.ProductName,
					Requested:   item.Quantity,
				}
			}
		}
		return nil
	})

	return err
}

// GetOrderByID retrieves an order and its items
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.GetOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, or nil
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindOpenOrderByPickupCode matches the code case-insensitively among open orders
func (s *Store) FindOpenOrderByPickupCode(ctx context.Context, code string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+` FROM orders
		WHERE UPPER(pickup_code) = UPPER($1) AND status IN ('pending', 'preparing', 'ready')`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pickup code %s", models.ErrOrderNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns the most recent orders, newest first
func (s *Store) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, order_number DESC LIMIT $1", limit)
	return orders, err
}

// UpdateOrderStatus moves an order from one status to another. The update is
// conditional on the current status so that two cashiers acting at once
// cannot both win; the loser gets models.ErrConcurrentUpdate.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+orderColumns, to, id, from)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetOrderByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, models.ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, discount, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY product_name`, orderID)
	return items, err
}
