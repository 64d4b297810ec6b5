// ABOUTME: Checkout order persistence
// ABOUTME: Order lines are stored as a JSON array next to the order totals

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateOrder inserts a submitted checkout.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order *Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encoding order items: %w", err)
	}

	query := `
		INSERT INTO orders (id, email, name, items, total_cents, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		order.ID,
		order.Email,
		order.Name,
		string(items),
		order.TotalCents,
		order.Currency,
		order.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	s.logger.Info("created order", "id", order.ID, "items", len(order.Items), "total_cents", order.TotalCents)
	return nil
}

// GetOrder retrieves an order by ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	query := `SELECT id, email, name, items, total_cents, currency, created_at FROM orders WHERE id = ?`
	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// ListOrders returns the most recent orders first.
func (s *SQLiteStore) ListOrders(ctx context.Context, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, email, name, items, total_cents, currency, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (*Order, error) {
	var order Order
	var items, createdAtStr string

	err := row.Scan(&order.ID, &order.Email, &order.Name, &items, &order.TotalCents, &order.Currency, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning order: %w", err)
	}

	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return nil, fmt.Errorf("decoding order items: %w", err)
	}
	order.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &order, nil
}
