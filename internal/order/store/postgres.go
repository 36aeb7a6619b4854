// Package store persists orders and their line items.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	authmodels "luwei/internal/auth/models"
	"luwei/internal/order/models"
	id "luwei/pkg/domain"
	"luwei/pkg/platform/sentinel"
	"luwei/pkg/platform/tx"
)

// PostgresStore keeps orders in the orders and order_items tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `o.id, o.account_id, o.status, o.total_amount, o.created_at, o.updated_at`

// RunInTx runs fn in one transaction. Store calls made with the ctx passed to
// fn join that transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}
	return tx.Run(ctx, s.db, 0, func(ctx context.Context, _ *sql.Tx) error {
		return fn(ctx)
	})
}

// Create writes the order and all of its line items. Outside a transaction it
// opens one so the order is never visible without its items.
func (s *PostgresStore) Create(ctx context.Context, o *models.Order) error {
	return s.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Pick(ctx, s.db)
		_, err := q.ExecContext(ctx, `
			INSERT INTO orders (id, account_id, status, total_amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.UUID(o.ID), uuid.UUID(o.AccountID), string(o.Status), o.TotalAmount, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		for i, item := range o.Items {
			_, err := q.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, position, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, uuid.UUID(item.ID), uuid.UUID(o.ID), string(item.ProductID), item.Quantity, item.UnitPrice, i, item.CreatedAt)
			if err != nil {
				return fmt.Errorf("create order item %s: %w", item.ProductID, err)
			}
		}
		return nil
	})
}

// FindForUpdate loads an order header and locks its row until the surrounding
// transaction ends. Items are not loaded.
func (s *PostgresStore) FindForUpdate(ctx context.Context, orderID id.OrderID) (*models.Order, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, uuid.UUID(orderID))
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find order for update: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, orderID id.OrderID, status models.Status, now time.Time) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(orderID), string(status), now)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", orderID, sentinel.ErrNotFound)
	}
	return nil
}

// ListByAccount returns the account's orders with items, oldest first.
func (s *PostgresStore) ListByAccount(ctx context.Context, accountID id.AccountID, page models.Page) ([]*models.Order, error) {
	page = page.Normalized()
	q := tx.Pick(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.account_id = $1
		ORDER BY o.created_at ASC, o.id
		LIMIT $2 OFFSET $3
	`, uuid.UUID(accountID), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if err := s.loadItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListAll returns every order with its owner and items, newest first.
func (s *PostgresStore) ListAll(ctx context.Context, page models.Page) ([]*models.OrderWithOwner, error) {
	page = page.Normalized()
	q := tx.Pick(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+orderColumns+`, a.email, a.name
		FROM orders o
		JOIN accounts a ON a.id = o.account_id
		ORDER BY o.created_at DESC, o.id
		LIMIT $1 OFFSET $2
	`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	defer rows.Close()

	var (
		out    []*models.OrderWithOwner
		orders []*models.Order
	)
	for rows.Next() {
		var (
			o          models.Order
			oid, aid   uuid.UUID
			status     string
			ownerEmail string
			ownerName  string
		)
		if err := rows.Scan(&oid, &aid, &status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt, &ownerEmail, &ownerName); err != nil {
			return nil, fmt.Errorf("list all orders: %w", err)
		}
		o.ID, o.AccountID, o.Status = id.OrderID(oid), id.AccountID(aid), models.Status(status)
		out = append(out, &models.OrderWithOwner{
			Order: &o,
			Owner: authmodels.Contact{ID: o.AccountID, Email: ownerEmail, Name: ownerName},
		})
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	if err := s.loadItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return out, nil
}

// loadItems fills Items for every order with one query.
func (s *PostgresStore) loadItems(ctx context.Context, q tx.Querier, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[id.OrderID]*models.Order, len(orders))
	keys := make([]string, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		o.Items = []models.LineItem{}
		keys[i] = o.ID.String()
	}

	rows, err := q.QueryContext(ctx, `
		SELECT i.id, i.order_id, i.product_id, i.quantity, i.unit_price, i.created_at,
		       COALESCE(p.name, ''), COALESCE(p.image, '')
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1::uuid[])
		ORDER BY i.order_id, i.position
	`, pq.Array(keys))
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item     models.LineItem
			iid, oid uuid.UUID
			pid      string
		)
		if err := rows.Scan(&iid, &oid, &pid, &item.Quantity, &item.UnitPrice, &item.CreatedAt, &item.ProductName, &item.ProductImage); err != nil {
			return fmt.Errorf("load order items: %w", err)
		}
		item.ID, item.OrderID, item.ProductID = id.LineItemID(iid), id.OrderID(oid), id.ProductID(pid)
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		o        models.Order
		oid, aid uuid.UUID
		status   string
	)
	if err := row.Scan(&oid, &aid, &status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.ID, o.AccountID, o.Status = id.OrderID(oid), id.AccountID(aid), models.Status(status)
	return &o, nil
}
