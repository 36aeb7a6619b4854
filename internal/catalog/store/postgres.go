// Package store persists the menu.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"luwei/internal/catalog/models"
	id "luwei/pkg/domain"
	"luwei/pkg/platform/tx"
)

// PostgresStore reads and writes the products table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const productColumns = `id, name, description, price, image, is_available, created_at, updated_at`

// FindByIDs returns the products that exist among ids, keyed by id. Missing ids
// are simply absent from the map.
func (s *PostgresStore) FindByIDs(ctx context.Context, ids []id.ProductID) (map[id.ProductID]*models.Product, error) {
	out := make(map[id.ProductID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, pid := range ids {
		keys[i] = string(pid)
	}

	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("find products: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return out, nil
}

// List returns the menu ordered by name.
func (s *PostgresStore) List(ctx context.Context, includeUnavailable bool) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	if !includeUnavailable {
		query += ` WHERE is_available`
	}
	query += ` ORDER BY name, id`

	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces products in one transaction. created_at of an
// existing product is preserved.
func (s *PostgresStore) Upsert(ctx context.Context, products []*models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			image = EXCLUDED.image,
			is_available = EXCLUDED.is_available,
			updated_at = EXCLUDED.updated_at
	`
	return tx.Run(ctx, s.db, 0, func(ctx context.Context, sqlTx *sql.Tx) error {
		for _, p := range products {
			_, err := sqlTx.ExecContext(ctx, query,
				string(p.ID), p.Name, p.Description, p.Price, p.Image, p.IsAvailable, p.CreatedAt, p.UpdatedAt)
			if err != nil {
				return fmt.Errorf("upsert product %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*models.Product, error) {
	var (
		p   models.Product
		pid string
	)
	if err := row.Scan(&pid, &p.Name, &p.Description, &p.Price, &p.Image, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = id.ProductID(pid)
	return &p, nil
}
