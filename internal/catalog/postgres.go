package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProvider reads the marketplace products table. The table is owned by
// the marketplace service; this provider never writes to it.
type PostgresProvider struct {
	pool *pgxpool.Pool
}

func NewPostgresProvider(ctx context.Context, databaseURL string) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresProvider{pool: pool}, nil
}

func (p *PostgresProvider) Snapshot(ctx context.Context) ([]Item, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, category, COALESCE(description, ''), price, unit, COALESCE(manufacturer, '')
		 FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Category, &it.Description, &it.Price, &it.Unit, &it.Manufacturer); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return items, nil
}

func (p *PostgresProvider) Close() error {
	p.pool.Close()
	return nil
}
