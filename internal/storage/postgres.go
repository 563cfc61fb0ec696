package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"teapot/internal/database"
)

// Postgres keeps the store in the kv_store table so several storefront
// instances can share carts and local orders
type Postgres struct {
	db *database.DB
}

// NewPostgres wraps a connected database; migrations must already be applied
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRow(ctx, database.GetValueSQL, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	if err := p.db.Exec(ctx, database.UpsertValueSQL, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if err := p.db.Exec(ctx, database.DeleteValueSQL, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the pool
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
