package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courseloop/coursepay/internal/domain/cart"
)

const (
	getCartSQL = `SELECT user_id, items, total, updated_at
	FROM carts WHERE user_id = $1`

	saveCartSQL = `INSERT INTO carts (user_id, items, total, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id) DO UPDATE
	SET items = EXCLUDED.items, total = EXCLUDED.total, updated_at = EXCLUDED.updated_at`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Items are
// stored as a JSONB array, one row per user.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get loads the user's cart. Returns cart.ErrNotFound when the user has no
// cart row yet.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var (
		c         cart.Cart
		itemsJSON []byte
	)
	err := r.pool.QueryRow(ctx, getCartSQL, userID).Scan(
		&c.UserID, &itemsJSON, &c.Total, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("loading cart for user %q: %w", userID, err)
	}

	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	return &c, nil
}

// Save upserts the full cart state.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}
	if c.Items == nil {
		itemsJSON = []byte("[]")
	}

	_, err = r.pool.Exec(ctx, saveCartSQL, c.UserID, itemsJSON, c.Total, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving cart for user %q: %w", c.UserID, err)
	}
	return nil
}
