package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MaxItems caps how many courses a single cart may hold.
const MaxItems = 10

// Sentinel errors for cart operations.
var (
	ErrNotFound        = errors.New("cart not found")
	ErrAlreadyInCart   = errors.New("course already in cart")
	ErrItemNotInCart   = errors.New("item not found in cart")
	ErrCartFull        = errors.New("cart is full")
	ErrAlreadyEnrolled = errors.New("already enrolled in course")
	ErrUnpublished     = errors.New("course is not published")
	ErrInvalidPrice    = errors.New("course price is invalid")
)

// Item is one course in a cart. The price is captured at add time so the
// cart total stays stable even if the catalog price changes later.
type Item struct {
	CourseID string          `json:"course_id"`
	Price    decimal.Decimal `json:"price"`
}

// Cart holds a user's pending purchase selection. Exactly one cart exists
// per user; it is created lazily on first add and cleared, not deleted, on
// successful settlement.
type Cart struct {
	UserID    string
	Items     []Item
	Total     decimal.Decimal
	UpdatedAt time.Time
}

// Total computes the sum of item prices. Every cart mutation recomputes the
// stored total through this function, so the invariant "total equals the sum
// of current item prices" holds by construction and is testable without a
// storage round-trip.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return total
}

// Repository defines persistence for carts. Save upserts the full cart
// state; the settlement unit clears carts through its own transactional
// path, not through this interface.
type Repository interface {
	// Get returns the user's cart, or ErrNotFound when the user has none.
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}
