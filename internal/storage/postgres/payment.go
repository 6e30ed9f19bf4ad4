package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/courseloop/coursepay/internal/domain/payment"
)

const (
	getPaymentByReferenceSQL = `SELECT id, user_id, course_ids, amount, status, reference, created_at, updated_at
	FROM payments WHERE reference = $1`

	findPendingByUserSQL = `SELECT id, user_id, course_ids, amount, status, reference, created_at, updated_at
	FROM payments WHERE user_id = $1 AND status = 'pending'
	ORDER BY created_at DESC LIMIT 1`

	createPaymentSQL = `INSERT INTO payments (id, user_id, course_ids, amount, status, reference, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	rotateReferenceSQL = `UPDATE payments
	SET reference = $2, amount = $3, updated_at = now()
	WHERE id = $1 AND status = 'pending'`

	markFailedSQL = `UPDATE payments
	SET status = 'failed', updated_at = now()
	WHERE reference = $1 AND status = 'pending'`

	completePaymentSQL = `UPDATE payments
	SET status = 'completed', updated_at = now()
	WHERE reference = $1 AND status = 'pending'`

	insertEnrollmentSQL = `INSERT INTO enrollments (id, user_id, course_id, enrolled_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, course_id) DO NOTHING`

	clearCartSQL = `UPDATE carts
	SET items = '[]'::jsonb, total = 0, updated_at = now()
	WHERE user_id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
// Terminal-state writes are conditional on the current status so concurrent
// settlement callers serialize through the database, not through any
// in-process lock.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// GetByReference loads the record for a gateway reference. Returns
// payment.ErrNotFound when no record carries the reference.
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*payment.Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, getPaymentByReferenceSQL, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("loading payment %q: %w", reference, err)
	}
	return rec, nil
}

// FindPendingByUser returns the user's newest pending record. Older pending
// records for abandoned carts may coexist; checkout never reuses those and
// they fail gateway verification on their own.
func (r *PaymentRepository) FindPendingByUser(ctx context.Context, userID string) (*payment.Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, findPendingByUserSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNoPendingRecord
		}
		return nil, fmt.Errorf("finding pending payment for user %q: %w", userID, err)
	}
	return rec, nil
}

// Create persists a new pending record.
func (r *PaymentRepository) Create(ctx context.Context, rec *payment.Record) error {
	_, err := r.pool.Exec(ctx, createPaymentSQL,
		rec.ID, rec.UserID, rec.CourseIDs, rec.Amount, rec.Status, rec.Reference, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating payment %q: %w", rec.Reference, err)
	}
	return nil
}

// RotateReference points a still-pending record at a fresh reference and
// refreshes its amount.
func (r *PaymentRepository) RotateReference(ctx context.Context, id, newReference string, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, rotateReferenceSQL, id, newReference, amount)
	if err != nil {
		return fmt.Errorf("rotating reference for payment %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrNoPendingRecord
	}
	return nil
}

// MarkFailedIfPending applies the conditional pending -> failed transition
// and reports whether this call performed it.
func (r *PaymentRepository) MarkFailedIfPending(ctx context.Context, reference string) (bool, error) {
	tag, err := r.pool.Exec(ctx, markFailedSQL, reference)
	if err != nil {
		return false, fmt.Errorf("marking payment %q failed: %w", reference, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanRecord(row pgx.Row) (*payment.Record, error) {
	var rec payment.Record
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.CourseIDs, &rec.Amount,
		&rec.Status, &rec.Reference, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ payment.UnitOfWork = (*SettlementUnit)(nil)

// SettlementUnit implements the atomic success side of settlement in one
// database transaction: the guarded status transition, the enrollment
// inserts, and the cart clear commit together or not at all.
type SettlementUnit struct {
	pool *pgxpool.Pool
}

// NewSettlementUnit returns a SettlementUnit that uses the given pool.
func NewSettlementUnit(pool *pgxpool.Pool) *SettlementUnit {
	return &SettlementUnit{pool: pool}
}

// Settle transitions the record pending -> completed, inserts one
// enrollment per course, and clears the user's cart. The status update is
// the entry guard: when it matches zero rows a concurrent caller has already
// advanced the record, and Settle returns applied=false having written
// nothing. Enrollment inserts use ON CONFLICT DO NOTHING so a pre-existing
// grant counts as satisfied rather than failing the unit.
func (u *SettlementUnit) Settle(ctx context.Context, rec *payment.Record) (bool, error) {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning settlement tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, completePaymentSQL, rec.Reference)
	if err != nil {
		return false, fmt.Errorf("completing payment %q: %w", rec.Reference, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	now := time.Now()
	for _, courseID := range rec.CourseIDs {
		_, err := tx.Exec(ctx, insertEnrollmentSQL, uuid.New().String(), rec.UserID, courseID, now)
		if err != nil {
			return false, fmt.Errorf("enrolling user %q in course %q: %w", rec.UserID, courseID, err)
		}
	}

	if _, err := tx.Exec(ctx, clearCartSQL, rec.UserID); err != nil {
		return false, fmt.Errorf("clearing cart for user %q: %w", rec.UserID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing settlement for %q: %w", rec.Reference, err)
	}
	return true, nil
}
