package payment

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment record. Transitions are
// monotonic: pending may move to completed or failed, both of which are
// terminal. The conditional status update in storage is the only way to
// enter a terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Sentinel errors for checkout and settlement.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrNotFound        = errors.New("payment not found")
	ErrAlreadyFailed   = errors.New("payment already failed")
	ErrGatewayInit     = errors.New("payment initialization failed")
	ErrNoPendingRecord = errors.New("no pending payment")
)

// AlreadyEnrolledError rejects a checkout whose cart contains courses the
// user already owns. Titles names the offending courses for the client.
type AlreadyEnrolledError struct {
	CourseIDs []string
	Titles    []string
}

func (e *AlreadyEnrolledError) Error() string {
	if len(e.Titles) > 0 {
		return fmt.Sprintf("already enrolled in: %s", strings.Join(e.Titles, ", "))
	}
	return fmt.Sprintf("already enrolled in %d course(s)", len(e.CourseIDs))
}

// Record represents one payment attempt. CourseIDs is always stored in
// normalized form (distinct, sorted) so two attempts for the same cart
// compare equal.
type Record struct {
	ID        string
	UserID    string
	CourseIDs []string
	Amount    decimal.Decimal
	Status    Status
	Reference string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeCourseSet returns the distinct, sorted form of a course ID list.
func NormalizeCourseSet(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// SameCourseSet reports whether two already-normalized course sets are equal.
func SameCourseSet(a, b []string) bool {
	return slices.Equal(a, b)
}

// NewReference generates a globally unique payment reference. The ref_
// prefix and timestamp keep references human-sortable in gateway dashboards;
// the UUID fragment supplies the uniqueness.
func NewReference() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("ref_%d_%s", time.Now().UnixMilli(), id[:13])
}

// Repository defines persistence for payment records. Terminal-state writes
// go through conditional updates that report whether they matched, which is
// what makes concurrent settlement safe without a distributed lock.
type Repository interface {
	// GetByReference returns the record for a reference, or ErrNotFound.
	GetByReference(ctx context.Context, reference string) (*Record, error)

	// FindPendingByUser returns the user's newest pending record, or
	// ErrNoPendingRecord when there is none.
	FindPendingByUser(ctx context.Context, userID string) (*Record, error)

	Create(ctx context.Context, rec *Record) error

	// RotateReference points an existing pending record at a fresh gateway
	// reference and refreshes its amount.
	RotateReference(ctx context.Context, id, newReference string, amount decimal.Decimal) error

	// MarkFailedIfPending transitions pending -> failed. It reports false
	// without error when the record was already terminal.
	MarkFailedIfPending(ctx context.Context, reference string) (bool, error)
}

// UnitOfWork applies the success side of settlement as one atomic unit:
// conditionally transition the record pending -> completed, insert one
// enrollment per course (colliding inserts are treated as already
// satisfied), and clear the user's cart. It reports applied=false, without
// any mutation, when a concurrent caller won the status transition. If any
// step fails the whole unit rolls back and the record remains pending.
type UnitOfWork interface {
	Settle(ctx context.Context, rec *Record) (applied bool, err error)
}

// Metadata is attached to the gateway transaction so the provider dashboard
// can tie a charge back to the purchase.
type Metadata struct {
	UserID    string   `json:"userId"`
	CourseIDs []string `json:"courseIds"`
}

// Gateway is the outbound payment provider contract. VerifyTransaction is
// authoritative: a false result means "not successful" and is never retried
// here; a returned error means the answer is unknown and the record must be
// left pending.
type Gateway interface {
	InitializeTransaction(ctx context.Context, email string, amount decimal.Decimal, reference string, meta Metadata) (checkoutURL string, err error)
	VerifyTransaction(ctx context.Context, reference string) (bool, error)
}
