package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/courseloop/coursepay/internal/domain/auth"
	"github.com/courseloop/coursepay/internal/domain/cart"
	"github.com/courseloop/coursepay/internal/domain/course"
	"github.com/courseloop/coursepay/internal/domain/enrollment"
)

// CheckoutResult is returned from a successful checkout initialization.
// Reused is true when an existing pending record was rotated onto a fresh
// reference instead of a new record being created.
type CheckoutResult struct {
	CheckoutURL string
	Reused      bool
}

// Service orchestrates checkout initialization and settlement for course
// purchases.
type Service struct {
	carts       cart.Repository
	courses     course.Repository
	enrollments enrollment.Repository
	payments    Repository
	uow         UnitOfWork
	gateway     Gateway
}

// NewService creates a payment Service with the required domain dependencies.
func NewService(
	carts cart.Repository,
	courses course.Repository,
	enrollments enrollment.Repository,
	payments Repository,
	uow UnitOfWork,
	gateway Gateway,
) *Service {
	return &Service{
		carts:       carts,
		courses:     courses,
		enrollments: enrollments,
		payments:    payments,
		uow:         uow,
		gateway:     gateway,
	}
}

// InitializeCheckout converts the user's cart into a pending payment intent
// with the gateway and returns the hosted checkout URL.
//
// When a pending record already exists for the identical course set, it is
// reused: its reference is rotated and its amount refreshed. This keeps a
// user who repeatedly opens the checkout page from piling up orphaned
// records. A pending record for a different course set is left alone to
// expire or fail on its own.
func (s *Service) InitializeCheckout(ctx context.Context, user auth.Identity) (*CheckoutResult, error) {
	crt, err := s.carts.Get(ctx, user.UserID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "load cart")
	}
	if len(crt.Items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(crt.Items))
	for i, it := range crt.Items {
		ids[i] = it.CourseID
	}
	courseSet := NormalizeCourseSet(ids)

	var (
		enrolled []enrollment.Enrollment
		pending  *Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enrolled, err = s.enrollments.ListByUserAndCourses(gctx, user.UserID, courseSet)
		if err != nil {
			return errors.Wrap(err, "list enrollments")
		}
		return nil
	})
	g.Go(func() error {
		rec, err := s.payments.FindPendingByUser(gctx, user.UserID)
		if err != nil {
			if errors.Is(err, ErrNoPendingRecord) {
				return nil
			}
			return errors.Wrap(err, "find pending payment")
		}
		pending = rec
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(enrolled) > 0 {
		return nil, s.alreadyEnrolledError(ctx, enrolled)
	}

	reference := NewReference()
	meta := Metadata{UserID: user.UserID, CourseIDs: courseSet}

	if pending != nil && SameCourseSet(pending.CourseIDs, courseSet) {
		if err := s.payments.RotateReference(ctx, pending.ID, reference, crt.Total); err != nil {
			return nil, errors.Wrap(err, "rotate reference")
		}
		url, err := s.gateway.InitializeTransaction(ctx, user.Email, crt.Total, reference, meta)
		if err != nil {
			return nil, errors.Wrapf(ErrGatewayInit, "initialize transaction: %s", err)
		}
		return &CheckoutResult{CheckoutURL: url, Reused: true}, nil
	}

	rec := &Record{
		ID:        uuid.New().String(),
		UserID:    user.UserID,
		CourseIDs: courseSet,
		Amount:    crt.Total,
		Status:    StatusPending,
		Reference: reference,
		CreatedAt: time.Now(),
	}
	if err := s.payments.Create(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "create payment")
	}

	url, err := s.gateway.InitializeTransaction(ctx, user.Email, crt.Total, reference, meta)
	if err != nil {
		// The record stays pending: a later checkout for the same cart will
		// reuse it, and settlement can still pick it up if the charge went
		// through on the gateway side.
		return nil, errors.Wrapf(ErrGatewayInit, "initialize transaction: %s", err)
	}

	return &CheckoutResult{CheckoutURL: url, Reused: false}, nil
}

// alreadyEnrolledError builds the rejection naming the courses the user
// already owns. Title lookup is best effort; IDs alone still make a usable
// error.
func (s *Service) alreadyEnrolledError(ctx context.Context, enrolled []enrollment.Enrollment) error {
	ids := make([]string, len(enrolled))
	for i, e := range enrolled {
		ids[i] = e.CourseID
	}

	found, err := s.courses.GetByIDs(ctx, ids)
	if err != nil {
		return &AlreadyEnrolledError{CourseIDs: ids}
	}
	titles := make([]string, len(found))
	for i, c := range found {
		titles[i] = c.Title
	}
	return &AlreadyEnrolledError{CourseIDs: ids, Titles: titles}
}
