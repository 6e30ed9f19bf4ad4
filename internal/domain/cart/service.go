package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/courseloop/coursepay/internal/domain/course"
	"github.com/courseloop/coursepay/internal/domain/enrollment"
)

// Service encapsulates cart business rules: what may enter a cart and how
// the derived total is maintained.
type Service struct {
	carts       Repository
	courses     course.Repository
	enrollments enrollment.Repository
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Repository, courses course.Repository, enrollments enrollment.Repository) *Service {
	return &Service{
		carts:       carts,
		courses:     courses,
		enrollments: enrollments,
	}
}

// Get returns the user's cart. ErrNotFound when the user has no cart yet.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.carts.Get(ctx, userID)
}

// Add puts a course into the user's cart, creating the cart lazily on first
// add. The course must exist, be published, and carry a positive price; the
// user must not already own or have carted it.
func (s *Service) Add(ctx context.Context, userID, courseID string) (*Cart, error) {
	c, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "lookup course")
	}
	if !c.Published {
		return nil, ErrUnpublished
	}
	if !c.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	enrolled, err := s.enrollments.Exists(ctx, userID, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "check enrollment")
	}
	if enrolled {
		return nil, ErrAlreadyEnrolled
	}

	crt, err := s.carts.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(err, "load cart")
		}
		crt = &Cart{UserID: userID}
	}

	for _, it := range crt.Items {
		if it.CourseID == courseID {
			return nil, ErrAlreadyInCart
		}
	}
	if len(crt.Items) >= MaxItems {
		return nil, ErrCartFull
	}

	crt.Items = append(crt.Items, Item{CourseID: courseID, Price: c.Price})
	crt.Total = Total(crt.Items)
	crt.UpdatedAt = time.Now()

	if err := s.carts.Save(ctx, crt); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return crt, nil
}

// Remove deletes one course from the cart and recomputes the total.
func (s *Service) Remove(ctx context.Context, userID, courseID string) (*Cart, error) {
	crt, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	kept := crt.Items[:0]
	found := false
	for _, it := range crt.Items {
		if it.CourseID == courseID {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return nil, ErrItemNotInCart
	}

	crt.Items = kept
	crt.Total = Total(crt.Items)
	crt.UpdatedAt = time.Now()

	if err := s.carts.Save(ctx, crt); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return crt, nil
}

// Clear empties the cart. The cart row stays in place with zero items and a
// zero total.
func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	crt, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	crt.Items = nil
	crt.Total = Total(nil)
	crt.UpdatedAt = time.Now()

	if err := s.carts.Save(ctx, crt); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return crt, nil
}

// Count returns the number of items in the user's cart, zero when the user
// has no cart.
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	crt, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return len(crt.Items), nil
}
