package enrollment

import (
	"context"
	"time"
)

// Enrollment is a permanent access grant for one (user, course) pair. The
// pair is unique in storage; that constraint doubles as the idempotency
// backstop for settlement. Enrollments are only ever written as part of the
// atomic settlement unit, never by a client-facing API.
type Enrollment struct {
	ID         string
	UserID     string
	CourseID   string
	EnrolledAt time.Time
}

// Repository provides read access to enrollments.
type Repository interface {
	// ListByUserAndCourses returns the user's enrollments whose course is in
	// the given set. An empty result means none of the courses are enrolled.
	ListByUserAndCourses(ctx context.Context, userID string, courseIDs []string) ([]Enrollment, error)

	// Exists reports whether the (user, course) grant is present.
	Exists(ctx context.Context, userID, courseID string) (bool, error)
}
