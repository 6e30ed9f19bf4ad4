package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courseloop/coursepay/internal/domain/enrollment"
)

const (
	listEnrollmentsSQL = `SELECT id, user_id, course_id, enrolled_at
	FROM enrollments WHERE user_id = $1 AND course_id = ANY($2)`

	enrollmentExistsSQL = `SELECT EXISTS (
	SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`
)

var _ enrollment.Repository = (*EnrollmentRepository)(nil)

// EnrollmentRepository provides enrollment reads backed by PostgreSQL.
// Writes happen only inside the settlement unit.
type EnrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository returns an EnrollmentRepository that uses the
// given pool.
func NewEnrollmentRepository(pool *pgxpool.Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// ListByUserAndCourses returns the user's enrollments within the course set.
func (r *EnrollmentRepository) ListByUserAndCourses(ctx context.Context, userID string, courseIDs []string) ([]enrollment.Enrollment, error) {
	rows, err := r.pool.Query(ctx, listEnrollmentsSQL, userID, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments for user %q: %w", userID, err)
	}
	defer rows.Close()

	var out []enrollment.Enrollment
	for rows.Next() {
		var e enrollment.Enrollment
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scanning enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Exists reports whether the (user, course) grant is present.
func (r *EnrollmentRepository) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, enrollmentExistsSQL, userID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking enrollment for user %q: %w", userID, err)
	}
	return exists, nil
}
