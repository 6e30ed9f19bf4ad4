package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courseloop/coursepay/internal/domain/course"
)

const (
	getCourseByIDSQL = `SELECT id, title, price, published
	FROM courses WHERE id = $1`

	getCoursesByIDsSQL = `SELECT id, title, price, published
	FROM courses WHERE id = ANY($1)`

	upsertCourseSQL = `INSERT INTO courses (id, title, price, published)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET title = EXCLUDED.title, price = EXCLUDED.price, published = EXCLUDED.published`
)

var _ course.Repository = (*CourseRepository)(nil)

// CourseRepository implements course.Repository backed by PostgreSQL.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository returns a CourseRepository that uses the given pool.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetByID returns one catalog entry, or course.ErrNotFound.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*course.Course, error) {
	var c course.Course
	err := r.pool.QueryRow(ctx, getCourseByIDSQL, id).Scan(&c.ID, &c.Title, &c.Price, &c.Published)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, course.ErrNotFound
		}
		return nil, fmt.Errorf("loading course %q: %w", id, err)
	}
	return &c, nil
}

// GetByIDs batch-fetches catalog entries; missing IDs are silently absent
// from the result.
func (r *CourseRepository) GetByIDs(ctx context.Context, ids []string) ([]course.Course, error) {
	rows, err := r.pool.Query(ctx, getCoursesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("loading courses: %w", err)
	}
	defer rows.Close()

	var out []course.Course
	for rows.Next() {
		var c course.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Price, &c.Published); err != nil {
			return nil, fmt.Errorf("scanning course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert inserts or refreshes a catalog entry. Used by seed and ingest
// tooling only.
func (r *CourseRepository) Upsert(ctx context.Context, c *course.Course) error {
	_, err := r.pool.Exec(ctx, upsertCourseSQL, c.ID, c.Title, c.Price, c.Published)
	if err != nil {
		return fmt.Errorf("upserting course %q: %w", c.ID, err)
	}
	return nil
}
