package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/coursepay/internal/domain/course"
	"github.com/courseloop/coursepay/internal/domain/enrollment"
)

// --- Mock implementations ---

type mockCartRepo struct {
	carts   map[string]*Cart
	getErr  error
	saveErr error
	saved   *Cart
}

func (m *mockCartRepo) Get(_ context.Context, userID string) (*Cart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	return &cp, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *Cart) error {
	m.saved = c
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.carts == nil {
		m.carts = make(map[string]*Cart)
	}
	m.carts[c.UserID] = c
	return nil
}

type mockCourseRepo struct {
	byID map[string]*course.Course
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*course.Course, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, course.ErrNotFound
	}
	return c, nil
}

func (m *mockCourseRepo) GetByIDs(_ context.Context, ids []string) ([]course.Course, error) {
	var out []course.Course
	for _, id := range ids {
		if c, ok := m.byID[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCourseRepo) Upsert(_ context.Context, _ *course.Course) error {
	return nil
}

type mockEnrollmentRepo struct {
	enrolled map[string]bool
	err      error
}

func (m *mockEnrollmentRepo) ListByUserAndCourses(_ context.Context, userID string, courseIDs []string) ([]enrollment.Enrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []enrollment.Enrollment
	for _, id := range courseIDs {
		if m.enrolled[userID+"/"+id] {
			out = append(out, enrollment.Enrollment{UserID: userID, CourseID: id})
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) Exists(_ context.Context, userID, courseID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.enrolled[userID+"/"+courseID], nil
}

// --- Helpers ---

func newTestCourse(id, title, price string) *course.Course {
	return &course.Course{
		ID:        id,
		Title:     title,
		Price:     decimal.RequireFromString(price),
		Published: true,
	}
}

func newCourseRepo(courses ...*course.Course) *mockCourseRepo {
	byID := make(map[string]*course.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	return &mockCourseRepo{byID: byID}
}

// --- Tests ---

func TestAdd_CreatesCartOnFirstAdd(t *testing.T) {
	carts := &mockCartRepo{}
	svc := NewService(carts, newCourseRepo(newTestCourse("c1", "Go Fundamentals", "150.00")), &mockEnrollmentRepo{})

	crt, err := svc.Add(context.Background(), "u1", "c1")

	require.NoError(t, err)
	assert.Equal(t, "u1", crt.UserID)
	require.Len(t, crt.Items, 1)
	assert.Equal(t, "c1", crt.Items[0].CourseID)
	assert.True(t, decimal.RequireFromString("150.00").Equal(crt.Total))
	require.NotNil(t, carts.saved)
}

func TestAdd_RecomputesTotal(t *testing.T) {
	repo := newCourseRepo(
		newTestCourse("c1", "Go Fundamentals", "150.00"),
		newTestCourse("c2", "Postgres Tuning", "225.50"),
	)
	svc := NewService(&mockCartRepo{}, repo, &mockEnrollmentRepo{})

	_, err := svc.Add(context.Background(), "u1", "c1")
	require.NoError(t, err)
	crt, err := svc.Add(context.Background(), "u1", "c2")
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("375.50").Equal(crt.Total))
}

func TestAdd_CourseNotFound(t *testing.T) {
	svc := NewService(&mockCartRepo{}, newCourseRepo(), &mockEnrollmentRepo{})

	_, err := svc.Add(context.Background(), "u1", "missing")
	require.ErrorIs(t, err, course.ErrNotFound)
}

func TestAdd_Unpublished(t *testing.T) {
	draft := newTestCourse("c1", "Draft Course", "99.00")
	draft.Published = false
	svc := NewService(&mockCartRepo{}, newCourseRepo(draft), &mockEnrollmentRepo{})

	_, err := svc.Add(context.Background(), "u1", "c1")
	require.ErrorIs(t, err, ErrUnpublished)
}

func TestAdd_InvalidPrice(t *testing.T) {
	free := newTestCourse("c1", "Free Course", "0.00")
	svc := NewService(&mockCartRepo{}, newCourseRepo(free), &mockEnrollmentRepo{})

	_, err := svc.Add(context.Background(), "u1", "c1")
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestAdd_AlreadyEnrolled(t *testing.T) {
	enrollments := &mockEnrollmentRepo{enrolled: map[string]bool{"u1/c1": true}}
	svc := NewService(&mockCartRepo{}, newCourseRepo(newTestCourse("c1", "Go Fundamentals", "150.00")), enrollments)

	_, err := svc.Add(context.Background(), "u1", "c1")
	require.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestAdd_AlreadyInCart(t *testing.T) {
	svc := NewService(&mockCartRepo{}, newCourseRepo(newTestCourse("c1", "Go Fundamentals", "150.00")), &mockEnrollmentRepo{})

	_, err := svc.Add(context.Background(), "u1", "c1")
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), "u1", "c1")
	require.ErrorIs(t, err, ErrAlreadyInCart)
}

func TestAdd_CartFull(t *testing.T) {
	courses := make([]*course.Course, 0, MaxItems+1)
	for i := 0; i <= MaxItems; i++ {
		courses = append(courses, newTestCourse(
			string(rune('a'+i)), "Course", "10.00",
		))
	}
	svc := NewService(&mockCartRepo{}, newCourseRepo(courses...), &mockEnrollmentRepo{})

	for i := 0; i < MaxItems; i++ {
		_, err := svc.Add(context.Background(), "u1", courses[i].ID)
		require.NoError(t, err)
	}

	_, err := svc.Add(context.Background(), "u1", courses[MaxItems].ID)
	require.ErrorIs(t, err, ErrCartFull)
}

func TestAdd_SaveError(t *testing.T) {
	carts := &mockCartRepo{saveErr: errors.New("db write failed")}
	svc := NewService(carts, newCourseRepo(newTestCourse("c1", "Go Fundamentals", "150.00")), &mockEnrollmentRepo{})

	_, err := svc.Add(context.Background(), "u1", "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save cart")
}

func TestRemove_RecomputesTotal(t *testing.T) {
	repo := newCourseRepo(
		newTestCourse("c1", "Go Fundamentals", "150.00"),
		newTestCourse("c2", "Postgres Tuning", "225.50"),
	)
	svc := NewService(&mockCartRepo{}, repo, &mockEnrollmentRepo{})

	_, err := svc.Add(context.Background(), "u1", "c1")
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), "u1", "c2")
	require.NoError(t, err)

	crt, err := svc.Remove(context.Background(), "u1", "c1")
	require.NoError(t, err)
	require.Len(t, crt.Items, 1)
	assert.Equal(t, "c2", crt.Items[0].CourseID)
	assert.True(t, decimal.RequireFromString("225.50").Equal(crt.Total))
}

func TestRemove_ItemNotInCart(t *testing.T) {
	svc := NewService(&mockCartRepo{}, newCourseRepo(newTestCourse("c1", "Go Fundamentals", "150.00")), &mockEnrollmentRepo{})

	_, err := svc.Add(context.Background(), "u1", "c1")
	require.NoError(t, err)

	_, err = svc.Remove(context.Background(), "u1", "c2")
	require.ErrorIs(t, err, ErrItemNotInCart)
}

func TestRemove_NoCart(t *testing.T) {
	svc := NewService(&mockCartRepo{}, newCourseRepo(), &mockEnrollmentRepo{})

	_, err := svc.Remove(context.Background(), "u1", "c1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClear_EmptiesCartKeepsRow(t *testing.T) {
	carts := &mockCartRepo{}
	svc := NewService(carts, newCourseRepo(newTestCourse("c1", "Go Fundamentals", "150.00")), &mockEnrollmentRepo{})

	_, err := svc.Add(context.Background(), "u1", "c1")
	require.NoError(t, err)

	crt, err := svc.Clear(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, crt.Items)
	assert.True(t, decimal.Zero.Equal(crt.Total))

	// The cleared cart is still retrievable, not deleted.
	again, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, again.Items)
}

func TestCount(t *testing.T) {
	repo := newCourseRepo(
		newTestCourse("c1", "Go Fundamentals", "150.00"),
		newTestCourse("c2", "Postgres Tuning", "225.50"),
	)
	svc := NewService(&mockCartRepo{}, repo, &mockEnrollmentRepo{})

	n, err := svc.Count(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = svc.Add(context.Background(), "u1", "c1")
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), "u1", "c2")
	require.NoError(t, err)

	n, err = svc.Count(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTotal(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(Total(nil)))

	items := []Item{
		{CourseID: "c1", Price: decimal.RequireFromString("10.50")},
		{CourseID: "c2", Price: decimal.RequireFromString("0.50")},
	}
	assert.True(t, decimal.RequireFromString("11.00").Equal(Total(items)))
}
