package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

type dbCourse struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	Price       float64     `db:"price"`
	Status      string      `db:"status"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (c dbCourse) toDomain() course.Course {
	return course.Course{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Price:       c.Price,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type dbLesson struct {
	ID          string    `db:"id"`
	CourseID    string    `db:"course_id"`
	Title       string    `db:"title"`
	Content     string    `db:"content"`
	LessonOrder int       `db:"lesson_order"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (l dbLesson) toDomain() course.Lesson {
	return course.Lesson{
		ID:          l.ID,
		CourseID:    l.CourseID,
		Title:       l.Title,
		Content:     l.Content,
		LessonOrder: l.LessonOrder,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

type courseRepository struct {
	db core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DBExecutor) *courseRepository {
	return &courseRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to course.ErrNotFound
func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO course (id, title, description, price, status, created_at, updated_at)
		 VALUES (:id, :title, :description, :price, :status, :created_at, :updated_at)`,
		dbCourse{
			ID:          crs.ID,
			Title:       crs.Title,
			Description: crs.Description,
			Price:       crs.Price,
			Status:      crs.Status,
			CreatedAt:   crs.CreatedAt.UTC(),
			UpdatedAt:   crs.UpdatedAt.UTC(),
		},
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	var rows []dbCourse
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM course ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return toDomainCourses(rows), nil
}

func (repo courseRepository) QueryPublishedCourses(ctx context.Context) ([]course.Course, error) {
	var rows []dbCourse
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM course WHERE status = $1 ORDER BY created_at DESC`, course.StatusPublished)
	if err != nil {
		return nil, errors.Wrap(err, "querying published courses")
	}
	return toDomainCourses(rows), nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Course{}, course.ErrNotFound
	}
	var row dbCourse
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM course WHERE id = $1`, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "finding course by ID")
	}
	return row.toDomain(), nil
}

func (repo courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	lsn.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO lesson (id, course_id, title, content, lesson_order, created_at, updated_at)
		 VALUES (:id, :course_id, :title, :content, :lesson_order, :created_at, :updated_at)`,
		dbLesson{
			ID:          lsn.ID,
			CourseID:    lsn.CourseID,
			Title:       lsn.Title,
			Content:     lsn.Content,
			LessonOrder: lsn.LessonOrder,
			CreatedAt:   lsn.CreatedAt.UTC(),
			UpdatedAt:   lsn.UpdatedAt.UTC(),
		},
	)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return lsn, nil
}

func (repo courseRepository) QueryLessonsByCourseID(ctx context.Context, courseID string) ([]course.Lesson, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return []course.Lesson{}, nil
	}
	var rows []dbLesson
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM lesson WHERE course_id = $1 ORDER BY lesson_order, created_at`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toDomain())
	}
	return lessons, nil
}

func toDomainCourses(rows []dbCourse) []course.Course {
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toDomain())
	}
	return courses
}
