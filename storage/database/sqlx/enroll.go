package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/enroll"
)

type dbStudentInfo struct {
	ID       string      `db:"id"`
	Email    string      `db:"email"`
	FullName null.String `db:"full_name"`
}

type dbCourseInfo struct {
	ID    string  `db:"id"`
	Title string  `db:"title"`
	Price float64 `db:"price"`
}

func (c dbCourseInfo) toDomain() *enroll.CourseInfo {
	return &enroll.CourseInfo{ID: c.ID, Title: c.Title, Price: c.Price}
}

type dbApplication struct {
	ID         string      `db:"id"`
	UserID     string      `db:"user_id"`
	CourseID   string      `db:"course_id"`
	Status     string      `db:"status"`
	Message    null.String `db:"message"`
	CreatedAt  time.Time   `db:"created_at"`
	ReviewedBy null.String `db:"reviewed_by"`
	ReviewedAt null.Time   `db:"reviewed_at"`

	Student dbStudentInfo `db:"student"`
	Course  dbCourseInfo  `db:"course"`
}

func (a dbApplication) toDomain(withStudent bool) enroll.Application {
	app := enroll.Application{
		ID:         a.ID,
		UserID:     a.UserID,
		CourseID:   a.CourseID,
		Status:     a.Status,
		Message:    a.Message,
		CreatedAt:  a.CreatedAt,
		ReviewedBy: a.ReviewedBy,
		ReviewedAt: a.ReviewedAt,
		Course:     a.Course.toDomain(),
	}
	if withStudent {
		app.Student = &enroll.StudentInfo{ID: a.Student.ID, Email: a.Student.Email, FullName: a.Student.FullName}
	}
	return app
}

type dbEnrollment struct {
	ID            string      `db:"id"`
	UserID        string      `db:"user_id"`
	CourseID      string      `db:"course_id"`
	PaymentStatus string      `db:"payment_status"`
	PaymentID     null.String `db:"payment_id"`
	EnrolledAt    time.Time   `db:"enrolled_at"`

	Course dbCourseInfo `db:"course"`
}

func (e dbEnrollment) toDomain() enroll.Enrollment {
	return enroll.Enrollment{
		ID:            e.ID,
		UserID:        e.UserID,
		CourseID:      e.CourseID,
		PaymentStatus: e.PaymentStatus,
		PaymentID:     e.PaymentID,
		EnrolledAt:    e.EnrolledAt,
		Course:        e.Course.toDomain(),
	}
}

type dbLessonProgress struct {
	UserID      string    `db:"user_id"`
	LessonID    string    `db:"lesson_id"`
	CourseID    string    `db:"course_id"`
	Completed   bool      `db:"completed"`
	CompletedAt null.Time `db:"completed_at"`
}

func (p dbLessonProgress) toDomain() enroll.LessonProgress {
	return enroll.LessonProgress{
		UserID:      p.UserID,
		LessonID:    p.LessonID,
		CourseID:    p.CourseID,
		Completed:   p.Completed,
		CompletedAt: p.CompletedAt,
	}
}

const (
	applicationSelect = `
		SELECT a.id, a.user_id, a.course_id, a.status, a.message, a.created_at, a.reviewed_by, a.reviewed_at,
		       u.id AS "student.id", u.email AS "student.email", u.full_name AS "student.full_name",
		       c.id AS "course.id", c.title AS "course.title", c.price AS "course.price"
		FROM application a
		JOIN "user" u ON u.id = a.user_id
		JOIN course c ON c.id = a.course_id`

	enrollmentSelect = `
		SELECT e.id, e.user_id, e.course_id, e.payment_status, e.payment_id, e.enrolled_at,
		       c.id AS "course.id", c.title AS "course.title", c.price AS "course.price"
		FROM enrollment e
		JOIN course c ON c.id = e.course_id`
)

type enrollRepository struct {
	db core.DBExecutor
}

var _ enroll.Repository = (*enrollRepository)(nil) // interface compliance check

func NewEnrollRepository(db core.DBExecutor) *enrollRepository {
	return &enrollRepository{db: db}
}

func (repo enrollRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo enrollRepository) CreateApplication(ctx context.Context, app enroll.Application) (enroll.Application, error) {
	app.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO application (id, user_id, course_id, status, message, created_at)
		 VALUES (:id, :user_id, :course_id, :status, :message, :created_at)`,
		dbApplication{
			ID:        app.ID,
			UserID:    app.UserID,
			CourseID:  app.CourseID,
			Status:    app.Status,
			Message:   app.Message,
			CreatedAt: app.CreatedAt.UTC(),
		},
	)
	if err != nil {
		if isUniqueViolation(err) {
			return enroll.Application{}, enroll.ErrApplicationExists
		}
		return enroll.Application{}, errors.Wrap(err, "inserting application")
	}
	return app, nil
}

func (repo enrollRepository) GetApplicationByID(ctx context.Context, id string) (enroll.Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return enroll.Application{}, enroll.ErrApplicationNotFound
	}
	var row dbApplication
	if err := repo.db.GetContext(ctx, &row, applicationSelect+` WHERE a.id = $1`, id); err != nil {
		return enroll.Application{}, repo.trapNoRowsErr(err, enroll.ErrApplicationNotFound, "finding application by ID")
	}
	return row.toDomain(true), nil
}

func (repo enrollRepository) QueryAllApplications(ctx context.Context) ([]enroll.Application, error) {
	var rows []dbApplication
	err := repo.db.SelectContext(ctx, &rows, applicationSelect+` ORDER BY a.created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]enroll.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toDomain(true))
	}
	return apps, nil
}

func (repo enrollRepository) QueryApplicationsByUserID(ctx context.Context, userID string) ([]enroll.Application, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []enroll.Application{}, nil
	}
	var rows []dbApplication
	err := repo.db.SelectContext(ctx, &rows, applicationSelect+` WHERE a.user_id = $1 ORDER BY a.created_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying applications by user")
	}
	apps := make([]enroll.Application, 0, len(rows))
	for _, row := range rows {
		// a student's own listing exposes no reviewer identity
		app := row.toDomain(false)
		app.ReviewedBy = null.String{}
		apps = append(apps, app)
	}
	return apps, nil
}

func (repo enrollRepository) UpdateApplication(ctx context.Context, app enroll.Application) (enroll.Application, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE application SET status = :status, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at WHERE id = :id`,
		dbApplication{
			ID:         app.ID,
			Status:     app.Status,
			ReviewedBy: app.ReviewedBy,
			ReviewedAt: app.ReviewedAt,
		},
	)
	if err != nil {
		return enroll.Application{}, errors.Wrap(err, "updating application")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enroll.Application{}, enroll.ErrApplicationNotFound
	}
	// refresh projections
	return repo.GetApplicationByID(ctx, app.ID)
}

func (repo enrollRepository) CreateEnrollment(ctx context.Context, enr enroll.Enrollment) error {
	enr.ID = uuid.New().String()
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO enrollment (id, user_id, course_id, payment_status, enrolled_at)
		 VALUES (:id, :user_id, :course_id, :payment_status, :enrolled_at)
		 ON CONFLICT ON CONSTRAINT enrollment_user_course_key DO NOTHING`,
		dbEnrollment{
			ID:            enr.ID,
			UserID:        enr.UserID,
			CourseID:      enr.CourseID,
			PaymentStatus: enr.PaymentStatus,
			EnrolledAt:    enr.EnrolledAt.UTC(),
		},
	)
	return errors.Wrap(err, "inserting enrollment")
}

func (repo enrollRepository) GetEnrollment(ctx context.Context, id, userID string) (enroll.Enrollment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return enroll.Enrollment{}, enroll.ErrEnrollmentNotFound
	}
	if _, err := uuid.Parse(userID); err != nil {
		return enroll.Enrollment{}, enroll.ErrEnrollmentNotFound
	}
	var row dbEnrollment
	err := repo.db.GetContext(ctx, &row, enrollmentSelect+` WHERE e.id = $1 AND e.user_id = $2`, id, userID)
	if err != nil {
		return enroll.Enrollment{}, repo.trapNoRowsErr(err, enroll.ErrEnrollmentNotFound, "finding enrollment")
	}
	return row.toDomain(), nil
}

func (repo enrollRepository) QueryAllEnrollments(ctx context.Context) ([]enroll.Enrollment, error) {
	var rows []dbEnrollment
	err := repo.db.SelectContext(ctx, &rows, enrollmentSelect+` ORDER BY e.enrolled_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return toDomainEnrollments(rows), nil
}

func (repo enrollRepository) QueryEnrollmentsByUserID(ctx context.Context, userID string) ([]enroll.Enrollment, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []enroll.Enrollment{}, nil
	}
	var rows []dbEnrollment
	err := repo.db.SelectContext(ctx, &rows, enrollmentSelect+` WHERE e.user_id = $1 ORDER BY e.enrolled_at DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments by user")
	}
	return toDomainEnrollments(rows), nil
}

func (repo enrollRepository) UpdateEnrollment(ctx context.Context, enr enroll.Enrollment) (enroll.Enrollment, error) {
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE enrollment SET payment_status = :payment_status, payment_id = :payment_id WHERE id = :id`,
		dbEnrollment{
			ID:            enr.ID,
			PaymentStatus: enr.PaymentStatus,
			PaymentID:     enr.PaymentID,
		},
	)
	if err != nil {
		return enroll.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enroll.Enrollment{}, enroll.ErrEnrollmentNotFound
	}
	// refresh projections
	return repo.GetEnrollment(ctx, enr.ID, enr.UserID)
}

func (repo enrollRepository) HasPaidEnrollment(ctx context.Context, userID, courseID string) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}
	if _, err := uuid.Parse(courseID); err != nil {
		return false, nil
	}
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM enrollment WHERE user_id = $1 AND course_id = $2 AND payment_status = $3)`,
		userID, courseID, enroll.PaymentPaid,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking paid enrollment")
	}
	return exists, nil
}

func (repo enrollRepository) UpsertLessonProgress(ctx context.Context, prg enroll.LessonProgress) (enroll.LessonProgress, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO lesson_progress (user_id, lesson_id, course_id, completed, completed_at)
		 VALUES (:user_id, :lesson_id, :course_id, :completed, :completed_at)
		 ON CONFLICT (user_id, lesson_id)
		 DO UPDATE SET completed = EXCLUDED.completed, completed_at = EXCLUDED.completed_at`,
		dbLessonProgress{
			UserID:      prg.UserID,
			LessonID:    prg.LessonID,
			CourseID:    prg.CourseID,
			Completed:   prg.Completed,
			CompletedAt: prg.CompletedAt,
		},
	)
	if err != nil {
		return enroll.LessonProgress{}, errors.Wrap(err, "upserting lesson progress")
	}
	return prg, nil
}

func (repo enrollRepository) QueryLessonProgress(ctx context.Context, userID, courseID string) ([]enroll.LessonProgress, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []enroll.LessonProgress{}, nil
	}
	if courseID != "" {
		if _, err := uuid.Parse(courseID); err != nil {
			return []enroll.LessonProgress{}, nil
		}
	}

	var (
		rows []dbLessonProgress
		err  error
	)
	if courseID != "" {
		err = repo.db.SelectContext(ctx, &rows,
			`SELECT * FROM lesson_progress WHERE user_id = $1 AND course_id = $2 ORDER BY completed_at DESC NULLS LAST`,
			userID, courseID)
	} else {
		err = repo.db.SelectContext(ctx, &rows,
			`SELECT * FROM lesson_progress WHERE user_id = $1 ORDER BY completed_at DESC NULLS LAST`, userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying lesson progress")
	}
	progress := make([]enroll.LessonProgress, 0, len(rows))
	for _, row := range rows {
		progress = append(progress, row.toDomain())
	}
	return progress, nil
}

func toDomainEnrollments(rows []dbEnrollment) []enroll.Enrollment {
	enrollments := make([]enroll.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.toDomain())
	}
	return enrollments
}
