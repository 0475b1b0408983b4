package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/enroll"
)

type enrollRepository struct {
	db *DB
}

var _ enroll.Repository = (*enrollRepository)(nil) // interface compliance check

func NewEnrollRepository(db *DB) enroll.Repository {
	return &enrollRepository{db: db}
}

func (repo *enrollRepository) studentInfo(userID string) *enroll.StudentInfo {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	if usr, ok := repo.db.user.table[userID]; ok {
		return &enroll.StudentInfo{ID: usr.ID, Email: usr.Email, FullName: usr.FullName}
	}
	return nil
}

func (repo *enrollRepository) courseInfo(courseID string) *enroll.CourseInfo {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	if crs, ok := repo.db.course.table[courseID]; ok {
		return &enroll.CourseInfo{ID: crs.ID, Title: crs.Title, Price: crs.Price}
	}
	return nil
}

func (repo *enrollRepository) project(app enroll.Application, withStudent bool) enroll.Application {
	app.Course = repo.courseInfo(app.CourseID)
	if withStudent {
		app.Student = repo.studentInfo(app.UserID)
	} else {
		app.Student = nil
		app.ReviewedBy = null.String{}
	}
	return app
}

func (repo *enrollRepository) CreateApplication(ctx context.Context, app enroll.Application) (enroll.Application, error) {
	repo.db.application.Lock()
	defer repo.db.application.Unlock()

	for _, a := range repo.db.application.table {
		if a.UserID == app.UserID && a.CourseID == app.CourseID {
			return enroll.Application{}, enroll.ErrApplicationExists
		}
	}
	app.ID = uuid.New().String()
	repo.db.application.table[app.ID] = &app
	return app, nil
}

func (repo *enrollRepository) GetApplicationByID(ctx context.Context, id string) (enroll.Application, error) {
	repo.db.application.RLock()
	defer repo.db.application.RUnlock()

	if app, ok := repo.db.application.table[id]; ok {
		return repo.project(*app, true), nil
	}
	return enroll.Application{}, enroll.ErrApplicationNotFound
}

func (repo *enrollRepository) queryApplications(userID string) []enroll.Application {
	apps := make([]enroll.Application, 0, len(repo.db.application.table))
	for _, a := range repo.db.application.table {
		if userID != "" && a.UserID != userID {
			continue
		}
		apps = append(apps, repo.project(*a, userID == ""))
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return apps
}

func (repo *enrollRepository) QueryAllApplications(ctx context.Context) ([]enroll.Application, error) {
	repo.db.application.RLock()
	defer repo.db.application.RUnlock()
	return repo.queryApplications(""), nil
}

func (repo *enrollRepository) QueryApplicationsByUserID(ctx context.Context, userID string) ([]enroll.Application, error) {
	repo.db.application.RLock()
	defer repo.db.application.RUnlock()
	return repo.queryApplications(userID), nil
}

func (repo *enrollRepository) UpdateApplication(ctx context.Context, app enroll.Application) (enroll.Application, error) {
	repo.db.application.Lock()
	defer repo.db.application.Unlock()

	orig, ok := repo.db.application.table[app.ID]
	if !ok {
		return enroll.Application{}, enroll.ErrApplicationNotFound
	}
	orig.Status = app.Status
	orig.ReviewedBy = app.ReviewedBy
	orig.ReviewedAt = app.ReviewedAt
	return repo.project(*orig, true), nil
}

func (repo *enrollRepository) CreateEnrollment(ctx context.Context, enr enroll.Enrollment) error {
	repo.db.enrollment.Lock()
	defer repo.db.enrollment.Unlock()

	for _, e := range repo.db.enrollment.table {
		if e.UserID == enr.UserID && e.CourseID == enr.CourseID {
			return nil // ON CONFLICT DO NOTHING
		}
	}
	enr.ID = uuid.New().String()
	repo.db.enrollment.table[enr.ID] = &enr
	return nil
}

func (repo *enrollRepository) GetEnrollment(ctx context.Context, id, userID string) (enroll.Enrollment, error) {
	repo.db.enrollment.RLock()
	defer repo.db.enrollment.RUnlock()

	if enr, ok := repo.db.enrollment.table[id]; ok && enr.UserID == userID {
		res := *enr
		res.Course = repo.courseInfo(res.CourseID)
		return res, nil
	}
	return enroll.Enrollment{}, enroll.ErrEnrollmentNotFound
}

func (repo *enrollRepository) queryEnrollments(userID string) []enroll.Enrollment {
	enrollments := make([]enroll.Enrollment, 0, len(repo.db.enrollment.table))
	for _, e := range repo.db.enrollment.table {
		if userID != "" && e.UserID != userID {
			continue
		}
		enr := *e
		enr.Course = repo.courseInfo(enr.CourseID)
		enrollments = append(enrollments, enr)
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt) })
	return enrollments
}

func (repo *enrollRepository) QueryAllEnrollments(ctx context.Context) ([]enroll.Enrollment, error) {
	repo.db.enrollment.RLock()
	defer repo.db.enrollment.RUnlock()
	return repo.queryEnrollments(""), nil
}

func (repo *enrollRepository) QueryEnrollmentsByUserID(ctx context.Context, userID string) ([]enroll.Enrollment, error) {
	repo.db.enrollment.RLock()
	defer repo.db.enrollment.RUnlock()
	return repo.queryEnrollments(userID), nil
}

func (repo *enrollRepository) UpdateEnrollment(ctx context.Context, enr enroll.Enrollment) (enroll.Enrollment, error) {
	repo.db.enrollment.Lock()
	defer repo.db.enrollment.Unlock()

	orig, ok := repo.db.enrollment.table[enr.ID]
	if !ok {
		return enroll.Enrollment{}, enroll.ErrEnrollmentNotFound
	}
	orig.PaymentStatus = enr.PaymentStatus
	orig.PaymentID = enr.PaymentID
	res := *orig
	res.Course = repo.courseInfo(res.CourseID)
	return res, nil
}

func (repo *enrollRepository) HasPaidEnrollment(ctx context.Context, userID, courseID string) (bool, error) {
	repo.db.enrollment.RLock()
	defer repo.db.enrollment.RUnlock()

	for _, e := range repo.db.enrollment.table {
		if e.UserID == userID && e.CourseID == courseID && e.IsPaid() {
			return true, nil
		}
	}
	return false, nil
}

func (repo *enrollRepository) UpsertLessonProgress(ctx context.Context, prg enroll.LessonProgress) (enroll.LessonProgress, error) {
	repo.db.progress.Lock()
	defer repo.db.progress.Unlock()

	repo.db.progress.table[prg.UserID+"|"+prg.LessonID] = &prg
	return prg, nil
}

func (repo *enrollRepository) QueryLessonProgress(ctx context.Context, userID, courseID string) ([]enroll.LessonProgress, error) {
	repo.db.progress.RLock()
	defer repo.db.progress.RUnlock()

	progress := make([]enroll.LessonProgress, 0)
	for _, p := range repo.db.progress.table {
		if p.UserID != userID {
			continue
		}
		if courseID != "" && p.CourseID != courseID {
			continue
		}
		progress = append(progress, *p)
	}
	sort.Slice(progress, func(i, j int) bool {
		return progress[i].CompletedAt.Time.After(progress[j].CompletedAt.Time)
	})
	return progress, nil
}
