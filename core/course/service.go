package course

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound = errors.New("course not found")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// QueryAllCourses returns every course, newest first.
		QueryAllCourses(ctx context.Context) ([]Course, error)
		// QueryPublishedCourses returns published courses, newest first.
		QueryPublishedCourses(ctx context.Context) ([]Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		// QueryLessonsByCourseID returns lessons ordered by lesson_order ascending.
		QueryLessonsByCourseID(ctx context.Context, courseID string) ([]Lesson, error)
	}

	// AccessChecker decides whether a caller may consume the content of a
	// course. The enrollment service provides the production implementation.
	AccessChecker interface {
		HasAccess(ctx context.Context, clr core.Caller, courseID string) (bool, error)
	}

	Service interface {
		Query(ctx context.Context, clr core.Caller) ([]Course, error)
		Get(ctx context.Context, clr core.Caller, id string) (Course, error)
		Create(ctx context.Context, clr core.Caller, nc NewCourse) (Course, error)
		Lessons(ctx context.Context, clr core.Caller, courseID string) ([]Lesson, error)
		CreateLesson(ctx context.Context, clr core.Caller, courseID string, nl NewLesson) (Lesson, error)
	}

	service struct {
		repo   Repository
		access AccessChecker
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, access AccessChecker, logger core.Logger) Service {
	return &service{
		repo:   repo,
		access: access,
		logger: logger,
	}
}

// Query lists the catalog. Students and anonymous callers only see
// published courses; admins see everything.
func (svc *service) Query(ctx context.Context, clr core.Caller) ([]Course, error) {
	if clr.IsAdmin() {
		return svc.repo.QueryAllCourses(ctx)
	}
	return svc.repo.QueryPublishedCourses(ctx)
}

func (svc *service) Get(ctx context.Context, clr core.Caller, id string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	// unpublished courses do not exist for non-admins
	if !crs.IsPublished() && !clr.IsAdmin() {
		return Course{}, ErrNotFound
	}
	return crs, nil
}

func (svc *service) Create(ctx context.Context, clr core.Caller, nc NewCourse) (Course, error) {
	if !clr.Authenticated() {
		return Course{}, core.ErrNotAuthenticated
	}
	if !clr.IsAdmin() {
		return Course{}, core.ErrPermissionDenied
	}
	if err := nc.Validate(ctx); err != nil {
		return Course{}, err
	}

	now := time.Now().UTC()
	crs := Course{
		Title:     nc.Title,
		Price:     nc.Price,
		Status:    nc.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nc.Description != "" {
		crs.Description.SetValid(nc.Description)
	}
	if crs.Status == "" {
		crs.Status = StatusDraft
	}
	return svc.repo.CreateCourse(ctx, crs)
}

// Lessons returns the ordered lesson list of a course. Content is gated:
// only admins and callers with a paid enrollment get through.
func (svc *service) Lessons(ctx context.Context, clr core.Caller, courseID string) ([]Lesson, error) {
	if !clr.Authenticated() {
		return nil, core.ErrNotAuthenticated
	}
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	ok, err := svc.access.HasAccess(ctx, clr, courseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryLessonsByCourseID(ctx, courseID)
}

func (svc *service) CreateLesson(ctx context.Context, clr core.Caller, courseID string, nl NewLesson) (Lesson, error) {
	if !clr.Authenticated() {
		return Lesson{}, core.ErrNotAuthenticated
	}
	if !clr.IsAdmin() {
		return Lesson{}, core.ErrPermissionDenied
	}
	if err := nl.Validate(ctx); err != nil {
		return Lesson{}, err
	}
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Lesson{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateLesson(ctx, Lesson{
		CourseID:    courseID,
		Title:       nl.Title,
		Content:     nl.Content,
		LessonOrder: nl.LessonOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
