package enroll

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

var (
	// errors
	ErrApplicationExists   = errors.New("an application for this course already exists")
	ErrApplicationNotFound = errors.New("application not found")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
)

type (
	Repository interface {
		// CreateApplication inserts a pending application. The store's
		// (user_id, course_id) uniqueness constraint decides duplicates:
		// a violation surfaces as ErrApplicationExists.
		CreateApplication(ctx context.Context, app Application) (Application, error)
		GetApplicationByID(ctx context.Context, id string) (Application, error)
		// QueryAllApplications returns every application newest first, with
		// student and course projections.
		QueryAllApplications(ctx context.Context) ([]Application, error)
		// QueryApplicationsByUserID returns a student's own applications
		// newest first, with course projections only.
		QueryApplicationsByUserID(ctx context.Context, userID string) ([]Application, error)
		UpdateApplication(ctx context.Context, app Application) (Application, error)

		// CreateEnrollment inserts a pending enrollment; an existing
		// (user_id, course_id) row makes it a silent no-op.
		CreateEnrollment(ctx context.Context, enr Enrollment) error
		// GetEnrollment looks an enrollment up by (id, user_id): ownership
		// is part of the key, a foreign enrollment is simply not found.
		GetEnrollment(ctx context.Context, id, userID string) (Enrollment, error)
		QueryAllEnrollments(ctx context.Context) ([]Enrollment, error)
		QueryEnrollmentsByUserID(ctx context.Context, userID string) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		HasPaidEnrollment(ctx context.Context, userID, courseID string) (bool, error)

		// UpsertLessonProgress is keyed on (user_id, lesson_id).
		UpsertLessonProgress(ctx context.Context, prg LessonProgress) (LessonProgress, error)
		// QueryLessonProgress returns a user's progress rows, optionally
		// filtered by course, most recently completed first.
		QueryLessonProgress(ctx context.Context, userID, courseID string) ([]LessonProgress, error)
	}

	// CourseGetter is the narrow slice of the course catalog this service
	// needs; course.Repository satisfies it.
	CourseGetter interface {
		GetCourseByID(ctx context.Context, id string) (course.Course, error)
	}

	Service interface {
		Submit(ctx context.Context, clr core.Caller, na NewApplication) (Application, error)
		Query(ctx context.Context, clr core.Caller) ([]Application, error)
		Review(ctx context.Context, clr core.Caller, id string, ra ReviewApplication) (Application, error)
		EnsureEnrollment(ctx context.Context, userID, courseID string) error
		QueryEnrollments(ctx context.Context, clr core.Caller) ([]Enrollment, error)
		ConfirmPayment(ctx context.Context, clr core.Caller, cp ConfirmPayment) (Enrollment, error)
		HasAccess(ctx context.Context, clr core.Caller, courseID string) (bool, error)
		SetCompletion(ctx context.Context, clr core.Caller, sp SetProgress) (LessonProgress, error)
		QueryProgress(ctx context.Context, clr core.Caller, filter ProgressFilter) ([]LessonProgress, error)
	}

	service struct {
		conf    *core.Config
		repo    Repository
		courses CourseGetter
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, courses CourseGetter, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		conf:    conf,
		repo:    repo,
		courses: courses,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// Submit creates a pending application for the calling student.
func (svc *service) Submit(ctx context.Context, clr core.Caller, na NewApplication) (Application, error) {
	app, err := svc.submit(ctx, clr, na)
	if err != nil {
		return Application{}, err
	}
	go svc.sendApplicationReceivedMail(clr, app)
	return app, nil
}

func (svc *service) submit(ctx context.Context, clr core.Caller, na NewApplication) (Application, error) {
	if !clr.Authenticated() {
		return Application{}, core.ErrNotAuthenticated
	}
	if !clr.IsStudent() {
		return Application{}, core.ErrPermissionDenied
	}
	if err := na.Validate(ctx); err != nil {
		return Application{}, err
	}

	// students only see published courses
	crs, err := svc.courses.GetCourseByID(ctx, na.CourseID)
	if err != nil {
		return Application{}, err
	}
	if !crs.IsPublished() {
		return Application{}, course.ErrNotFound
	}

	app := Application{
		UserID:    clr.ID,
		CourseID:  na.CourseID,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if na.Message != "" {
		app.Message.SetValid(na.Message)
	}

	app, err = svc.repo.CreateApplication(ctx, app)
	if err != nil {
		return Application{}, err
	}
	app.Course = &CourseInfo{ID: crs.ID, Title: crs.Title, Price: crs.Price}
	return app, nil
}

// Query lists applications: all of them for admins, own only for students.
func (svc *service) Query(ctx context.Context, clr core.Caller) ([]Application, error) {
	if !clr.Authenticated() {
		return nil, core.ErrNotAuthenticated
	}
	if clr.IsAdmin() {
		return svc.repo.QueryAllApplications(ctx)
	}
	return svc.repo.QueryApplicationsByUserID(ctx, clr.ID)
}

// Review records an admin decision. An approval bootstraps the enrollment
// best-effort: its failure is logged, never surfaced. Reviews overwrite;
// re-reviewing a terminal application is allowed.
func (svc *service) Review(ctx context.Context, clr core.Caller, id string, ra ReviewApplication) (Application, error) {
	app, err := svc.review(ctx, clr, id, ra)
	if err != nil {
		return Application{}, err
	}
	go svc.sendApplicationReviewedMail(app)
	return app, nil
}

func (svc *service) review(ctx context.Context, clr core.Caller, id string, ra ReviewApplication) (Application, error) {
	if !clr.Authenticated() {
		return Application{}, core.ErrNotAuthenticated
	}
	if !clr.IsAdmin() {
		return Application{}, core.ErrPermissionDenied
	}
	if err := ra.Validate(ctx); err != nil {
		return Application{}, err
	}

	app, err := svc.repo.GetApplicationByID(ctx, id)
	if err != nil {
		return Application{}, err
	}

	app.Status = ra.Decision
	app.ReviewedBy.SetValid(clr.ID)
	app.ReviewedAt.SetValid(time.Now().UTC())
	app, err = svc.repo.UpdateApplication(ctx, app)
	if err != nil {
		return Application{}, err
	}

	if app.Status == StatusApproved {
		if err = svc.EnsureEnrollment(ctx, app.UserID, app.CourseID); err != nil {
			svc.logger.Error(fmt.Sprintf("bootstrapping enrollment for application %s: %v", app.ID, err), err)
		}
	}
	return app, nil
}

// EnsureEnrollment inserts a pending enrollment for (userID, courseID);
// an already existing row is fine.
func (svc *service) EnsureEnrollment(ctx context.Context, userID, courseID string) error {
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		UserID:        userID,
		CourseID:      courseID,
		PaymentStatus: PaymentPending,
		EnrolledAt:    time.Now().UTC(),
	})
}

func (svc *service) QueryEnrollments(ctx context.Context, clr core.Caller) ([]Enrollment, error) {
	if !clr.Authenticated() {
		return nil, core.ErrNotAuthenticated
	}
	if clr.IsAdmin() {
		return svc.repo.QueryAllEnrollments(ctx)
	}
	return svc.repo.QueryEnrollmentsByUserID(ctx, clr.ID)
}

// ConfirmPayment flips the caller's enrollment to paid. Ownership is part
// of the lookup key: paying for someone else's enrollment is a NotFound,
// never a hint that the enrollment exists.
func (svc *service) ConfirmPayment(ctx context.Context, clr core.Caller, cp ConfirmPayment) (Enrollment, error) {
	enr, err := svc.confirmPayment(ctx, clr, cp)
	if err != nil {
		return Enrollment{}, err
	}
	go svc.sendPaymentReceivedMail(clr, enr)
	return enr, nil
}

func (svc *service) confirmPayment(ctx context.Context, clr core.Caller, cp ConfirmPayment) (Enrollment, error) {
	if !clr.Authenticated() {
		return Enrollment{}, core.ErrNotAuthenticated
	}
	if err := cp.Validate(ctx); err != nil {
		return Enrollment{}, err
	}

	enr, err := svc.repo.GetEnrollment(ctx, cp.EnrollmentID, clr.ID)
	if err != nil {
		return Enrollment{}, err
	}

	enr.PaymentStatus = PaymentPaid
	enr.PaymentID.SetValid(cp.PaymentID)
	return svc.repo.UpdateEnrollment(ctx, enr)
}

// HasAccess is the single gate for lesson content and progress writes:
// admins always pass, everyone else needs a paid enrollment.
func (svc *service) HasAccess(ctx context.Context, clr core.Caller, courseID string) (bool, error) {
	if clr.IsAdmin() {
		return true, nil
	}
	if clr.IsAnonymous() {
		return false, nil
	}
	return svc.repo.HasPaidEnrollment(ctx, clr.ID, courseID)
}

// SetCompletion upserts the caller's completion state for a lesson.
func (svc *service) SetCompletion(ctx context.Context, clr core.Caller, sp SetProgress) (LessonProgress, error) {
	if !clr.Authenticated() {
		return LessonProgress{}, core.ErrNotAuthenticated
	}
	if err := sp.Validate(ctx); err != nil {
		return LessonProgress{}, err
	}

	ok, err := svc.HasAccess(ctx, clr, sp.CourseID)
	if err != nil {
		return LessonProgress{}, err
	}
	if !ok {
		return LessonProgress{}, core.ErrPermissionDenied
	}

	prg := LessonProgress{
		UserID:    clr.ID,
		LessonID:  sp.LessonID,
		CourseID:  sp.CourseID,
		Completed: sp.Completed,
	}
	if sp.Completed {
		prg.CompletedAt.SetValid(time.Now().UTC())
	}
	return svc.repo.UpsertLessonProgress(ctx, prg)
}

// QueryProgress returns progress rows for the caller; admins may target
// another user for analytics.
func (svc *service) QueryProgress(ctx context.Context, clr core.Caller, filter ProgressFilter) ([]LessonProgress, error) {
	if !clr.Authenticated() {
		return nil, core.ErrNotAuthenticated
	}
	userID := clr.ID
	if filter.UserID != "" && clr.IsAdmin() {
		userID = filter.UserID
	}
	return svc.repo.QueryLessonProgress(ctx, userID, filter.CourseID)
}

func (svc *service) sendApplicationReceivedMail(clr core.Caller, app Application) {
	var title string
	if app.Course != nil {
		title = app.Course.Title
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: clr.Email}},
		Subject:      fmt.Sprintf("%s - Application received", svc.conf.AppName),
		TemplateName: "application-received",
		TemplateData: struct {
			CourseTitle string
			Application Application
		}{title, app},
	})
}

func (svc *service) sendApplicationReviewedMail(app Application) {
	if app.Student == nil {
		svc.logger.Warn(fmt.Sprintf("application %s has no student projection, skipping review mail", app.ID))
		return
	}
	var title string
	if app.Course != nil {
		title = app.Course.Title
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.Student.FullName.String, Address: app.Student.Email}},
		Subject:      fmt.Sprintf("%s - Application %s", svc.conf.AppName, app.Status),
		TemplateName: "application-reviewed",
		TemplateData: struct {
			CourseTitle string
			Application Application
		}{title, app},
	})
}

func (svc *service) sendPaymentReceivedMail(clr core.Caller, enr Enrollment) {
	var title string
	if enr.Course != nil {
		title = enr.Course.Title
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: clr.Email}},
		Subject:      fmt.Sprintf("%s - Payment received", svc.conf.AppName),
		TemplateName: "payment-received",
		TemplateData: struct {
			CourseTitle string
			Enrollment  Enrollment
		}{title, enr},
	})
}
