package enroll_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
)

var (
	conf   *core.Config
	logger core.Logger
)

func TestMain(m *testing.M) {
	conf = &core.Config{
		TestMode:        true,
		Env:             "TEST",
		AppName:         "Academia",
		SecretKey:       []byte("secret"),
		FrontendBaseURL: "http://localhost:3000",
		WorkDir:         core.Getwd(),
	}

	rollbarLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lshortfile),
		conf,
	)
	rollbarLogger.Enable(false)
	logger = rollbarLogger

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	enroll.InitValidators(validate)

	core.ParseEmailTemplates(conf, logger)

	os.Exit(m.Run())
}

type testEnv struct {
	svc     enroll.Service
	usrRepo user.Repository
	crsRepo course.Repository
	enrRepo enroll.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	emailsvc.ClearSentMessages()

	db := dummydb.Open()
	usrRepo := dummydb.NewUserRepository(db)
	crsRepo := dummydb.NewCourseRepository(db)
	enrRepo := dummydb.NewEnrollRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	svc := enroll.NewServiceMock(conf, enrRepo, crsRepo, mailSvc, logger)

	return &testEnv{svc: svc, usrRepo: usrRepo, crsRepo: crsRepo, enrRepo: enrRepo}
}

func (env *testEnv) createUser(t *testing.T, email, role string) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr, err := env.usrRepo.CreateUser(context.Background(), user.User{
		Email:          email,
		Role:           role,
		EmailConfirmed: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func (env *testEnv) createCourse(t *testing.T, title, status string, price float64) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := env.crsRepo.CreateCourse(context.Background(), course.Course{
		Title:     title,
		Price:     price,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return crs
}

func (env *testEnv) enrollments(t *testing.T, userID string) []enroll.Enrollment {
	t.Helper()

	enrollments, err := env.enrRepo.QueryEnrollmentsByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("QueryEnrollmentsByUserID(): %v", err)
	}
	return enrollments
}

func Test_service_Submit(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin := env.createUser(t, "boss@test.cd", core.RoleAdmin)
	student := env.createUser(t, "awe@test.cd", core.RoleStudent)
	published := env.createCourse(t, "Go for Gophers", course.StatusPublished, 100)
	draft := env.createCourse(t, "Top Secret Draft", course.StatusDraft, 250)

	anonymous := core.Caller{}
	unconfirmed := core.Caller{ID: student.ID, Email: student.Email, Role: core.RoleStudent}

	tests := []struct {
		name    string
		clr     core.Caller
		na      enroll.NewApplication
		wantErr error
	}{
		{name: "anonymous", clr: anonymous, na: enroll.NewApplication{CourseID: published.ID}, wantErr: core.ErrNotAuthenticated},
		{name: "unconfirmed email", clr: unconfirmed, na: enroll.NewApplication{CourseID: published.ID}, wantErr: core.ErrNotAuthenticated},
		{name: "admins cannot apply", clr: admin.AsCaller(), na: enroll.NewApplication{CourseID: published.ID}, wantErr: core.ErrPermissionDenied},
		{name: "unknown course", clr: student.AsCaller(), na: enroll.NewApplication{CourseID: "lol"}, wantErr: course.ErrNotFound},
		{name: "draft course", clr: student.AsCaller(), na: enroll.NewApplication{CourseID: draft.ID}, wantErr: course.ErrNotFound},
		{name: "ok", clr: student.AsCaller(), na: enroll.NewApplication{CourseID: published.ID, Message: "Please take me"}},
		{name: "duplicate", clr: student.AsCaller(), na: enroll.NewApplication{CourseID: published.ID}, wantErr: enroll.ErrApplicationExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := env.svc.Submit(ctx, tt.clr, tt.na)
			if err != tt.wantErr {
				t.Fatalf("Submit() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if app.Status != enroll.StatusPending {
				t.Errorf("status = %s; want %s", app.Status, enroll.StatusPending)
			}
			if app.UserID != tt.clr.ID {
				t.Errorf("user_id = %s; want %s", app.UserID, tt.clr.ID)
			}
			if !app.Message.Valid || app.Message.String != "Please take me" {
				t.Errorf("message = %v; want 'Please take me'", app.Message)
			}
			if app.Course == nil || app.Course.Title != published.Title {
				t.Errorf("course projection = %v; want %s", app.Course, published.Title)
			}

			// submitting never enrolls by itself
			if n := len(env.enrollments(t, tt.clr.ID)); n != 0 {
				t.Errorf("enrollments = %d; want 0", n)
			}

			if len(emailsvc.SentMessages) != 1 {
				t.Fatalf("sent mails = %d; want 1", len(emailsvc.SentMessages))
			}
			if name := emailsvc.SentMessages[0].TemplateName; name != "application-received" {
				t.Errorf("TemplateName = %s; want application-received", name)
			}
		})
	}
}

func Test_service_Review(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin := env.createUser(t, "boss@test.cd", core.RoleAdmin)
	student := env.createUser(t, "awe@test.cd", core.RoleStudent)
	crs := env.createCourse(t, "Go for Gophers", course.StatusPublished, 100)

	app, err := env.svc.Submit(ctx, student.AsCaller(), enroll.NewApplication{CourseID: crs.ID})
	if err != nil {
		t.Fatalf("Submit(): %v", err)
	}

	t.Run("students cannot review", func(t *testing.T) {
		_, err := env.svc.Review(ctx, student.AsCaller(), app.ID, enroll.ReviewApplication{Decision: "approved"})
		if err != core.ErrPermissionDenied {
			t.Errorf("Review() error = %v, wantErr %v", err, core.ErrPermissionDenied)
		}
	})

	t.Run("unknown application", func(t *testing.T) {
		_, err := env.svc.Review(ctx, admin.AsCaller(), "lol", enroll.ReviewApplication{Decision: "approved"})
		if err != enroll.ErrApplicationNotFound {
			t.Errorf("Review() error = %v, wantErr %v", err, enroll.ErrApplicationNotFound)
		}
	})

	t.Run("approval bootstraps the enrollment", func(t *testing.T) {
		reviewed, err := env.svc.Review(ctx, admin.AsCaller(), app.ID, enroll.ReviewApplication{Decision: "approved"})
		if err != nil {
			t.Fatalf("Review(): %v", err)
		}
		if reviewed.Status != enroll.StatusApproved {
			t.Errorf("status = %s; want %s", reviewed.Status, enroll.StatusApproved)
		}
		if !reviewed.ReviewedBy.Valid || reviewed.ReviewedBy.String != admin.ID {
			t.Errorf("reviewed_by = %v; want %s", reviewed.ReviewedBy, admin.ID)
		}
		if !reviewed.ReviewedAt.Valid {
			t.Error("expected reviewed_at to be set")
		}

		enrollments := env.enrollments(t, student.ID)
		if len(enrollments) != 1 {
			t.Fatalf("enrollments = %d; want 1", len(enrollments))
		}
		if enrollments[0].PaymentStatus != enroll.PaymentPending {
			t.Errorf("payment_status = %s; want %s", enrollments[0].PaymentStatus, enroll.PaymentPending)
		}

		if name := emailsvc.SentMessages[len(emailsvc.SentMessages)-1].TemplateName; name != "application-reviewed" {
			t.Errorf("TemplateName = %s; want application-reviewed", name)
		}
	})

	t.Run("re-approval keeps a single enrollment", func(t *testing.T) {
		if _, err := env.svc.Review(ctx, admin.AsCaller(), app.ID, enroll.ReviewApplication{Decision: "approved"}); err != nil {
			t.Fatalf("Review(): %v", err)
		}
		if n := len(env.enrollments(t, student.ID)); n != 1 {
			t.Errorf("enrollments = %d; want 1", n)
		}
	})

	t.Run("rejection overwrites but keeps the enrollment", func(t *testing.T) {
		reviewed, err := env.svc.Review(ctx, admin.AsCaller(), app.ID, enroll.ReviewApplication{Decision: "rejected"})
		if err != nil {
			t.Fatalf("Review(): %v", err)
		}
		if reviewed.Status != enroll.StatusRejected {
			t.Errorf("status = %s; want %s", reviewed.Status, enroll.StatusRejected)
		}
		// an already bootstrapped enrollment is never rolled back
		if n := len(env.enrollments(t, student.ID)); n != 1 {
			t.Errorf("enrollments = %d; want 1", n)
		}
	})
}

func Test_service_ConfirmPayment(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	student := env.createUser(t, "awe@test.cd", core.RoleStudent)
	other := env.createUser(t, "other@test.cd", core.RoleStudent)
	crs := env.createCourse(t, "Go for Gophers", course.StatusPublished, 100)

	if err := env.svc.EnsureEnrollment(ctx, student.ID, crs.ID); err != nil {
		t.Fatalf("EnsureEnrollment(): %v", err)
	}
	enr := env.enrollments(t, student.ID)[0]

	t.Run("foreign enrollment is not found", func(t *testing.T) {
		_, err := env.svc.ConfirmPayment(ctx, other.AsCaller(), enroll.ConfirmPayment{EnrollmentID: enr.ID, PaymentID: "pay_123"})
		if err != enroll.ErrEnrollmentNotFound {
			t.Errorf("ConfirmPayment() error = %v, wantErr %v", err, enroll.ErrEnrollmentNotFound)
		}
	})

	t.Run("ok", func(t *testing.T) {
		paid, err := env.svc.ConfirmPayment(ctx, student.AsCaller(), enroll.ConfirmPayment{EnrollmentID: enr.ID, PaymentID: "pay_123"})
		if err != nil {
			t.Fatalf("ConfirmPayment(): %v", err)
		}
		if !paid.IsPaid() {
			t.Errorf("payment_status = %s; want %s", paid.PaymentStatus, enroll.PaymentPaid)
		}
		if !paid.PaymentID.Valid || paid.PaymentID.String != "pay_123" {
			t.Errorf("payment_id = %v; want pay_123", paid.PaymentID)
		}
		if name := emailsvc.SentMessages[len(emailsvc.SentMessages)-1].TemplateName; name != "payment-received" {
			t.Errorf("TemplateName = %s; want payment-received", name)
		}
	})
}

func Test_service_HasAccess(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin := env.createUser(t, "boss@test.cd", core.RoleAdmin)
	paidStudent := env.createUser(t, "paid@test.cd", core.RoleStudent)
	pendingStudent := env.createUser(t, "pending@test.cd", core.RoleStudent)
	brokeStudent := env.createUser(t, "broke@test.cd", core.RoleStudent)
	crs := env.createCourse(t, "Go for Gophers", course.StatusPublished, 100)

	for _, usr := range []user.User{paidStudent, pendingStudent} {
		if err := env.svc.EnsureEnrollment(ctx, usr.ID, crs.ID); err != nil {
			t.Fatalf("EnsureEnrollment(): %v", err)
		}
	}
	enr := env.enrollments(t, paidStudent.ID)[0]
	if _, err := env.svc.ConfirmPayment(ctx, paidStudent.AsCaller(), enroll.ConfirmPayment{EnrollmentID: enr.ID, PaymentID: "pay_test"}); err != nil {
		t.Fatalf("ConfirmPayment(): %v", err)
	}

	tests := []struct {
		name string
		clr  core.Caller
		want bool
	}{
		{name: "admin", clr: admin.AsCaller(), want: true},
		{name: "anonymous", clr: core.Caller{}, want: false},
		{name: "paid enrollment", clr: paidStudent.AsCaller(), want: true},
		{name: "pending enrollment", clr: pendingStudent.AsCaller(), want: false},
		{name: "no enrollment", clr: brokeStudent.AsCaller(), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.svc.HasAccess(ctx, tt.clr, crs.ID)
			if err != nil {
				t.Fatalf("HasAccess(): %v", err)
			}
			if got != tt.want {
				t.Errorf("HasAccess() = %v; want %v", got, tt.want)
			}
		})
	}
}

func Test_service_SetCompletion(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	paidStudent := env.createUser(t, "paid@test.cd", core.RoleStudent)
	brokeStudent := env.createUser(t, "broke@test.cd", core.RoleStudent)
	crs := env.createCourse(t, "Go for Gophers", course.StatusPublished, 100)

	if err := env.svc.EnsureEnrollment(ctx, paidStudent.ID, crs.ID); err != nil {
		t.Fatalf("EnsureEnrollment(): %v", err)
	}
	enr := env.enrollments(t, paidStudent.ID)[0]
	if _, err := env.svc.ConfirmPayment(ctx, paidStudent.AsCaller(), enroll.ConfirmPayment{EnrollmentID: enr.ID, PaymentID: "pay_test"}); err != nil {
		t.Fatalf("ConfirmPayment(): %v", err)
	}

	sp := enroll.SetProgress{LessonID: "lsn1", CourseID: crs.ID, Completed: true}

	t.Run("gated like lesson reads", func(t *testing.T) {
		_, err := env.svc.SetCompletion(ctx, brokeStudent.AsCaller(), sp)
		if err != core.ErrPermissionDenied {
			t.Errorf("SetCompletion() error = %v, wantErr %v", err, core.ErrPermissionDenied)
		}
	})

	t.Run("complete is an idempotent upsert", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			prg, err := env.svc.SetCompletion(ctx, paidStudent.AsCaller(), sp)
			if err != nil {
				t.Fatalf("SetCompletion(): %v", err)
			}
			if !prg.Completed || !prg.CompletedAt.Valid {
				t.Errorf("progress = %+v; want completed with timestamp", prg)
			}
		}
		rows, err := env.enrRepo.QueryLessonProgress(ctx, paidStudent.ID, crs.ID)
		if err != nil {
			t.Fatalf("QueryLessonProgress(): %v", err)
		}
		if len(rows) != 1 {
			t.Errorf("progress rows = %d; want 1", len(rows))
		}
	})

	t.Run("un-complete clears the timestamp", func(t *testing.T) {
		sp := sp
		sp.Completed = false
		prg, err := env.svc.SetCompletion(ctx, paidStudent.AsCaller(), sp)
		if err != nil {
			t.Fatalf("SetCompletion(): %v", err)
		}
		if prg.Completed || prg.CompletedAt.Valid {
			t.Errorf("progress = %+v; want not completed without timestamp", prg)
		}
	})
}

func Test_service_QueryProgress(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin := env.createUser(t, "boss@test.cd", core.RoleAdmin)
	student := env.createUser(t, "awe@test.cd", core.RoleStudent)
	other := env.createUser(t, "other@test.cd", core.RoleStudent)
	crs := env.createCourse(t, "Go for Gophers", course.StatusPublished, 100)

	if err := env.svc.EnsureEnrollment(ctx, student.ID, crs.ID); err != nil {
		t.Fatalf("EnsureEnrollment(): %v", err)
	}
	enr := env.enrollments(t, student.ID)[0]
	if _, err := env.svc.ConfirmPayment(ctx, student.AsCaller(), enroll.ConfirmPayment{EnrollmentID: enr.ID, PaymentID: "pay_test"}); err != nil {
		t.Fatalf("ConfirmPayment(): %v", err)
	}
	if _, err := env.svc.SetCompletion(ctx, student.AsCaller(), enroll.SetProgress{LessonID: "lsn1", CourseID: crs.ID, Completed: true}); err != nil {
		t.Fatalf("SetCompletion(): %v", err)
	}

	tests := []struct {
		name   string
		clr    core.Caller
		filter enroll.ProgressFilter
		want   int
	}{
		{name: "own rows", clr: student.AsCaller(), want: 1},
		{name: "own rows filtered by course", clr: student.AsCaller(), filter: enroll.ProgressFilter{CourseID: crs.ID}, want: 1},
		{name: "own rows filtered by another course", clr: student.AsCaller(), filter: enroll.ProgressFilter{CourseID: "lol"}, want: 0},
		{name: "admin targets a user", clr: admin.AsCaller(), filter: enroll.ProgressFilter{UserID: student.ID}, want: 1},
		{name: "admin with no target gets own (empty)", clr: admin.AsCaller(), want: 0},
		{name: "student target override is ignored", clr: other.AsCaller(), filter: enroll.ProgressFilter{UserID: student.ID}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := env.svc.QueryProgress(ctx, tt.clr, tt.filter)
			if err != nil {
				t.Fatalf("QueryProgress(): %v", err)
			}
			if len(rows) != tt.want {
				t.Errorf("len(rows) = %d; want %d", len(rows), tt.want)
			}
		})
	}
}
