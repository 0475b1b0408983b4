package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
)

var (
	conf       *core.Config
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errNotAuthed    = httpErr{Error: "user not authenticated"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	conf = &core.Config{
		TestMode:                      true,
		Env:                           "TEST",
		AppName:                       "Academia",
		SecretKey:                     []byte("secret"),
		FrontendBaseURL:               "http://localhost:3000",
		WorkDir:                       core.Getwd(),
		PasswordResetTimeoutDelta:     3 * 24 * time.Hour,
		EmailVerificationTimeoutDelta: 24 * time.Hour,
	}
	conf.Server.JWTExpirationDelta = 1 * time.Hour
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour

	rollbarLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "TEST : ", log.LstdFlags|log.Lshortfile),
		conf,
	)
	rollbarLogger.Enable(false)
	logger = rollbarLogger

	validate = validator.New()
	translator = newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator, conf, logger)
	course.InitValidators(validate)
	enroll.InitValidators(validate)

	core.ParseEmailTemplates(conf, logger)

	os.Exit(m.Run())
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type testApp struct {
	server  Server
	usrRepo user.Repository
	crsRepo course.Repository
	enrRepo enroll.Repository
	usrSvc  user.Service
	enrSvc  enroll.Service
}

func setup(t *testing.T) *testApp {
	t.Helper()

	emailsvc.ClearSentMessages()

	// set up DB & repos
	db := dummydb.Open()
	usrRepo := dummydb.NewUserRepository(db)
	crsRepo := dummydb.NewCourseRepository(db)
	enrRepo := dummydb.NewEnrollRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(conf, usrRepo, mailSvc, logger)
	enrSvc := enroll.NewServiceMock(conf, enrRepo, crsRepo, mailSvc, logger)
	crsSvc := course.NewService(crsRepo, enrSvc, logger)

	// set up server
	server := NewServer(
		ServerDeps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			CourseSvc:      crsSvc,
			EnrollSvc:      enrSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)

	return &testApp{
		server:  server,
		usrRepo: usrRepo,
		crsRepo: crsRepo,
		enrRepo: enrRepo,
		usrSvc:  usrSvc,
		enrSvc:  enrSvc,
	}
}

// Fixture helpers

func createUser(t *testing.T, app *testApp, email, fullName, pwd, role string, confirmed bool) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Email:          email,
		Role:           role,
		EmailConfirmed: confirmed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if fullName != "" {
		usr.FullName.SetValid(fullName)
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword(): %v", err)
	}
	usr, err := app.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func createCourse(t *testing.T, app *testApp, title, status string, price float64) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := app.crsRepo.CreateCourse(context.Background(), course.Course{
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

func createLesson(t *testing.T, app *testApp, courseID, title string, order int) course.Lesson {
	t.Helper()

	now := time.Now().UTC()
	lsn, err := app.crsRepo.CreateLesson(context.Background(), course.Lesson{
		CourseID:    courseID,
		Title:       title,
		LessonOrder: order,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateLesson(): %v", err)
	}
	return lsn
}

func createEnrollment(t *testing.T, app *testApp, usr user.User, crs course.Course, paid bool) enroll.Enrollment {
	t.Helper()

	ctx := context.Background()
	if err := app.enrSvc.EnsureEnrollment(ctx, usr.ID, crs.ID); err != nil {
		t.Fatalf("EnsureEnrollment(): %v", err)
	}
	enrollments, err := app.enrRepo.QueryEnrollmentsByUserID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("QueryEnrollmentsByUserID(): %v", err)
	}
	for _, enr := range enrollments {
		if enr.CourseID != crs.ID {
			continue
		}
		if paid {
			enr.PaymentStatus = enroll.PaymentPaid
			enr.PaymentID.SetValid("pay_test")
			if enr, err = app.enrRepo.UpdateEnrollment(ctx, enr); err != nil {
				t.Fatalf("UpdateEnrollment(): %v", err)
			}
		}
		return enr
	}
	t.Fatal("enrollment not found after EnsureEnrollment()")
	return enroll.Enrollment{}
}

// HTTP helpers

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()

	claims := GetUserClaims(conf, usr)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
