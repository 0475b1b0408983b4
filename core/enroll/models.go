package enroll

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Application statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Enrollment payment statuses.
// PaymentFailed is part of the valid domain but no operation here drives it;
// a payment-processor webhook would.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// StudentInfo is the minimal student projection joined onto admin-facing
// application rows.
type StudentInfo struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	FullName null.String `json:"full_name"`
}

// CourseInfo is the minimal course projection joined onto application and
// enrollment rows.
type CourseInfo struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

type Application struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	CourseID   string      `json:"course_id"`
	Status     string      `json:"status"`
	Message    null.String `json:"message"`
	CreatedAt  time.Time   `json:"created_at"` // UTC
	ReviewedBy null.String `json:"reviewed_by,omitempty"`
	ReviewedAt null.Time   `json:"reviewed_at"`

	// projections; populated by queries, never persisted from here
	Student *StudentInfo `json:"student,omitempty"`
	Course  *CourseInfo  `json:"course,omitempty"`
}

func (a *Application) IsPending() bool { return a.Status == StatusPending }

type Enrollment struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	CourseID      string      `json:"course_id"`
	PaymentStatus string      `json:"payment_status"`
	PaymentID     null.String `json:"payment_id"`
	EnrolledAt    time.Time   `json:"enrolled_at"` // UTC

	Course *CourseInfo `json:"course,omitempty"`
}

func (e *Enrollment) IsPaid() bool { return e.PaymentStatus == PaymentPaid }

type LessonProgress struct {
	UserID      string    `json:"user_id"`
	LessonID    string    `json:"lesson_id"`
	CourseID    string    `json:"course_id"`
	Completed   bool      `json:"completed"`
	CompletedAt null.Time `json:"completed_at"`
}

// NewApplication contains information needed to apply for a course.
type NewApplication struct {
	CourseID string `json:"course_id" validate:"required"`
	Message  string `json:"message"`
}

func (na *NewApplication) Validate(ctx context.Context) error {
	na.CourseID = core.CleanString(na.CourseID)
	na.Message = core.CleanString(na.Message)
	return validate.StructCtx(ctx, na)
}

// ReviewApplication carries an admin's decision on a pending application.
type ReviewApplication struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
}

func (ra *ReviewApplication) Validate(ctx context.Context) error {
	ra.Decision = core.CleanString(ra.Decision, true /* lower */)
	return validate.StructCtx(ctx, ra)
}

// ConfirmPayment ties an opaque processor payment id to an enrollment.
// The payment id is trusted as proof of payment; verifying it against the
// processor's ledger is the payment collaborator's concern.
type ConfirmPayment struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	PaymentID    string `json:"payment_id" validate:"required"`
}

func (cp *ConfirmPayment) Validate(ctx context.Context) error {
	cp.EnrollmentID = core.CleanString(cp.EnrollmentID)
	cp.PaymentID = core.CleanString(cp.PaymentID)
	return validate.StructCtx(ctx, cp)
}

// SetProgress toggles a lesson's completion for the caller.
type SetProgress struct {
	LessonID  string `json:"lesson_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Completed bool   `json:"completed"`
}

func (sp *SetProgress) Validate(ctx context.Context) error {
	sp.LessonID = core.CleanString(sp.LessonID)
	sp.CourseID = core.CleanString(sp.CourseID)
	return validate.StructCtx(ctx, sp)
}

// ProgressFilter narrows progress queries. UserID only applies to admin
// callers; students always get their own rows.
type ProgressFilter struct {
	CourseID string `query:"course_id"`
	UserID   string `query:"user_id"`
}
