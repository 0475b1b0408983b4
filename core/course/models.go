package course

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Course statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

type Course struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description null.String `json:"description"`
	Price       float64     `json:"price"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

func (c *Course) IsPublished() bool { return c.Status == StatusPublished }

type Lesson struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	LessonOrder int       `json:"lesson_order"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Status      string  `json:"status" validate:"omitempty,oneof=draft published"`
}

func (nc *NewCourse) Validate(ctx context.Context) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Status = core.CleanString(nc.Status, true /* lower */)
	return validate.StructCtx(ctx, nc)
}

// NewLesson contains information needed to attach a new Lesson to a Course.
type NewLesson struct {
	Title       string `json:"title" validate:"required"`
	Content     string `json:"content"`
	LessonOrder int    `json:"lesson_order" validate:"gte=0"`
}

func (nl *NewLesson) Validate(ctx context.Context) error {
	nl.Title = core.CleanString(nl.Title)
	return validate.StructCtx(ctx, nl)
}
