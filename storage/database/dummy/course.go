package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	courses *courseTable
	lessons *lessonTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{courses: db.course, lessons: db.lesson}
}

func (repo *courseRepository) query(publishedOnly bool) []course.Course {
	courses := make([]course.Course, 0, len(repo.courses.table))
	for _, c := range repo.courses.table {
		if publishedOnly && !c.IsPublished() {
			continue
		}
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.courses.Lock()
	defer repo.courses.Unlock()

	crs.ID = uuid.New().String()
	repo.courses.table[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()
	return repo.query(false), nil
}

func (repo *courseRepository) QueryPublishedCourses(ctx context.Context) ([]course.Course, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()
	return repo.query(true), nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()

	if crs, ok := repo.courses.table[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.lessons.Lock()
	defer repo.lessons.Unlock()

	lsn.ID = uuid.New().String()
	repo.lessons.table[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *courseRepository) QueryLessonsByCourseID(ctx context.Context, courseID string) ([]course.Lesson, error) {
	repo.lessons.RLock()
	defer repo.lessons.RUnlock()

	lessons := make([]course.Lesson, 0)
	for _, l := range repo.lessons.table {
		if l.CourseID == courseID {
			lessons = append(lessons, *l)
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].LessonOrder != lessons[j].LessonOrder {
			return lessons[i].LessonOrder < lessons[j].LessonOrder
		}
		return lessons[i].CreatedAt.Before(lessons[j].CreatedAt)
	})
	return lessons, nil
}
