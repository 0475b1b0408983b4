package dummydb

import (
	"sync"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/user"
)

// in-memory store emulating the postgres constraints the services rely on:
// unique user email, unique (user, course) application and enrollment,
// (user, lesson) keyed progress upsert.
type (
	DB struct {
		user        *userTable
		course      *courseTable
		lesson      *lessonTable
		application *applicationTable
		enrollment  *enrollmentTable
		progress    *progressTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	lessonTable struct {
		sync.RWMutex
		table map[string]*course.Lesson
	}

	applicationTable struct {
		sync.RWMutex
		table map[string]*enroll.Application
	}

	enrollmentTable struct {
		sync.RWMutex
		table map[string]*enroll.Enrollment
	}

	progressTable struct {
		sync.RWMutex
		table map[string]*enroll.LessonProgress // keyed user_id|lesson_id
	}
)

func Open() *DB {
	return &DB{
		user:        &userTable{table: make(map[string]*user.User)},
		course:      &courseTable{table: make(map[string]*course.Course)},
		lesson:      &lessonTable{table: make(map[string]*course.Lesson)},
		application: &applicationTable{table: make(map[string]*enroll.Application)},
		enrollment:  &enrollmentTable{table: make(map[string]*enroll.Enrollment)},
		progress:    &progressTable{table: make(map[string]*enroll.LessonProgress)},
	}
}
