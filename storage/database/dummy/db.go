// Package dummydb provides mutex-guarded in-memory repositories used as the
// store double in tests.
package dummydb

import (
	"sync"

	"github.com/mwalimu/shule/core/classroom"
	"github.com/mwalimu/shule/core/course"
	"github.com/mwalimu/shule/core/exam"
	"github.com/mwalimu/shule/core/question"
	"github.com/mwalimu/shule/core/user"
)

type (
	DB struct {
		user      *userTable
		course    *courseTable
		classroom *classroomTable
		question  *questionTable
		test      *testTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	classroomTable struct {
		sync.RWMutex
		table map[string]*classroom.Classroom
	}

	questionTable struct {
		sync.RWMutex
		table map[string]*question.Question
	}

	testTable struct {
		sync.RWMutex
		table map[string]*exam.Test
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:      &userTable{table: make(map[string]*user.User)},
		course:    &courseTable{table: make(map[string]*course.Course)},
		classroom: &classroomTable{table: make(map[string]*classroom.Classroom)},
		question:  &questionTable{table: make(map[string]*question.Question)},
		test:      &testTable{table: make(map[string]*exam.Test)},
	}
	return db, nil
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.course.Lock()
	db.course.table = make(map[string]*course.Course)
	db.course.Unlock()

	db.classroom.Lock()
	db.classroom.table = make(map[string]*classroom.Classroom)
	db.classroom.Unlock()

	db.question.Lock()
	db.question.table = make(map[string]*question.Question)
	db.question.Unlock()

	db.test.Lock()
	db.test.table = make(map[string]*exam.Test)
	db.test.Unlock()
}
