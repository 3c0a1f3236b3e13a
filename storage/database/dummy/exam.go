package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/classroom"
	"github.com/mwalimu/shule/core/course"
	"github.com/mwalimu/shule/core/exam"
	"github.com/mwalimu/shule/core/question"
)

type testRepository struct {
	db *testTable
	// classrooms are needed to resolve which tests a course owns
	classrooms *classroomTable
}

var (
	_ exam.Repository          = (*testRepository)(nil) // interface compliance check
	_ classroom.TestRepository = (*testRepository)(nil)
	_ question.TestRepository  = (*testRepository)(nil)
	_ course.OwnedRepository   = (*testRepository)(nil)
)

func NewTestRepository(db *DB) *testRepository {
	return &testRepository{db: db.test, classrooms: db.classroom}
}

func (repo *testRepository) query() []exam.Test {
	tests := make([]exam.Test, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		tests = append(tests, *t)
	}
	return tests
}

func (repo *testRepository) CheckTitleUniqueness(ctx context.Context, title, classroomID string, excludedTests []exam.Test, exec ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclIDs := make([]string, 0, len(excludedTests))
	for _, t := range excludedTests {
		exclIDs = append(exclIDs, t.ID)
	}
	for _, t := range repo.query() {
		if t.Title == title && t.ClassroomID == classroomID && !isExcluded(t.ID, exclIDs) {
			return exam.ErrTitleExists
		}
	}
	return nil
}

func (repo *testRepository) CreateTest(ctx context.Context, t exam.Test, exec ...core.DBExecutor) (exam.Test, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t.ID = uuid.New().String()
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *testRepository) QueryTests(ctx context.Context, exec ...core.DBExecutor) ([]exam.Test, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *testRepository) GetTest(ctx context.Context, id string, exec ...core.DBExecutor) (exam.Test, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return *t, nil
	}
	return exam.Test{}, exam.ErrNotFound
}

func (repo *testRepository) UpdateTest(ctx context.Context, t exam.Test, exec ...core.DBExecutor) (exam.Test, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[t.ID]; !ok {
		return exam.Test{}, exam.ErrNotFound
	}
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *testRepository) DeleteTest(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	return nil
}

func (repo *testRepository) AppendSubmission(ctx context.Context, testID string, sub exam.Submission, exec ...core.DBExecutor) (exam.Test, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.table[testID]
	if !ok {
		return exam.Test{}, exam.ErrNotFound
	}
	// unique (test, student) backstop
	if t.HasSubmissionFrom(sub.StudentID) {
		return exam.Test{}, core.NewError(core.ConstraintViolation,
			"duplicate field value entered: test, student", testID, sub.StudentID)
	}
	t.Submissions = append(t.Submissions, sub)
	return *t, nil
}

func (repo *testRepository) CountTestsByQuestionID(ctx context.Context, questionID string, exec ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var n int
	for _, t := range repo.query() {
		if t.HasQuestion(questionID) {
			n++
		}
	}
	return n, nil
}

func (repo *testRepository) DeleteTestsByClassroomID(ctx context.Context, classroomID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, t := range repo.db.table {
		if t.ClassroomID == classroomID {
			delete(repo.db.table, id)
		}
	}
	return nil
}

func (repo *testRepository) DeleteByCourseID(ctx context.Context, courseID string, exec ...core.DBExecutor) error {
	repo.classrooms.RLock()
	roomIDs := make(map[string]struct{})
	for id, room := range repo.classrooms.table {
		if room.CourseID == courseID {
			roomIDs[id] = struct{}{}
		}
	}
	repo.classrooms.RUnlock()

	repo.db.Lock()
	defer repo.db.Unlock()
	for id, t := range repo.db.table {
		if _, ok := roomIDs[t.ClassroomID]; ok {
			delete(repo.db.table, id)
		}
	}
	return nil
}
