package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/course"
	"github.com/mwalimu/shule/core/question"
)

type questionRepository struct {
	db *questionTable
}

var (
	_ question.Repository    = (*questionRepository)(nil) // interface compliance check
	_ course.OwnedRepository = (*questionRepository)(nil)
)

func NewQuestionRepository(db *DB) *questionRepository {
	return &questionRepository{db: db.question}
}

func (repo *questionRepository) query() []question.Question {
	questions := make([]question.Question, 0, len(repo.db.table))
	for _, q := range repo.db.table {
		questions = append(questions, *q)
	}
	return questions
}

func (repo *questionRepository) CheckTextUniqueness(ctx context.Context, courseID, text string, excludedQuestions []question.Question, exec ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclIDs := make([]string, 0, len(excludedQuestions))
	for _, q := range excludedQuestions {
		exclIDs = append(exclIDs, q.ID)
	}
	for _, q := range repo.query() {
		if q.CourseID == courseID && q.Text == text && !isExcluded(q.ID, exclIDs) {
			return question.ErrTextExists
		}
	}
	return nil
}

func (repo *questionRepository) CreateQuestion(ctx context.Context, q question.Question, exec ...core.DBExecutor) (question.Question, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	q.ID = uuid.New().String()
	repo.db.table[q.ID] = &q
	return q, nil
}

func (repo *questionRepository) QueryQuestions(ctx context.Context, exec ...core.DBExecutor) ([]question.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *questionRepository) GetQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (question.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if q, ok := repo.db.table[id]; ok {
		return *q, nil
	}
	return question.Question{}, question.ErrNotFound
}

func (repo *questionRepository) UpdateQuestion(ctx context.Context, q question.Question, exec ...core.DBExecutor) (question.Question, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[q.ID]; !ok {
		return question.Question{}, question.ErrNotFound
	}
	repo.db.table[q.ID] = &q
	return q, nil
}

func (repo *questionRepository) DeleteQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	return nil
}

func (repo *questionRepository) DeleteByCourseID(ctx context.Context, courseID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, q := range repo.db.table {
		if q.CourseID == courseID {
			delete(repo.db.table, id)
		}
	}
	return nil
}
