package question

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/course"
)

var (
	// errors
	ErrNotFound   = errors.New("question not found")
	ErrTextExists = errors.New("a question with this text already exists for this course")
)

type (
	Repository interface {
		CheckTextUniqueness(ctx context.Context, courseID, text string, excludedQuestions []Question, exec ...core.DBExecutor) error
		CreateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)
		QueryQuestions(ctx context.Context, exec ...core.DBExecutor) ([]Question, error)
		GetQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (Question, error)
		UpdateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)
		DeleteQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// TestRepository is the reverse lookup into the exam storage used for the
	// lifecycle lock: a question referenced by any test is frozen.
	TestRepository interface {
		CountTestsByQuestionID(ctx context.Context, questionID string, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, nq NewQuestion) (Question, error)
		QueryAll(ctx context.Context) ([]Question, error)
		GetByID(ctx context.Context, id string) (Question, error)
		Update(ctx context.Context, id string, uq UpdateQuestion) (Question, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		db       core.DB
		repo     Repository
		crsRepo  course.Repository
		testRepo TestRepository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, crsRepo course.Repository, testRepo TestRepository) *service {
	return &service{db: db, repo: repo, crsRepo: crsRepo, testRepo: testRepo}
}

func (svc *service) checkCourse(ctx context.Context, exec core.DBExecutor, courseID string) error {
	if _, err := svc.crsRepo.GetCourse(ctx, courseID, exec); err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return core.NewError(core.NotFound, fmt.Sprintf("course not found with id: %s", courseID), courseID)
		}
		return errors.Wrap(err, "finding course")
	}
	return nil
}

// checkMutable fails with Locked if the question is referenced by any test.
func (svc *service) checkMutable(ctx context.Context, exec core.DBExecutor, questionID string) error {
	n, err := svc.testRepo.CountTestsByQuestionID(ctx, questionID, exec)
	if err != nil {
		return errors.Wrap(err, "counting referencing tests")
	}
	if n > 0 {
		return core.NewError(core.Locked,
			fmt.Sprintf("question %s was already used in a test, it cannot be changed", questionID), questionID)
	}
	return nil
}

func (svc *service) checkTextUniqueness(ctx context.Context, exec core.DBExecutor, courseID, text string, excl ...Question) error {
	err := svc.repo.CheckTextUniqueness(ctx, courseID, text, excl, exec)
	if err != nil {
		if errors.Cause(err) == ErrTextExists {
			return core.NewValidationError(err, core.FieldError{Field: "text", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nq NewQuestion) (Question, error) {
	var q Question
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkCourse(ctx, tx, nq.CourseID); err != nil {
			return err
		}
		if err := svc.checkTextUniqueness(ctx, tx, nq.CourseID, nq.Text); err != nil {
			return err
		}

		var err error
		q, err = svc.repo.CreateQuestion(ctx, Question{
			Text:      nq.Text,
			CourseID:  nq.CourseID,
			Photo:     nq.Photo,
			Answers:   buildAnswers(nq.Answers),
			CreatedAt: time.Now().UTC(),
		}, tx)
		return err
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Question, error) {
	return svc.repo.QueryQuestions(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Question, error) {
	return svc.repo.GetQuestion(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uq UpdateQuestion) (Question, error) {
	var q Question
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetQuestion(ctx, id, tx)
		if err != nil {
			return err
		}
		if err = svc.checkMutable(ctx, tx, id); err != nil {
			return err
		}
		if uq.CourseID != orig.CourseID {
			if err = svc.checkCourse(ctx, tx, uq.CourseID); err != nil {
				return err
			}
		}
		if err = svc.checkTextUniqueness(ctx, tx, uq.CourseID, uq.Text, orig); err != nil {
			return err
		}

		answers := orig.Answers
		if uq.Answers != nil {
			answers = buildAnswers(uq.Answers)
		}
		q, err = svc.repo.UpdateQuestion(ctx, Question{
			ID:        id,
			Text:      uq.Text,
			CourseID:  uq.CourseID,
			Photo:     uq.Photo,
			Answers:   answers,
			CreatedAt: orig.CreatedAt,
		}, tx)
		return err
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetQuestion(ctx, id, tx); err != nil {
			return err
		}
		if err := svc.checkMutable(ctx, tx, id); err != nil {
			return err
		}
		return svc.repo.DeleteQuestion(ctx, id, tx)
	})
}

// buildAnswers mints option ids so chosen answers can be validated against
// them without extra storage round-trips.
func buildAnswers(answers []NewAnswer) []Answer {
	out := make([]Answer, 0, len(answers))
	for _, a := range answers {
		out = append(out, Answer{
			ID:      uuid.New().String(),
			Text:    a.Text,
			Correct: a.Correct != nil && *a.Correct,
		})
	}
	return out
}
