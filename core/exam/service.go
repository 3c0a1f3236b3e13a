package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/classroom"
	"github.com/mwalimu/shule/core/question"
	"github.com/mwalimu/shule/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("test not found")
	ErrTitleExists = errors.New("a test with this title already exists for this classroom")
)

type (
	Repository interface {
		CheckTitleUniqueness(ctx context.Context, title, classroomID string, excludedTests []Test, exec ...core.DBExecutor) error
		CreateTest(ctx context.Context, t Test, exec ...core.DBExecutor) (Test, error)
		QueryTests(ctx context.Context, exec ...core.DBExecutor) ([]Test, error)
		GetTest(ctx context.Context, id string, exec ...core.DBExecutor) (Test, error)
		UpdateTest(ctx context.Context, t Test, exec ...core.DBExecutor) (Test, error)
		DeleteTest(ctx context.Context, id string, exec ...core.DBExecutor) error
		// AppendSubmission records a student's submission; it is the only way
		// submissions enter storage and existing ones are never touched.
		AppendSubmission(ctx context.Context, testID string, sub Submission, exec ...core.DBExecutor) (Test, error)

		// reverse lookups & cascades consumed by the sibling domains
		CountTestsByQuestionID(ctx context.Context, questionID string, exec ...core.DBExecutor) (int, error)
		DeleteTestsByClassroomID(ctx context.Context, classroomID string, exec ...core.DBExecutor) error
		DeleteByCourseID(ctx context.Context, courseID string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, nt NewTest) (Test, error)
		QueryAll(ctx context.Context) ([]Test, error)
		GetByID(ctx context.Context, id string) (Test, error)
		Update(ctx context.Context, id string, ut UpdateTest) (Test, error)
		Delete(ctx context.Context, id string) error
		Submit(ctx context.Context, testID string, ns NewSubmission) (Submission, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		clsRepo classroom.Repository
		qstRepo question.Repository
		usrRepo user.Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, clsRepo classroom.Repository, qstRepo question.Repository, usrRepo user.Repository) *service {
	return &service{db: db, repo: repo, clsRepo: clsRepo, qstRepo: qstRepo, usrRepo: usrRepo}
}

// validateComposition enforces that a test's classroom and question set are
// mutually consistent: the classroom resolves, the deduplicated question set
// is non-empty, every question resolves and belongs to the classroom's
// course. It returns the resolved classroom and the deduplicated question
// ids, input order preserved.
func (svc *service) validateComposition(ctx context.Context, exec core.DBExecutor, classroomID string, questionIDs []string) (classroom.Classroom, []string, error) {
	if classroomID == "" {
		return classroom.Classroom{}, nil, core.NewError(core.MissingField, "please add a classroom")
	}
	room, err := svc.clsRepo.GetClassroom(ctx, classroomID, exec)
	if err != nil {
		if errors.Cause(err) == classroom.ErrNotFound {
			return classroom.Classroom{}, nil, core.NewError(core.NotFound,
				fmt.Sprintf("classroom not found with id: %s", classroomID), classroomID)
		}
		return classroom.Classroom{}, nil, errors.Wrap(err, "finding classroom")
	}

	questions := dedupIDs(questionIDs)
	if len(questions) == 0 {
		return classroom.Classroom{}, nil, core.NewError(core.MissingField, "a test must have at least one question")
	}

	for _, questionID := range questions {
		q, err := svc.qstRepo.GetQuestion(ctx, questionID, exec)
		if err != nil {
			if errors.Cause(err) == question.ErrNotFound {
				return classroom.Classroom{}, nil, core.NewError(core.NotFound,
					fmt.Sprintf("question not found with id: %s", questionID), questionID)
			}
			return classroom.Classroom{}, nil, errors.Wrap(err, "finding question")
		}
		if q.CourseID != room.CourseID {
			return classroom.Classroom{}, nil, core.NewError(core.CourseMismatch,
				fmt.Sprintf("question %s must have the same course as the test's classroom: %s", questionID, room.CourseID),
				questionID, room.CourseID)
		}
	}

	return room, questions, nil
}

// checkMutable fails with Locked once any student has submitted the test.
func (svc *service) checkMutable(t Test) error {
	if len(t.Submissions) > 0 {
		return core.NewError(core.Locked,
			fmt.Sprintf("test %s already has submissions, it cannot be changed", t.ID), t.ID)
	}
	return nil
}

func (svc *service) checkTitleUniqueness(ctx context.Context, exec core.DBExecutor, title, classroomID string, excl ...Test) error {
	err := svc.repo.CheckTitleUniqueness(ctx, title, classroomID, excl, exec)
	if err != nil {
		if errors.Cause(err) == ErrTitleExists {
			return core.NewValidationError(err, core.FieldError{Field: "title", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nt NewTest) (Test, error) {
	var t Test
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		_, questions, err := svc.validateComposition(ctx, tx, nt.ClassroomID, nt.QuestionIDs)
		if err != nil {
			return err
		}
		if err = svc.checkTitleUniqueness(ctx, tx, nt.Title, nt.ClassroomID); err != nil {
			return err
		}

		now := time.Now().UTC()
		t, err = svc.repo.CreateTest(ctx, Test{
			Title:       nt.Title,
			ClassroomID: nt.ClassroomID,
			QuestionIDs: questions,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, tx)
		return err
	})
	if err != nil {
		return Test{}, err
	}
	return t, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Test, error) {
	return svc.repo.QueryTests(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Test, error) {
	return svc.repo.GetTest(ctx, id)
}

// Update re-validates the resulting composition before checking mutability;
// both must pass.
func (svc *service) Update(ctx context.Context, id string, ut UpdateTest) (Test, error) {
	var t Test
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetTest(ctx, id, tx)
		if err != nil {
			return err
		}

		classroomID := orig.ClassroomID
		if ut.ClassroomID != "" {
			classroomID = ut.ClassroomID
		}
		questionIDs := orig.QuestionIDs
		if ut.QuestionIDs != nil {
			questionIDs = *ut.QuestionIDs
		}

		_, questions, err := svc.validateComposition(ctx, tx, classroomID, questionIDs)
		if err != nil {
			return err
		}
		if err = svc.checkMutable(orig); err != nil {
			return err
		}
		if err = svc.checkTitleUniqueness(ctx, tx, ut.Title, classroomID, orig); err != nil {
			return err
		}

		t, err = svc.repo.UpdateTest(ctx, Test{
			ID:          id,
			Title:       ut.Title,
			ClassroomID: classroomID,
			QuestionIDs: questions,
			Submissions: orig.Submissions,
			CreatedAt:   orig.CreatedAt,
			UpdatedAt:   time.Now().UTC(),
		}, tx)
		return err
	})
	if err != nil {
		return Test{}, err
	}
	return t, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		t, err := svc.repo.GetTest(ctx, id, tx)
		if err != nil {
			return err
		}
		if err = svc.checkMutable(t); err != nil {
			return err
		}
		return svc.repo.DeleteTest(ctx, id, tx)
	})
}

// dedupIDs removes duplicate ids, keeping the first occurrence of each.
func dedupIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
