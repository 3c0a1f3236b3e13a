package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core"
)

var (
	// errors
	ErrNotFound   = errors.New("course not found")
	ErrCodeExists = errors.New("a course with this code already exists")
)

type (
	Repository interface {
		CheckCourseCodeUniqueness(ctx context.Context, code string, excludedCourses []Course, exec ...core.DBExecutor) error
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, exec ...core.DBExecutor) ([]Course, error)
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// OwnedRepository removes the entities a course owns, directly or
	// transitively. Implemented by the test, classroom and question
	// repositories; course deletion runs them in that order so dependents
	// always go first.
	OwnedRepository interface {
		DeleteByCourseID(ctx context.Context, courseID string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		CheckCourseCodeUniqueness(code string, exclCourses ...Course) error
		Create(ctx context.Context, nc NewCourse) (Course, error)
		QueryAll(ctx context.Context) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		db       core.DB
		repo     Repository
		cascades []OwnedRepository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, cascades ...OwnedRepository) *service {
	return &service{db: db, repo: repo, cascades: cascades}
}

func (svc *service) CheckCourseCodeUniqueness(code string, exclCourses ...Course) error {
	err := svc.repo.CheckCourseCodeUniqueness(context.Background(), code, exclCourses)
	if err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "course_code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	crs := Course{
		Name:       nc.Name,
		CourseCode: nc.CourseCode,
		CourseLoad: nc.CourseLoad,
		CreatedAt:  time.Now().UTC(),
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) QueryAll(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryCourses(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}

	crs := Course{
		ID:         id,
		Name:       uc.Name,
		CourseCode: uc.CourseCode,
		CourseLoad: orig.CourseLoad,
		CreatedAt:  orig.CreatedAt,
	}
	if uc.CourseLoad != nil {
		crs.CourseLoad = *uc.CourseLoad
	}
	return svc.repo.UpdateCourse(ctx, crs)
}

// Delete removes a course and everything it owns (tests first, then
// classrooms and questions) in one transaction.
func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetCourse(ctx, id); err != nil {
		return err
	}
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for _, cascade := range svc.cascades {
			if err := cascade.DeleteByCourseID(ctx, id, tx); err != nil {
				return errors.Wrap(err, "cascading course delete")
			}
		}
		return svc.repo.DeleteCourse(ctx, id, tx)
	})
}
