package classroom

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/course"
	"github.com/mwalimu/shule/core/user"
)

var (
	// errors
	ErrNotFound   = errors.New("classroom not found")
	ErrNameExists = errors.New("a classroom with this name already exists")
)

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name string, excludedRooms []Classroom, exec ...core.DBExecutor) error
		CreateClassroom(ctx context.Context, room Classroom, exec ...core.DBExecutor) (Classroom, error)
		QueryClassrooms(ctx context.Context, exec ...core.DBExecutor) ([]Classroom, error)
		GetClassroom(ctx context.Context, id string, exec ...core.DBExecutor) (Classroom, error)
		// QueryClassroomsByStudent returns every classroom the student is
		// enrolled in, across all courses.
		QueryClassroomsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Classroom, error)
		UpdateClassroom(ctx context.Context, room Classroom, exec ...core.DBExecutor) (Classroom, error)
		DeleteClassroom(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// TestRepository is the slice of the exam storage the classroom service
	// needs to cascade deletes.
	TestRepository interface {
		DeleteTestsByClassroomID(ctx context.Context, classroomID string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		CheckNameUniqueness(name string, exclRooms ...Classroom) error
		Create(ctx context.Context, nc NewClassroom) (Classroom, error)
		QueryAll(ctx context.Context) ([]Classroom, error)
		GetByID(ctx context.Context, id string) (Classroom, error)
		Update(ctx context.Context, id string, uc UpdateClassroom) (Classroom, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		db       core.DB
		repo     Repository
		usrRepo  user.Repository
		crsRepo  course.Repository
		testRepo TestRepository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, usrRepo user.Repository, crsRepo course.Repository, testRepo TestRepository) *service {
	return &service{db: db, repo: repo, usrRepo: usrRepo, crsRepo: crsRepo, testRepo: testRepo}
}

func (svc *service) CheckNameUniqueness(name string, exclRooms ...Classroom) error {
	err := svc.repo.CheckNameUniqueness(context.Background(), name, exclRooms)
	if err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

// rosterInput gathers everything roster validation needs. classroomID is
// empty on create; requestedCapacity nil means "not provided".
type rosterInput struct {
	courseID          string
	classroomID       string
	teacherID         string
	requestedCapacity *int
	currentCapacity   *int
	studentIDs        []string
}

// validateRoster enforces the classroom rostering rules:
// teacher resolves with role 'teacher'; the effective capacity (requested,
// else current, else DefaultCapacity) bounds the deduplicated roster; every
// student resolves with role 'student' and is not enrolled in another
// classroom of the same course. It returns the deduplicated roster (input
// order preserved) and the effective capacity. Pure validation; nothing is
// persisted here.
func (svc *service) validateRoster(ctx context.Context, exec core.DBExecutor, in rosterInput) ([]string, int, error) {
	// teacher check
	if in.teacherID == "" {
		return nil, 0, core.NewError(core.MissingField, "please add a teacher")
	}
	teacher, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: in.teacherID}, exec)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, 0, core.NewError(core.NotFound, fmt.Sprintf("teacher not found with id: %s", in.teacherID), in.teacherID)
		}
		return nil, 0, errors.Wrap(err, "finding teacher")
	}
	if !teacher.IsTeacher() {
		return nil, 0, core.NewError(core.InvalidRole,
			fmt.Sprintf("classrooms require a teacher with role '%s', id %s does not have it", user.RoleTeacher, in.teacherID),
			in.teacherID)
	}

	// removing duplicates, input order preserved
	students := dedupIDs(in.studentIDs)

	// capacity resolution: requested wins, even when 0
	capacity := DefaultCapacity
	if in.requestedCapacity != nil {
		capacity = *in.requestedCapacity
	} else if in.currentCapacity != nil {
		capacity = *in.currentCapacity
	}
	if len(students) > capacity {
		return nil, 0, core.NewError(core.CapacityExceeded,
			fmt.Sprintf("limit of %d students, got %d", capacity, len(students)))
	}

	for _, studentID := range students {
		student, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: studentID}, exec)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return nil, 0, core.NewError(core.NotFound, fmt.Sprintf("student not found with id: %s", studentID), studentID)
			}
			return nil, 0, errors.Wrap(err, "finding student")
		}
		if !student.IsStudent() {
			return nil, 0, core.NewError(core.InvalidRole,
				fmt.Sprintf("students need to have role '%s', id %s does not", user.RoleStudent, studentID),
				studentID)
		}

		// a student joins at most one classroom per course, system-wide
		rooms, err := svc.repo.QueryClassroomsByStudent(ctx, studentID, exec)
		if err != nil {
			return nil, 0, errors.Wrap(err, "querying student memberships")
		}
		for _, room := range rooms {
			if room.ID == in.classroomID {
				continue // the classroom being updated
			}
			if room.CourseID == in.courseID {
				return nil, 0, core.NewError(core.AlreadyEnrolled,
					fmt.Sprintf("student %s is already enrolled in a classroom of course %s", studentID, in.courseID),
					studentID, in.courseID)
			}
		}
	}

	return students, capacity, nil
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

func (svc *service) Create(ctx context.Context, nc NewClassroom) (Classroom, error) {
	var room Classroom
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkCourse(ctx, tx, nc.CourseID); err != nil {
			return err
		}

		students, capacity, err := svc.validateRoster(ctx, tx, rosterInput{
			courseID:          nc.CourseID,
			teacherID:         nc.TeacherID,
			requestedCapacity: nc.Capacity,
			studentIDs:        nc.StudentIDs,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		room, err = svc.repo.CreateClassroom(ctx, Classroom{
			Name:       nc.Name,
			Capacity:   capacity,
			CourseID:   nc.CourseID,
			TeacherID:  nc.TeacherID,
			StudentIDs: students,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, tx)
		return err
	})
	if err != nil {
		return Classroom{}, err
	}
	return room, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Classroom, error) {
	return svc.repo.QueryClassrooms(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Classroom, error) {
	return svc.repo.GetClassroom(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClassroom) (Classroom, error) {
	var room Classroom
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		orig, err := svc.repo.GetClassroom(ctx, id, tx)
		if err != nil {
			return err
		}

		courseID := orig.CourseID
		if uc.CourseID != "" {
			if err = svc.checkCourse(ctx, tx, uc.CourseID); err != nil {
				return err
			}
			courseID = uc.CourseID
		}

		teacherID := orig.TeacherID
		if uc.TeacherID != "" {
			teacherID = uc.TeacherID
		}

		studentIDs := orig.StudentIDs
		if uc.StudentIDs != nil {
			studentIDs = *uc.StudentIDs
		}

		curCapacity := orig.Capacity
		students, capacity, err := svc.validateRoster(ctx, tx, rosterInput{
			courseID:          courseID,
			classroomID:       id,
			teacherID:         teacherID,
			requestedCapacity: uc.Capacity,
			currentCapacity:   &curCapacity,
			studentIDs:        studentIDs,
		})
		if err != nil {
			return err
		}

		room, err = svc.repo.UpdateClassroom(ctx, Classroom{
			ID:         id,
			Name:       uc.Name,
			Capacity:   capacity,
			CourseID:   courseID,
			TeacherID:  teacherID,
			StudentIDs: students,
			CreatedAt:  orig.CreatedAt,
			UpdatedAt:  time.Now().UTC(),
		}, tx)
		return err
	})
	if err != nil {
		return Classroom{}, err
	}
	return room, nil
}

// Delete removes a classroom and cascades deletion of the tests assigned to
// it, in one transaction.
func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetClassroom(ctx, id); err != nil {
		return err
	}
	return core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.testRepo.DeleteTestsByClassroomID(ctx, id, tx); err != nil {
			return errors.Wrap(err, "cascading classroom delete")
		}
		return svc.repo.DeleteClassroom(ctx, id, tx)
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
