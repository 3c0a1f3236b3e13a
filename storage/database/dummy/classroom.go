package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/classroom"
	"github.com/mwalimu/shule/core/course"
)

type classroomRepository struct {
	db *classroomTable
}

var (
	_ classroom.Repository   = (*classroomRepository)(nil) // interface compliance check
	_ course.OwnedRepository = (*classroomRepository)(nil)
)

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{db: db.classroom}
}

func (repo *classroomRepository) query() []classroom.Classroom {
	rooms := make([]classroom.Classroom, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		rooms = append(rooms, *c)
	}
	return rooms
}

func (repo *classroomRepository) CheckNameUniqueness(ctx context.Context, name string, excludedRooms []classroom.Classroom, exec ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclIDs := make([]string, 0, len(excludedRooms))
	for _, r := range excludedRooms {
		exclIDs = append(exclIDs, r.ID)
	}
	for _, room := range repo.query() {
		if room.Name == name && !isExcluded(room.ID, exclIDs) {
			return classroom.ErrNameExists
		}
	}
	return nil
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, room classroom.Classroom, exec ...core.DBExecutor) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// storage-level backstop for the one-classroom-per-course-per-student rule
	if err := repo.checkRosterConstraint(room); err != nil {
		return classroom.Classroom{}, err
	}

	room.ID = uuid.New().String()
	repo.db.table[room.ID] = &room
	return room, nil
}

func (repo *classroomRepository) QueryClassrooms(ctx context.Context, exec ...core.DBExecutor) ([]classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *classroomRepository) GetClassroom(ctx context.Context, id string, exec ...core.DBExecutor) (classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if room, ok := repo.db.table[id]; ok {
		return *room, nil
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryClassroomsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var rooms []classroom.Classroom
	for _, room := range repo.query() {
		if room.HasStudent(studentID) {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

func (repo *classroomRepository) UpdateClassroom(ctx context.Context, room classroom.Classroom, exec ...core.DBExecutor) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[room.ID]; !ok {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	if err := repo.checkRosterConstraint(room); err != nil {
		return classroom.Classroom{}, err
	}
	repo.db.table[room.ID] = &room
	return room, nil
}

func (repo *classroomRepository) DeleteClassroom(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	return nil
}

func (repo *classroomRepository) DeleteByCourseID(ctx context.Context, courseID string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, room := range repo.db.table {
		if room.CourseID == courseID {
			delete(repo.db.table, id)
		}
	}
	return nil
}

// checkRosterConstraint mimics the (course, student) unique index of the
// persistent store. Caller must hold the write lock.
func (repo *classroomRepository) checkRosterConstraint(room classroom.Classroom) error {
	for _, other := range repo.db.table {
		if other.ID == room.ID || other.CourseID != room.CourseID {
			continue
		}
		for _, studentID := range room.StudentIDs {
			if other.HasStudent(studentID) {
				return core.NewError(core.ConstraintViolation,
					"duplicate field value entered: course, students", room.CourseID, studentID)
			}
		}
	}
	return nil
}
