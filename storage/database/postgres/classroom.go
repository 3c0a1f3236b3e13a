package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/classroom"
	"github.com/mwalimu/shule/core/course"
)

type classroomRepository struct {
	exec core.DBExecutor
}

var (
	_ classroom.Repository   = (*classroomRepository)(nil) // interface compliance check
	_ course.OwnedRepository = (*classroomRepository)(nil)
)

func NewClassroomRepository(exec core.DBExecutor) *classroomRepository {
	return &classroomRepository{exec: exec}
}

type classroomRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Capacity  int       `db:"capacity"`
	CourseID  string    `db:"course_id"`
	TeacherID string    `db:"teacher_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r classroomRow) classroom(studentIDs []string) classroom.Classroom {
	return classroom.Classroom{
		ID:         r.ID,
		Name:       r.Name,
		Capacity:   r.Capacity,
		CourseID:   r.CourseID,
		TeacherID:  r.TeacherID,
		StudentIDs: studentIDs,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func newClassroomRow(room classroom.Classroom) classroomRow {
	return classroomRow{
		ID:        room.ID,
		Name:      room.Name,
		Capacity:  room.Capacity,
		CourseID:  room.CourseID,
		TeacherID: room.TeacherID,
		CreatedAt: room.CreatedAt.UTC(),
		UpdatedAt: room.UpdatedAt.UTC(),
	}
}

func (repo classroomRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return classroom.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// queryRosters loads the ordered student IDs of the given classrooms.
func (repo classroomRepository) queryRosters(ctx context.Context, db core.DBExecutor, roomIDs []string) (map[string][]string, error) {
	var rows []struct {
		ClassroomID string `db:"classroom_id"`
		StudentID   string `db:"student_id"`
	}
	q := `SELECT classroom_id, student_id FROM classroom_student WHERE classroom_id = ANY($1) ORDER BY position`
	if err := db.SelectContext(ctx, &rows, q, pq.Array(roomIDs)); err != nil {
		return nil, errors.Wrap(err, "querying rosters")
	}

	rosters := make(map[string][]string, len(roomIDs))
	for _, r := range rows {
		rosters[r.ClassroomID] = append(rosters[r.ClassroomID], r.StudentID)
	}
	return rosters, nil
}

// saveRoster replaces the classroom's roster rows. The (course_id, student_id)
// unique index backstops the one-classroom-per-course-per-student rule.
func (repo classroomRepository) saveRoster(ctx context.Context, db core.DBExecutor, room classroom.Classroom) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM classroom_student WHERE classroom_id = $1`, room.ID); err != nil {
		return errors.Wrap(err, "clearing roster")
	}

	q := `INSERT INTO classroom_student (classroom_id, course_id, student_id, position) VALUES ($1, $2, $3, $4)`
	for i, studentID := range room.StudentIDs {
		if _, err := db.ExecContext(ctx, q, room.ID, room.CourseID, studentID, i); err != nil {
			if isUniqueViolation(err) {
				return constraintErr("course, students")
			}
			return errors.Wrap(err, "saving roster")
		}
	}
	return nil
}

func (repo classroomRepository) CheckNameUniqueness(ctx context.Context, name string, excludedRooms []classroom.Classroom, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedRooms))
	for _, r := range excludedRooms {
		ids = append(ids, r.ID)
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM classroom WHERE name = $1 AND NOT (id = ANY($2)))`
	if err := getExec(repo.exec, exec).GetContext(ctx, &exists, q, name, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking classroom name uniqueness")
	}
	if exists {
		return classroom.ErrNameExists
	}
	return nil
}

func (repo classroomRepository) CreateClassroom(ctx context.Context, room classroom.Classroom, exec ...core.DBExecutor) (classroom.Classroom, error) {
	db := getExec(repo.exec, exec)

	room.ID = uuid.New().String()
	row := newClassroomRow(room)

	q := `INSERT INTO classroom (id, name, capacity, course_id, teacher_id, created_at, updated_at)
		VALUES (:id, :name, :capacity, :course_id, :teacher_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, db, q, row); err != nil {
		if isUniqueViolation(err) {
			return classroom.Classroom{}, constraintErr("name")
		}
		return classroom.Classroom{}, errors.Wrap(err, "inserting classroom")
	}
	if err := repo.saveRoster(ctx, db, room); err != nil {
		return classroom.Classroom{}, err
	}
	return row.classroom(room.StudentIDs), nil
}

func (repo classroomRepository) QueryClassrooms(ctx context.Context, exec ...core.DBExecutor) ([]classroom.Classroom, error) {
	db := getExec(repo.exec, exec)

	var rows []classroomRow
	q := `SELECT * FROM classroom ORDER BY created_at`
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}

	roomIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		roomIDs = append(roomIDs, r.ID)
	}
	rosters, err := repo.queryRosters(ctx, db, roomIDs)
	if err != nil {
		return nil, err
	}

	rooms := make([]classroom.Classroom, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, r.classroom(rosters[r.ID]))
	}
	return rooms, nil
}

func (repo classroomRepository) GetClassroom(ctx context.Context, id string, exec ...core.DBExecutor) (classroom.Classroom, error) {
	db := getExec(repo.exec, exec)

	var row classroomRow
	q := `SELECT * FROM classroom WHERE id = $1`
	if err := db.GetContext(ctx, &row, q, id); err != nil {
		return classroom.Classroom{}, repo.trapNoRowsErr(err, "getting classroom")
	}

	rosters, err := repo.queryRosters(ctx, db, []string{id})
	if err != nil {
		return classroom.Classroom{}, err
	}
	return row.classroom(rosters[id]), nil
}

func (repo classroomRepository) QueryClassroomsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]classroom.Classroom, error) {
	db := getExec(repo.exec, exec)

	var rows []classroomRow
	q := `SELECT c.* FROM classroom c
		JOIN classroom_student cs ON cs.classroom_id = c.id
		WHERE cs.student_id = $1
		ORDER BY c.created_at`
	if err := db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying classrooms by student")
	}

	roomIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		roomIDs = append(roomIDs, r.ID)
	}
	rosters, err := repo.queryRosters(ctx, db, roomIDs)
	if err != nil {
		return nil, err
	}

	rooms := make([]classroom.Classroom, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, r.classroom(rosters[r.ID]))
	}
	return rooms, nil
}

func (repo classroomRepository) UpdateClassroom(ctx context.Context, room classroom.Classroom, exec ...core.DBExecutor) (classroom.Classroom, error) {
	db := getExec(repo.exec, exec)

	row := newClassroomRow(room)
	q := `UPDATE classroom SET name = :name, capacity = :capacity, course_id = :course_id,
		teacher_id = :teacher_id, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, db, q, row)
	if err != nil {
		if isUniqueViolation(err) {
			return classroom.Classroom{}, constraintErr("name")
		}
		return classroom.Classroom{}, errors.Wrap(err, "updating classroom")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return classroom.Classroom{}, classroom.ErrNotFound
	}

	if err = repo.saveRoster(ctx, db, room); err != nil {
		return classroom.Classroom{}, err
	}
	return row.classroom(room.StudentIDs), nil
}

func (repo classroomRepository) DeleteClassroom(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM classroom WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return nil
}

func (repo classroomRepository) DeleteByCourseID(ctx context.Context, courseID string, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM classroom WHERE course_id = $1`, courseID); err != nil {
		return errors.Wrap(err, "deleting course classrooms")
	}
	return nil
}
