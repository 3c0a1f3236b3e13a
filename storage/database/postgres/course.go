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
	"github.com/mwalimu/shule/core/course"
)

type courseRepository struct {
	exec core.DBExecutor
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{exec: exec}
}

type courseRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	CourseCode string    `db:"course_code"`
	CourseLoad int       `db:"course_load"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r courseRow) course() course.Course {
	return course.Course(r)
}

func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CheckCourseCodeUniqueness(ctx context.Context, code string, excludedCourses []course.Course, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedCourses))
	for _, c := range excludedCourses {
		ids = append(ids, c.ID)
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM course WHERE course_code = $1 AND NOT (id = ANY($2)))`
	if err := getExec(repo.exec, exec).GetContext(ctx, &exists, q, code, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking course code uniqueness")
	}
	if exists {
		return course.ErrCodeExists
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	row := courseRow(crs)
	row.CreatedAt = row.CreatedAt.UTC()

	q := `INSERT INTO course (id, name, course_code, course_load, created_at)
		VALUES (:id, :name, :course_code, :course_load, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.exec, exec), q, row); err != nil {
		if isUniqueViolation(err) {
			return course.Course{}, constraintErr("course_code")
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, exec ...core.DBExecutor) ([]course.Course, error) {
	var rows []courseRow
	q := `SELECT * FROM course ORDER BY created_at`
	if err := getExec(repo.exec, exec).SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	var row courseRow
	q := `SELECT * FROM course WHERE id = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &row, q, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "getting course")
	}
	return row.course(), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	db := getExec(repo.exec, exec)

	orig, err := repo.GetCourse(ctx, crs.ID, db)
	if err != nil {
		return course.Course{}, err
	}
	if crs.Name == "" {
		crs.Name = orig.Name
	}
	if crs.CourseCode == "" {
		crs.CourseCode = orig.CourseCode
	}
	if crs.CreatedAt.IsZero() {
		crs.CreatedAt = orig.CreatedAt
	}

	row := courseRow(crs)
	q := `UPDATE course SET name = :name, course_code = :course_code, course_load = :course_load WHERE id = :id`
	if _, err = sqlx.NamedExecContext(ctx, db, q, row); err != nil {
		if isUniqueViolation(err) {
			return course.Course{}, constraintErr("course_code")
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return row.course(), nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	q := `DELETE FROM course WHERE id = $1`
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return nil
}
