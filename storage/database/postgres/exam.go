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
	"github.com/mwalimu/shule/core/exam"
	"github.com/mwalimu/shule/core/question"
)

type testRepository struct {
	exec core.DBExecutor
}

var (
	_ exam.Repository          = (*testRepository)(nil) // interface compliance check
	_ classroom.TestRepository = (*testRepository)(nil)
	_ question.TestRepository  = (*testRepository)(nil)
	_ course.OwnedRepository   = (*testRepository)(nil)
)

func NewTestRepository(exec core.DBExecutor) *testRepository {
	return &testRepository{exec: exec}
}

type testRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	ClassroomID string    `db:"classroom_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type submissionRow struct {
	ID          string    `db:"id"`
	TestID      string    `db:"test_id"`
	StudentID   string    `db:"student_id"`
	SubmittedAt time.Time `db:"submitted_at"`
}

func (r testRow) test(questionIDs []string, subs []exam.Submission) exam.Test {
	return exam.Test{
		ID:          r.ID,
		Title:       r.Title,
		ClassroomID: r.ClassroomID,
		QuestionIDs: questionIDs,
		Submissions: subs,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (repo testRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return exam.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// queryCompositions loads the ordered question IDs of the given tests.
func (repo testRepository) queryCompositions(ctx context.Context, db core.DBExecutor, testIDs []string) (map[string][]string, error) {
	var rows []struct {
		TestID     string `db:"test_id"`
		QuestionID string `db:"question_id"`
	}
	q := `SELECT test_id, question_id FROM test_question WHERE test_id = ANY($1) ORDER BY position`
	if err := db.SelectContext(ctx, &rows, q, pq.Array(testIDs)); err != nil {
		return nil, errors.Wrap(err, "querying test questions")
	}

	comps := make(map[string][]string, len(testIDs))
	for _, r := range rows {
		comps[r.TestID] = append(comps[r.TestID], r.QuestionID)
	}
	return comps, nil
}

// querySubmissions loads the given tests' submissions and their answer sets.
func (repo testRepository) querySubmissions(ctx context.Context, db core.DBExecutor, testIDs []string) (map[string][]exam.Submission, error) {
	var subRows []submissionRow
	q := `SELECT * FROM submission WHERE test_id = ANY($1) ORDER BY submitted_at`
	if err := db.SelectContext(ctx, &subRows, q, pq.Array(testIDs)); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	subIDs := make([]string, 0, len(subRows))
	for _, r := range subRows {
		subIDs = append(subIDs, r.ID)
	}

	var ansRows []struct {
		SubmissionID string `db:"submission_id"`
		QuestionID   string `db:"question_id"`
		AnswerID     string `db:"answer_id"`
	}
	q = `SELECT submission_id, question_id, answer_id FROM submission_answer WHERE submission_id = ANY($1) ORDER BY position`
	if err := db.SelectContext(ctx, &ansRows, q, pq.Array(subIDs)); err != nil {
		return nil, errors.Wrap(err, "querying submission answers")
	}
	answers := make(map[string][]exam.ChosenAnswer, len(subIDs))
	for _, r := range ansRows {
		answers[r.SubmissionID] = append(answers[r.SubmissionID], exam.ChosenAnswer{QuestionID: r.QuestionID, AnswerID: r.AnswerID})
	}

	subs := make(map[string][]exam.Submission, len(testIDs))
	for _, r := range subRows {
		subs[r.TestID] = append(subs[r.TestID], exam.Submission{
			StudentID:   r.StudentID,
			Answers:     answers[r.ID],
			SubmittedAt: r.SubmittedAt,
		})
	}
	return subs, nil
}

// saveComposition replaces the test's question rows.
func (repo testRepository) saveComposition(ctx context.Context, db core.DBExecutor, t exam.Test) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM test_question WHERE test_id = $1`, t.ID); err != nil {
		return errors.Wrap(err, "clearing test questions")
	}

	q := `INSERT INTO test_question (test_id, question_id, position) VALUES ($1, $2, $3)`
	for i, questionID := range t.QuestionIDs {
		if _, err := db.ExecContext(ctx, q, t.ID, questionID, i); err != nil {
			return errors.Wrap(err, "saving test questions")
		}
	}
	return nil
}

func (repo testRepository) queryTestRows(ctx context.Context, db core.DBExecutor, rows []testRow) ([]exam.Test, error) {
	testIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		testIDs = append(testIDs, r.ID)
	}

	comps, err := repo.queryCompositions(ctx, db, testIDs)
	if err != nil {
		return nil, err
	}
	subs, err := repo.querySubmissions(ctx, db, testIDs)
	if err != nil {
		return nil, err
	}

	tests := make([]exam.Test, 0, len(rows))
	for _, r := range rows {
		tests = append(tests, r.test(comps[r.ID], subs[r.ID]))
	}
	return tests, nil
}

func (repo testRepository) CheckTitleUniqueness(ctx context.Context, title, classroomID string, excludedTests []exam.Test, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedTests))
	for _, t := range excludedTests {
		ids = append(ids, t.ID)
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM test WHERE title = $1 AND classroom_id = $2 AND NOT (id = ANY($3)))`
	if err := getExec(repo.exec, exec).GetContext(ctx, &exists, q, title, classroomID, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking test title uniqueness")
	}
	if exists {
		return exam.ErrTitleExists
	}
	return nil
}

func (repo testRepository) CreateTest(ctx context.Context, t exam.Test, exec ...core.DBExecutor) (exam.Test, error) {
	db := getExec(repo.exec, exec)

	t.ID = uuid.New().String()
	row := testRow{ID: t.ID, Title: t.Title, ClassroomID: t.ClassroomID, CreatedAt: t.CreatedAt.UTC(), UpdatedAt: t.UpdatedAt.UTC()}

	q := `INSERT INTO test (id, title, classroom_id, created_at, updated_at)
		VALUES (:id, :title, :classroom_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, db, q, row); err != nil {
		if isUniqueViolation(err) {
			return exam.Test{}, constraintErr("title, classroom")
		}
		return exam.Test{}, errors.Wrap(err, "inserting test")
	}
	if err := repo.saveComposition(ctx, db, t); err != nil {
		return exam.Test{}, err
	}
	return row.test(t.QuestionIDs, nil), nil
}

func (repo testRepository) QueryTests(ctx context.Context, exec ...core.DBExecutor) ([]exam.Test, error) {
	db := getExec(repo.exec, exec)

	var rows []testRow
	q := `SELECT * FROM test ORDER BY created_at`
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}
	return repo.queryTestRows(ctx, db, rows)
}

func (repo testRepository) GetTest(ctx context.Context, id string, exec ...core.DBExecutor) (exam.Test, error) {
	db := getExec(repo.exec, exec)

	var row testRow
	q := `SELECT * FROM test WHERE id = $1`
	if err := db.GetContext(ctx, &row, q, id); err != nil {
		return exam.Test{}, repo.trapNoRowsErr(err, "getting test")
	}

	tests, err := repo.queryTestRows(ctx, db, []testRow{row})
	if err != nil {
		return exam.Test{}, err
	}
	return tests[0], nil
}

func (repo testRepository) UpdateTest(ctx context.Context, t exam.Test, exec ...core.DBExecutor) (exam.Test, error) {
	db := getExec(repo.exec, exec)

	row := testRow{ID: t.ID, Title: t.Title, ClassroomID: t.ClassroomID, UpdatedAt: t.UpdatedAt.UTC()}
	q := `UPDATE test SET title = :title, classroom_id = :classroom_id, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, db, q, row)
	if err != nil {
		if isUniqueViolation(err) {
			return exam.Test{}, constraintErr("title, classroom")
		}
		return exam.Test{}, errors.Wrap(err, "updating test")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return exam.Test{}, exam.ErrNotFound
	}

	if err = repo.saveComposition(ctx, db, t); err != nil {
		return exam.Test{}, err
	}
	return repo.GetTest(ctx, t.ID, db)
}

func (repo testRepository) DeleteTest(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM test WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting test")
	}
	return nil
}

func (repo testRepository) AppendSubmission(ctx context.Context, testID string, sub exam.Submission, exec ...core.DBExecutor) (exam.Test, error) {
	db := getExec(repo.exec, exec)

	subID := uuid.New().String()
	q := `INSERT INTO submission (id, test_id, student_id, submitted_at) VALUES ($1, $2, $3, $4)`
	if _, err := db.ExecContext(ctx, q, subID, testID, sub.StudentID, sub.SubmittedAt.UTC()); err != nil {
		if isUniqueViolation(err) {
			return exam.Test{}, constraintErr("test, student")
		}
		return exam.Test{}, errors.Wrap(err, "inserting submission")
	}

	q = `INSERT INTO submission_answer (submission_id, question_id, answer_id, position) VALUES ($1, $2, $3, $4)`
	for i, a := range sub.Answers {
		if _, err := db.ExecContext(ctx, q, subID, a.QuestionID, a.AnswerID, i); err != nil {
			return exam.Test{}, errors.Wrap(err, "inserting submission answers")
		}
	}
	return repo.GetTest(ctx, testID, db)
}

func (repo testRepository) CountTestsByQuestionID(ctx context.Context, questionID string, exec ...core.DBExecutor) (int, error) {
	var n int
	q := `SELECT COUNT(*) FROM test_question WHERE question_id = $1`
	if err := getExec(repo.exec, exec).GetContext(ctx, &n, q, questionID); err != nil {
		return 0, errors.Wrap(err, "counting tests by question")
	}
	return n, nil
}

func (repo testRepository) DeleteTestsByClassroomID(ctx context.Context, classroomID string, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM test WHERE classroom_id = $1`, classroomID); err != nil {
		return errors.Wrap(err, "deleting classroom tests")
	}
	return nil
}

func (repo testRepository) DeleteByCourseID(ctx context.Context, courseID string, exec ...core.DBExecutor) error {
	q := `DELETE FROM test WHERE classroom_id IN (SELECT id FROM classroom WHERE course_id = $1)`
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, q, courseID); err != nil {
		return errors.Wrap(err, "deleting course tests")
	}
	return nil
}
