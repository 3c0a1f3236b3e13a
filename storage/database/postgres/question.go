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
	"github.com/mwalimu/shule/core/question"
)

type questionRepository struct {
	exec core.DBExecutor
}

var (
	_ question.Repository    = (*questionRepository)(nil) // interface compliance check
	_ course.OwnedRepository = (*questionRepository)(nil)
)

func NewQuestionRepository(exec core.DBExecutor) *questionRepository {
	return &questionRepository{exec: exec}
}

type questionRow struct {
	ID        string    `db:"id"`
	Text      string    `db:"text"`
	CourseID  string    `db:"course_id"`
	Photo     string    `db:"photo"`
	CreatedAt time.Time `db:"created_at"`
}

type answerRow struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	Text       string `db:"text"`
	Correct    bool   `db:"correct"`
	Position   int    `db:"position"`
}

func (r questionRow) question(answers []question.Answer) question.Question {
	return question.Question{
		ID:        r.ID,
		Text:      r.Text,
		CourseID:  r.CourseID,
		Photo:     r.Photo,
		Answers:   answers,
		CreatedAt: r.CreatedAt,
	}
}

func (repo questionRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return question.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// queryAnswers loads the ordered answer options of the given questions.
func (repo questionRepository) queryAnswers(ctx context.Context, db core.DBExecutor, questionIDs []string) (map[string][]question.Answer, error) {
	var rows []answerRow
	q := `SELECT * FROM answer WHERE question_id = ANY($1) ORDER BY position`
	if err := db.SelectContext(ctx, &rows, q, pq.Array(questionIDs)); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}

	answers := make(map[string][]question.Answer, len(questionIDs))
	for _, r := range rows {
		answers[r.QuestionID] = append(answers[r.QuestionID], question.Answer{ID: r.ID, Text: r.Text, Correct: r.Correct})
	}
	return answers, nil
}

// saveAnswers replaces the question's answer options.
func (repo questionRepository) saveAnswers(ctx context.Context, db core.DBExecutor, qst question.Question) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM answer WHERE question_id = $1`, qst.ID); err != nil {
		return errors.Wrap(err, "clearing answers")
	}

	q := `INSERT INTO answer (id, question_id, text, correct, position) VALUES ($1, $2, $3, $4, $5)`
	for i, a := range qst.Answers {
		if _, err := db.ExecContext(ctx, q, a.ID, qst.ID, a.Text, a.Correct, i); err != nil {
			return errors.Wrap(err, "saving answers")
		}
	}
	return nil
}

func (repo questionRepository) CheckTextUniqueness(ctx context.Context, courseID, text string, excludedQuestions []question.Question, exec ...core.DBExecutor) error {
	ids := make([]string, 0, len(excludedQuestions))
	for _, q := range excludedQuestions {
		ids = append(ids, q.ID)
	}

	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM question WHERE course_id = $1 AND text = $2 AND NOT (id = ANY($3)))`
	if err := getExec(repo.exec, exec).GetContext(ctx, &exists, q, courseID, text, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking question text uniqueness")
	}
	if exists {
		return question.ErrTextExists
	}
	return nil
}

func (repo questionRepository) CreateQuestion(ctx context.Context, qst question.Question, exec ...core.DBExecutor) (question.Question, error) {
	db := getExec(repo.exec, exec)

	qst.ID = uuid.New().String()
	row := questionRow{ID: qst.ID, Text: qst.Text, CourseID: qst.CourseID, Photo: qst.Photo, CreatedAt: qst.CreatedAt.UTC()}

	q := `INSERT INTO question (id, text, course_id, photo, created_at)
		VALUES (:id, :text, :course_id, :photo, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, db, q, row); err != nil {
		if isUniqueViolation(err) {
			return question.Question{}, constraintErr("course, text")
		}
		return question.Question{}, errors.Wrap(err, "inserting question")
	}
	if err := repo.saveAnswers(ctx, db, qst); err != nil {
		return question.Question{}, err
	}
	return row.question(qst.Answers), nil
}

func (repo questionRepository) QueryQuestions(ctx context.Context, exec ...core.DBExecutor) ([]question.Question, error) {
	db := getExec(repo.exec, exec)

	var rows []questionRow
	q := `SELECT * FROM question ORDER BY created_at`
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}

	qstIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		qstIDs = append(qstIDs, r.ID)
	}
	answers, err := repo.queryAnswers(ctx, db, qstIDs)
	if err != nil {
		return nil, err
	}

	questions := make([]question.Question, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, r.question(answers[r.ID]))
	}
	return questions, nil
}

func (repo questionRepository) GetQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (question.Question, error) {
	db := getExec(repo.exec, exec)

	var row questionRow
	q := `SELECT * FROM question WHERE id = $1`
	if err := db.GetContext(ctx, &row, q, id); err != nil {
		return question.Question{}, repo.trapNoRowsErr(err, "getting question")
	}

	answers, err := repo.queryAnswers(ctx, db, []string{id})
	if err != nil {
		return question.Question{}, err
	}
	return row.question(answers[id]), nil
}

func (repo questionRepository) UpdateQuestion(ctx context.Context, qst question.Question, exec ...core.DBExecutor) (question.Question, error) {
	db := getExec(repo.exec, exec)

	row := questionRow{ID: qst.ID, Text: qst.Text, CourseID: qst.CourseID, Photo: qst.Photo, CreatedAt: qst.CreatedAt.UTC()}
	q := `UPDATE question SET text = :text, course_id = :course_id, photo = :photo WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, db, q, row)
	if err != nil {
		if isUniqueViolation(err) {
			return question.Question{}, constraintErr("course, text")
		}
		return question.Question{}, errors.Wrap(err, "updating question")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return question.Question{}, question.ErrNotFound
	}

	if err = repo.saveAnswers(ctx, db, qst); err != nil {
		return question.Question{}, err
	}
	return row.question(qst.Answers), nil
}

func (repo questionRepository) DeleteQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM question WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return nil
}

func (repo questionRepository) DeleteByCourseID(ctx context.Context, courseID string, exec ...core.DBExecutor) error {
	if _, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM question WHERE course_id = $1`, courseID); err != nil {
		return errors.Wrap(err, "deleting course questions")
	}
	return nil
}
