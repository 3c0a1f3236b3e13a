package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/user"
)

// Submit validates and records a single student's answer set for a test.
//
// The student must resolve with role 'student' and must not have submitted
// this test before. Answers are filtered to the test's question set and
// deduplicated by question id (first occurrence wins, encounter order); the
// filtered set must cover every question of the test, and every chosen
// answer must be one of its question's option ids. On success the submission
// is appended to the test; prior submissions are never touched.
//
// Enrollment of the submitter in the test's classroom is deliberately not
// required.
func (svc *service) Submit(ctx context.Context, testID string, ns NewSubmission) (Submission, error) {
	var sub Submission
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		t, err := svc.repo.GetTest(ctx, testID, tx)
		if err != nil {
			return err
		}

		if err = svc.validateSubmitter(ctx, tx, &t, ns.StudentID); err != nil {
			return err
		}

		answers, err := svc.validateAnswers(ctx, tx, &t, ns.Answers)
		if err != nil {
			return err
		}

		sub = Submission{
			StudentID:   ns.StudentID,
			Answers:     answers,
			SubmittedAt: time.Now().UTC(),
		}
		_, err = svc.repo.AppendSubmission(ctx, testID, sub, tx)
		return err
	})
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (svc *service) validateSubmitter(ctx context.Context, exec core.DBExecutor, t *Test, studentID string) error {
	if studentID == "" {
		return core.NewError(core.MissingField, "please add a student")
	}
	student, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: studentID}, exec)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewError(core.NotFound, fmt.Sprintf("student not found with id: %s", studentID), studentID)
		}
		return errors.Wrap(err, "finding student")
	}
	if !student.IsStudent() {
		return core.NewError(core.InvalidRole,
			fmt.Sprintf("submissions require a user with role '%s', id %s does not have it", user.RoleStudent, studentID),
			studentID)
	}
	if t.HasSubmissionFrom(studentID) {
		return core.NewError(core.DuplicateSubmission,
			fmt.Sprintf("student %s already submitted test %s", studentID, t.ID), studentID, t.ID)
	}
	return nil
}

// validateAnswers filters the inbound answers down to the test's question
// set, keeping the first answer seen for each question, then checks
// completeness and that every chosen answer id belongs to its question.
func (svc *service) validateAnswers(ctx context.Context, exec core.DBExecutor, t *Test, answers []ChosenAnswer) ([]ChosenAnswer, error) {
	if len(answers) == 0 {
		return nil, core.NewError(core.MissingField, "please add answers")
	}

	answered := make(map[string]struct{}, len(t.QuestionIDs))
	filtered := make([]ChosenAnswer, 0, len(t.QuestionIDs))
	for _, ans := range answers {
		if !t.HasQuestion(ans.QuestionID) {
			continue
		}
		if _, ok := answered[ans.QuestionID]; ok {
			continue // first occurrence wins
		}
		answered[ans.QuestionID] = struct{}{}
		filtered = append(filtered, ans)
	}

	if len(filtered) < len(t.QuestionIDs) {
		return nil, core.NewError(core.IncompleteSubmission,
			fmt.Sprintf("answered %d of %d questions", len(filtered), len(t.QuestionIDs)), t.ID)
	}

	for _, ans := range filtered {
		if ans.AnswerID == "" {
			return nil, core.NewError(core.MissingField,
				fmt.Sprintf("please add a chosen answer for question %s", ans.QuestionID), ans.QuestionID)
		}
		q, err := svc.qstRepo.GetQuestion(ctx, ans.QuestionID, exec)
		if err != nil {
			return nil, errors.Wrap(err, "finding question")
		}
		if !q.HasAnswer(ans.AnswerID) {
			return nil, core.NewError(core.InvalidAnswer,
				fmt.Sprintf("answer %s is not an option of question %s", ans.AnswerID, ans.QuestionID),
				ans.QuestionID, ans.AnswerID)
		}
	}
	return filtered, nil
}
