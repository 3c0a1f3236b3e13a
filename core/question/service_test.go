package question_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/question"
	"github.com/mwalimu/shule/core/user"
	dummydb "github.com/mwalimu/shule/storage/database/dummy"
	testutil "github.com/mwalimu/shule/tests"
)

func setup(t *testing.T) (question.ServiceInterface, *dummydb.DB) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	svc := question.NewService(
		nil,
		dummydb.NewQuestionRepository(db),
		dummydb.NewCourseRepository(db),
		dummydb.NewTestRepository(db),
	)
	return svc, db
}

func boolPtr(b bool) *bool { return &b }

func newAnswers(prefix string, corrects ...int) []question.NewAnswer {
	isCorrect := make(map[int]bool, len(corrects))
	for _, i := range corrects {
		isCorrect[i] = true
	}
	answers := make([]question.NewAnswer, 0, question.AnswerCount)
	for i := 0; i < question.AnswerCount; i++ {
		answers = append(answers, question.NewAnswer{
			Text:    fmt.Sprintf("%s %d", prefix, i+1),
			Correct: boolPtr(isCorrect[i]),
		})
	}
	return answers
}

func TestValidateAnswerSet(t *testing.T) {
	tests := []struct {
		name    string
		answers []question.NewAnswer
		wantErr bool
	}{
		{name: "valid", answers: newAnswers("opt", 0)},
		{name: "too few", answers: newAnswers("opt", 0)[:4], wantErr: true},
		{
			name:    "too many",
			answers: append(newAnswers("opt", 0), question.NewAnswer{Text: "opt 6", Correct: boolPtr(false)}),
			wantErr: true,
		},
		{name: "no correct answer", answers: newAnswers("opt"), wantErr: true},
		{name: "two correct answers", answers: newAnswers("opt", 0, 3), wantErr: true},
		{
			name: "duplicate texts",
			answers: []question.NewAnswer{
				{Text: "same", Correct: boolPtr(true)},
				{Text: "same", Correct: boolPtr(false)},
				{Text: "opt 3", Correct: boolPtr(false)},
				{Text: "opt 4", Correct: boolPtr(false)},
				{Text: "opt 5", Correct: boolPtr(false)},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := question.ValidateAnswerSet(tt.answers)
			if gotErr := err != nil; gotErr != tt.wantErr {
				t.Errorf("ValidateAnswerSet() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !core.IsKind(err, core.InvalidAnswerSet) {
				t.Errorf("ValidateAnswerSet() error = %v, want kind %v", err, core.InvalidAnswerSet)
			}
		})
	}
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc, db := setup(t)

	crs := testutil.CreateCourse(t, dummydb.NewCourseRepository(db), "Algebra", "MATH101", 6)

	qst, err := svc.Create(ctx, question.NewQuestion{
		Text:     "What is 2+2?",
		CourseID: crs.ID,
		Answers:  newAnswers("opt", 0),
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if qst.ID == "" {
		t.Error("Create() returned an empty id")
	}
	if len(qst.Answers) != question.AnswerCount {
		t.Fatalf("Create() stored %d answers, want %d", len(qst.Answers), question.AnswerCount)
	}
	for i, a := range qst.Answers {
		if a.ID == "" {
			t.Errorf("Create() answer %d has no id", i)
		}
		if a.Correct != (i == 0) {
			t.Errorf("Create() answer %d correct = %v", i, a.Correct)
		}
	}

	// the text is taken for this course
	_, err = svc.Create(ctx, question.NewQuestion{
		Text:     "What is 2+2?",
		CourseID: crs.ID,
		Answers:  newAnswers("opt", 0),
	})
	if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
		t.Errorf("Create() error = %v, want a validation error", err)
	}

	// but fine on another course
	crs2 := testutil.CreateCourse(t, dummydb.NewCourseRepository(db), "Geometry", "MATH102", 6)
	if _, err = svc.Create(ctx, question.NewQuestion{
		Text:     "What is 2+2?",
		CourseID: crs2.ID,
		Answers:  newAnswers("opt", 0),
	}); err != nil {
		t.Errorf("Create() failed: %v", err)
	}

	// unknown course
	_, err = svc.Create(ctx, question.NewQuestion{
		Text:     "Orphan?",
		CourseID: "nope",
		Answers:  newAnswers("opt", 0),
	})
	if !core.IsKind(err, core.NotFound) {
		t.Errorf("Create() error = %v, want kind %v", err, core.NotFound)
	}
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc, db := setup(t)

	crs := testutil.CreateCourse(t, dummydb.NewCourseRepository(db), "Algebra", "MATH101", 6)
	qst := testutil.CreateQuestion(t, dummydb.NewQuestionRepository(db), crs.ID, "What is 2+2?")

	got, err := svc.Update(ctx, qst.ID, question.UpdateQuestion{
		Text:     "What is 3+3?",
		CourseID: crs.ID,
		Photo:    qst.Photo,
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if got.Text != "What is 3+3?" {
		t.Errorf("Update() text = %q", got.Text)
	}
	// a nil answer set leaves the options unchanged
	if len(got.Answers) != question.AnswerCount {
		t.Errorf("Update() dropped the answers")
	}

	if _, err = svc.Update(ctx, "nope", question.UpdateQuestion{Text: "X", CourseID: crs.ID}); errors.Cause(err) != question.ErrNotFound {
		t.Errorf("Update() error = %v, want %v", err, question.ErrNotFound)
	}
}

// a question referenced by a test is frozen
func TestServiceLock(t *testing.T) {
	ctx := context.Background()
	svc, db := setup(t)

	usrRepo := dummydb.NewUserRepository(db)
	teacher := testutil.CreateUser(t, usrRepo, "Teach", "teach@shule.cd", "", user.RoleTeacher, true)
	crs := testutil.CreateCourse(t, dummydb.NewCourseRepository(db), "Algebra", "MATH101", 6)
	room := testutil.CreateClassroom(t, dummydb.NewClassroomRepository(db), "Room A", 20, crs.ID, teacher.ID, nil)
	qst := testutil.CreateQuestion(t, dummydb.NewQuestionRepository(db), crs.ID, "What is 2+2?")
	free := testutil.CreateQuestion(t, dummydb.NewQuestionRepository(db), crs.ID, "What is 3+3?")
	testutil.CreateTest(t, dummydb.NewTestRepository(db), "Quiz 1", room.ID, []string{qst.ID})

	if _, err := svc.Update(ctx, qst.ID, question.UpdateQuestion{Text: "Changed?", CourseID: crs.ID}); !core.IsKind(err, core.Locked) {
		t.Errorf("Update() error = %v, want kind %v", err, core.Locked)
	}
	if err := svc.Delete(ctx, qst.ID); !core.IsKind(err, core.Locked) {
		t.Errorf("Delete() error = %v, want kind %v", err, core.Locked)
	}

	// an unreferenced question stays mutable
	if err := svc.Delete(ctx, free.ID); err != nil {
		t.Errorf("Delete() failed: %v", err)
	}
	if _, err := svc.GetByID(ctx, free.ID); errors.Cause(err) != question.ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, question.ErrNotFound)
	}
}
