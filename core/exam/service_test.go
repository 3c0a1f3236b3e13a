package exam_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core"
	"github.com/mwalimu/shule/core/classroom"
	"github.com/mwalimu/shule/core/course"
	"github.com/mwalimu/shule/core/exam"
	"github.com/mwalimu/shule/core/question"
	"github.com/mwalimu/shule/core/user"
	dummydb "github.com/mwalimu/shule/storage/database/dummy"
	testutil "github.com/mwalimu/shule/tests"
)

// fixture is a fully wired exam service plus the entities most tests need:
// a classroom of one course with a teacher and a student, and two questions
// of that course.
type fixture struct {
	svc       exam.ServiceInterface
	db        *dummydb.DB
	course    course.Course
	room      classroom.Classroom
	teacher   user.User
	student   user.User
	questions []question.Question
}

func setup(t *testing.T) fixture {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	svc := exam.NewService(
		nil,
		dummydb.NewTestRepository(db),
		dummydb.NewClassroomRepository(db),
		dummydb.NewQuestionRepository(db),
		dummydb.NewUserRepository(db),
	)

	usrRepo := dummydb.NewUserRepository(db)
	teacher := testutil.CreateUser(t, usrRepo, "Teach", "teach@shule.cd", "", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Stud", "stud@shule.cd", "", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, dummydb.NewCourseRepository(db), "Algebra", "MATH101", 6)
	room := testutil.CreateClassroom(t, dummydb.NewClassroomRepository(db), "Room A", 20, crs.ID, teacher.ID, []string{student.ID})
	q1 := testutil.CreateQuestion(t, dummydb.NewQuestionRepository(db), crs.ID, "What is 2+2?")
	q2 := testutil.CreateQuestion(t, dummydb.NewQuestionRepository(db), crs.ID, "What is 3+3?")

	return fixture{
		svc:       svc,
		db:        db,
		course:    crs,
		room:      room,
		teacher:   teacher,
		student:   student,
		questions: []question.Question{q1, q2},
	}
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	q1, q2 := f.questions[0], f.questions[1]

	tst, err := f.svc.Create(ctx, exam.NewTest{
		Title:       "Quiz 1",
		ClassroomID: f.room.ID,
		// duplicates collapse, first occurrence order kept
		QuestionIDs: []string{q1.ID, q2.ID, q1.ID},
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if tst.ID == "" {
		t.Error("Create() returned an empty id")
	}
	if want := []string{q1.ID, q2.ID}; !reflect.DeepEqual(tst.QuestionIDs, want) {
		t.Errorf("Create() questions = %v, want %v", tst.QuestionIDs, want)
	}
	if len(tst.Submissions) != 0 {
		t.Errorf("Create() started with %d submissions", len(tst.Submissions))
	}

	// the title is taken for this classroom
	_, err = f.svc.Create(ctx, exam.NewTest{
		Title:       "Quiz 1",
		ClassroomID: f.room.ID,
		QuestionIDs: []string{q1.ID},
	})
	if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
		t.Errorf("Create() error = %v, want a validation error", err)
	}
}

func TestServiceCreateCompositionValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	otherCrs := testutil.CreateCourse(t, dummydb.NewCourseRepository(f.db), "Geometry", "MATH102", 6)
	foreign := testutil.CreateQuestion(t, dummydb.NewQuestionRepository(f.db), otherCrs.ID, "What is a circle?")

	tests := []struct {
		name     string
		nt       exam.NewTest
		wantKind core.Kind
	}{
		{
			name:     "missing classroom",
			nt:       exam.NewTest{Title: "T", QuestionIDs: []string{f.questions[0].ID}},
			wantKind: core.MissingField,
		},
		{
			name:     "unknown classroom",
			nt:       exam.NewTest{Title: "T", ClassroomID: "nope", QuestionIDs: []string{f.questions[0].ID}},
			wantKind: core.NotFound,
		},
		{
			name:     "no questions",
			nt:       exam.NewTest{Title: "T", ClassroomID: f.room.ID},
			wantKind: core.MissingField,
		},
		{
			name:     "unknown question",
			nt:       exam.NewTest{Title: "T", ClassroomID: f.room.ID, QuestionIDs: []string{"nope"}},
			wantKind: core.NotFound,
		},
		{
			name:     "question of another course",
			nt:       exam.NewTest{Title: "T", ClassroomID: f.room.ID, QuestionIDs: []string{foreign.ID}},
			wantKind: core.CourseMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.nt)
			if !core.IsKind(err, tt.wantKind) {
				t.Errorf("Create() error = %v, want kind %v", err, tt.wantKind)
			}
		})
	}
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	q1, q2 := f.questions[0], f.questions[1]
	tst := testutil.CreateTest(t, dummydb.NewTestRepository(f.db), "Quiz 1", f.room.ID, []string{q1.ID})

	got, err := f.svc.Update(ctx, tst.ID, exam.UpdateTest{
		Title:       "Quiz 1b",
		QuestionIDs: &[]string{q1.ID, q2.ID},
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if got.Title != "Quiz 1b" {
		t.Errorf("Update() title = %q", got.Title)
	}
	if want := []string{q1.ID, q2.ID}; !reflect.DeepEqual(got.QuestionIDs, want) {
		t.Errorf("Update() questions = %v, want %v", got.QuestionIDs, want)
	}
	if got.ClassroomID != f.room.ID {
		t.Error("Update() changed the classroom")
	}

	// a nil question set leaves the composition unchanged
	got, err = f.svc.Update(ctx, tst.ID, exam.UpdateTest{Title: "Quiz 1c"})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if want := []string{q1.ID, q2.ID}; !reflect.DeepEqual(got.QuestionIDs, want) {
		t.Errorf("Update() questions = %v, want %v", got.QuestionIDs, want)
	}

	if _, err = f.svc.Update(ctx, "nope", exam.UpdateTest{Title: "X"}); errors.Cause(err) != exam.ErrNotFound {
		t.Errorf("Update() error = %v, want %v", err, exam.ErrNotFound)
	}
}

// a test freezes once the first submission lands
func TestServiceLock(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	q1 := f.questions[0]
	tst := testutil.CreateTest(t, dummydb.NewTestRepository(f.db), "Quiz 1", f.room.ID, []string{q1.ID})

	if _, err := f.svc.Submit(ctx, tst.ID, exam.NewSubmission{
		StudentID: f.student.ID,
		Answers:   []exam.ChosenAnswer{{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID}},
	}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if _, err := f.svc.Update(ctx, tst.ID, exam.UpdateTest{Title: "Changed"}); !core.IsKind(err, core.Locked) {
		t.Errorf("Update() error = %v, want kind %v", err, core.Locked)
	}
	if err := f.svc.Delete(ctx, tst.ID); !core.IsKind(err, core.Locked) {
		t.Errorf("Delete() error = %v, want kind %v", err, core.Locked)
	}
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	tst := testutil.CreateTest(t, dummydb.NewTestRepository(f.db), "Quiz 1", f.room.ID, []string{f.questions[0].ID})

	if err := f.svc.Delete(ctx, tst.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := f.svc.GetByID(ctx, tst.ID); errors.Cause(err) != exam.ErrNotFound {
		t.Errorf("GetByID() error = %v, want %v", err, exam.ErrNotFound)
	}
}

func TestServiceSubmit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	q1, q2 := f.questions[0], f.questions[1]
	tst := testutil.CreateTest(t, dummydb.NewTestRepository(f.db), "Quiz 1", f.room.ID, []string{q1.ID, q2.ID})

	sub, err := f.svc.Submit(ctx, tst.ID, exam.NewSubmission{
		StudentID: f.student.ID,
		Answers: []exam.ChosenAnswer{
			{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID},
			{QuestionID: q2.ID, AnswerID: q2.Answers[1].ID},
		},
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if sub.StudentID != f.student.ID {
		t.Errorf("Submit() student = %q, want %q", sub.StudentID, f.student.ID)
	}
	if sub.SubmittedAt.IsZero() {
		t.Error("Submit() did not stamp the submission")
	}

	got, err := f.svc.GetByID(ctx, tst.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if len(got.Submissions) != 1 {
		t.Fatalf("GetByID() has %d submissions, want 1", len(got.Submissions))
	}

	// one submission per student per test
	_, err = f.svc.Submit(ctx, tst.ID, exam.NewSubmission{
		StudentID: f.student.ID,
		Answers: []exam.ChosenAnswer{
			{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID},
			{QuestionID: q2.ID, AnswerID: q2.Answers[1].ID},
		},
	})
	if !core.IsKind(err, core.DuplicateSubmission) {
		t.Errorf("Submit() error = %v, want kind %v", err, core.DuplicateSubmission)
	}
}

// extra answers for unknown questions and repeated answers are dropped before
// the completeness check; the first answer per question wins
func TestServiceSubmitFiltersAnswers(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	q1, q2 := f.questions[0], f.questions[1]
	tst := testutil.CreateTest(t, dummydb.NewTestRepository(f.db), "Quiz 1", f.room.ID, []string{q1.ID, q2.ID})

	sub, err := f.svc.Submit(ctx, tst.ID, exam.NewSubmission{
		StudentID: f.student.ID,
		Answers: []exam.ChosenAnswer{
			{QuestionID: "stranger", AnswerID: "whatever"},
			{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID},
			{QuestionID: q1.ID, AnswerID: q1.Answers[4].ID}, // loses to the first
			{QuestionID: q2.ID, AnswerID: q2.Answers[1].ID},
		},
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	want := []exam.ChosenAnswer{
		{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID},
		{QuestionID: q2.ID, AnswerID: q2.Answers[1].ID},
	}
	if !reflect.DeepEqual(sub.Answers, want) {
		t.Errorf("Submit() answers = %v, want %v", sub.Answers, want)
	}
}

// submitting does not require enrollment in the test's classroom
func TestServiceSubmitWithoutEnrollment(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	q1 := f.questions[0]
	tst := testutil.CreateTest(t, dummydb.NewTestRepository(f.db), "Quiz 1", f.room.ID, []string{q1.ID})

	outsider := testutil.CreateUser(t, dummydb.NewUserRepository(f.db), "Out", "out@shule.cd", "", user.RoleStudent, true)
	if _, err := f.svc.Submit(ctx, tst.ID, exam.NewSubmission{
		StudentID: outsider.ID,
		Answers:   []exam.ChosenAnswer{{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID}},
	}); err != nil {
		t.Errorf("Submit() failed: %v", err)
	}
}

func TestServiceSubmitValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	q1, q2 := f.questions[0], f.questions[1]
	tst := testutil.CreateTest(t, dummydb.NewTestRepository(f.db), "Quiz 1", f.room.ID, []string{q1.ID, q2.ID})

	fullAnswers := []exam.ChosenAnswer{
		{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID},
		{QuestionID: q2.ID, AnswerID: q2.Answers[1].ID},
	}

	tests := []struct {
		name     string
		testID   string
		ns       exam.NewSubmission
		wantKind core.Kind
		wantErr  error
	}{
		{
			name:    "unknown test",
			testID:  "nope",
			ns:      exam.NewSubmission{StudentID: f.student.ID, Answers: fullAnswers},
			wantErr: exam.ErrNotFound,
		},
		{
			name:     "missing student",
			testID:   tst.ID,
			ns:       exam.NewSubmission{Answers: fullAnswers},
			wantKind: core.MissingField,
		},
		{
			name:     "unknown student",
			testID:   tst.ID,
			ns:       exam.NewSubmission{StudentID: "nope", Answers: fullAnswers},
			wantKind: core.NotFound,
		},
		{
			name:     "submitter without the student role",
			testID:   tst.ID,
			ns:       exam.NewSubmission{StudentID: f.teacher.ID, Answers: fullAnswers},
			wantKind: core.InvalidRole,
		},
		{
			name:     "no answers",
			testID:   tst.ID,
			ns:       exam.NewSubmission{StudentID: f.student.ID},
			wantKind: core.MissingField,
		},
		{
			name:   "incomplete answers",
			testID: tst.ID,
			ns: exam.NewSubmission{
				StudentID: f.student.ID,
				Answers:   []exam.ChosenAnswer{{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID}},
			},
			wantKind: core.IncompleteSubmission,
		},
		{
			name:   "missing chosen answer",
			testID: tst.ID,
			ns: exam.NewSubmission{
				StudentID: f.student.ID,
				Answers: []exam.ChosenAnswer{
					{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID},
					{QuestionID: q2.ID},
				},
			},
			wantKind: core.MissingField,
		},
		{
			name:   "answer of another question",
			testID: tst.ID,
			ns: exam.NewSubmission{
				StudentID: f.student.ID,
				Answers: []exam.ChosenAnswer{
					{QuestionID: q1.ID, AnswerID: q2.Answers[0].ID},
					{QuestionID: q2.ID, AnswerID: q2.Answers[1].ID},
				},
			},
			wantKind: core.InvalidAnswer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tt.testID, tt.ns)
			if tt.wantErr != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("Submit() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if !core.IsKind(err, tt.wantKind) {
				t.Errorf("Submit() error = %v, want kind %v", err, tt.wantKind)
			}
		})
	}
}
