package exam

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/shule/core"
)

type (
	// ChosenAnswer is one student's pick for one question of a test.
	ChosenAnswer struct {
		QuestionID string `json:"question" validate:"required"`
		AnswerID   string `json:"chosen_answer"`
	}

	// Submission is one student's recorded answer set for a test. Once
	// appended it is never edited or removed.
	Submission struct {
		StudentID   string         `json:"student"`
		Answers     []ChosenAnswer `json:"questions"`
		SubmittedAt time.Time      `json:"submitted_at"` // UTC
	}

	Test struct {
		ID          string       `json:"id"`
		Title       string       `json:"title"`
		ClassroomID string       `json:"classroom"`
		QuestionIDs []string     `json:"questions"`
		Submissions []Submission `json:"students"`
		CreatedAt   time.Time    `json:"created_at"` // UTC
		UpdatedAt   time.Time    `json:"updated_at"` // UTC
	}
)

// HasQuestion reports whether questionID is part of this test.
func (t *Test) HasQuestion(questionID string) bool {
	for _, id := range t.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// HasSubmissionFrom reports whether the student already submitted this test.
func (t *Test) HasSubmissionFrom(studentID string) bool {
	for _, s := range t.Submissions {
		if s.StudentID == studentID {
			return true
		}
	}
	return false
}

// NewTest contains information needed to create a new Test.
type NewTest struct {
	Title       string   `json:"title" validate:"required"`
	ClassroomID string   `json:"classroom"`
	QuestionIDs []string `json:"questions"`
}

func (nt *NewTest) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	return validate.Struct(nt)
}

// UpdateTest defines what information may be provided to modify an existing
// Test. A nil QuestionIDs leaves the question set unchanged.
type UpdateTest struct {
	Title       string    `json:"title"`
	ClassroomID string    `json:"classroom"`
	QuestionIDs *[]string `json:"questions"`
}

func (ut *UpdateTest) Validate(validate *validator.Validate, orig Test) error {
	title := core.CleanString(ut.Title)
	if title != "" {
		ut.Title = title
	} else {
		ut.Title = orig.Title
	}
	return validate.Struct(ut)
}

// NewSubmission is one student's inbound answer set for a test.
type NewSubmission struct {
	StudentID string         `json:"student"`
	Answers   []ChosenAnswer `json:"questions"`
}
