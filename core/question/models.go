package question

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/shule/core"
)

const (
	// AnswerCount is the fixed number of options a question carries.
	AnswerCount = 5

	defaultPhoto = "no-photo.jpg"
)

type Answer struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type Question struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CourseID  string    `json:"course"`
	Photo     string    `json:"photo"`
	Answers   []Answer  `json:"answers"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// HasAnswer reports whether answerID is one of this question's options.
func (q *Question) HasAnswer(answerID string) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return true
		}
	}
	return false
}

type NewAnswer struct {
	Text    string `json:"text" validate:"required"`
	Correct *bool  `json:"correct" validate:"required"`
}

// NewQuestion contains information needed to create a new Question.
type NewQuestion struct {
	Text     string      `json:"text" validate:"required"`
	CourseID string      `json:"course" validate:"required"`
	Photo    string      `json:"photo"`
	Answers  []NewAnswer `json:"answers" validate:"required,dive"`
}

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Text = core.CleanString(nq.Text)
	if nq.Photo == "" {
		nq.Photo = defaultPhoto
	}

	if err := validate.Struct(nq); err != nil {
		return err
	}
	return ValidateAnswerSet(nq.Answers)
}

// UpdateQuestion defines what information may be provided to modify an
// existing Question. A nil Answers leaves the answer set unchanged.
type UpdateQuestion struct {
	Text     string      `json:"text"`
	CourseID string      `json:"course"`
	Photo    string      `json:"photo"`
	Answers  []NewAnswer `json:"answers" validate:"omitempty,dive"`
}

func (uq *UpdateQuestion) Validate(validate *validator.Validate, orig Question) error {
	text := core.CleanString(uq.Text)
	if text != "" {
		uq.Text = text
	} else {
		uq.Text = orig.Text
	}
	if uq.CourseID == "" {
		uq.CourseID = orig.CourseID
	}
	if uq.Photo == "" {
		uq.Photo = orig.Photo
	}

	if err := validate.Struct(uq); err != nil {
		return err
	}
	if uq.Answers != nil {
		return ValidateAnswerSet(uq.Answers)
	}
	return nil
}

// ValidateAnswerSet enforces the answer-set rule: exactly AnswerCount options
// with pairwise-distinct texts (case-sensitive) and exactly one marked
// correct. The set is atomic; any violation yields the same error.
func ValidateAnswerSet(answers []NewAnswer) error {
	errAnswerSet := core.NewError(core.InvalidAnswerSet,
		"answers must be 5 different ones and exactly 1 correct")

	if len(answers) != AnswerCount {
		return errAnswerSet
	}

	texts := make(map[string]struct{}, AnswerCount)
	var corrects int
	for _, a := range answers {
		texts[a.Text] = struct{}{}
		if a.Correct != nil && *a.Correct {
			corrects++
		}
	}
	if len(texts) != AnswerCount || corrects != 1 {
		return errAnswerSet
	}
	return nil
}
