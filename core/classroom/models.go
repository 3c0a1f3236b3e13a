package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/shule/core"
)

// DefaultCapacity is the roster limit applied when none is requested.
const DefaultCapacity = 20

type Classroom struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Capacity   int       `json:"capacity"`
	CourseID   string    `json:"course"`
	TeacherID  string    `json:"teacher"`
	StudentIDs []string  `json:"students"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// HasStudent reports whether the student is on this classroom's roster.
func (c *Classroom) HasStudent(studentID string) bool {
	for _, id := range c.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// NewClassroom contains information needed to create a new Classroom.
// A nil Capacity means DefaultCapacity; an explicit 0 is a valid, empty-only
// roster limit.
type NewClassroom struct {
	Name       string   `json:"name" validate:"required"`
	Capacity   *int     `json:"capacity" validate:"omitempty,min=0"`
	CourseID   string   `json:"course" validate:"required"`
	TeacherID  string   `json:"teacher" validate:"required"`
	StudentIDs []string `json:"students"`
}

func (nc *NewClassroom) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nc.Name = core.CleanString(nc.Name)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckNameUniqueness(nc.Name)
}

// UpdateClassroom defines what information may be provided to modify an
// existing Classroom. A nil StudentIDs leaves the roster unchanged.
type UpdateClassroom struct {
	Name       string    `json:"name"`
	Capacity   *int      `json:"capacity" validate:"omitempty,min=0"`
	CourseID   string    `json:"course"`
	TeacherID  string    `json:"teacher"`
	StudentIDs *[]string `json:"students"`
}

func (uc *UpdateClassroom) Validate(validate *validator.Validate, orig Classroom, svc ServiceInterface) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.CheckNameUniqueness(uc.Name, orig)
}
