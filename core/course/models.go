package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwalimu/shule/core"
)

type Course struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CourseCode string    `json:"course_code"`
	CourseLoad int       `json:"course_load"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Name       string `json:"name" validate:"required,max=30"`
	CourseCode string `json:"course_code" validate:"required,max=10,course_code_"`
	CourseLoad int    `json:"course_load" validate:"omitempty,min=0"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nc.Name = core.CleanString(nc.Name)
	nc.CourseCode = core.CleanCode(nc.CourseCode)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckCourseCodeUniqueness(nc.CourseCode)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Name       string `json:"name" validate:"omitempty,max=30"`
	CourseCode string `json:"course_code" validate:"omitempty,max=10,course_code_"`
	CourseLoad *int   `json:"course_load" validate:"omitempty,min=0"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate, orig Course, svc ServiceInterface) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}

	code := core.CleanCode(uc.CourseCode)
	if code != "" {
		uc.CourseCode = code
	} else {
		uc.CourseCode = orig.CourseCode
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.CheckCourseCodeUniqueness(uc.CourseCode, orig)
}
