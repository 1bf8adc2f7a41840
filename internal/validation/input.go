package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/resultportal/internal/model"
)

var validate = newValidator()

// rollNoPattern keeps roll numbers usable as stored file names and as
// archive entry keys, which split on underscores.
var rollNoPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]*$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("rollno", func(fl validator.FieldLevel) bool {
		return rollNoPattern.MatchString(fl.Field().String())
	})
	return v
}

// StudentInput is the raw student payload from a form or spreadsheet row.
type StudentInput struct {
	RollNo string `validate:"required,max=32,rollno"`
	Name   string `validate:"required,max=200"`
	DOB    string `validate:"required"`
	Mobile string `validate:"required"`
	Post   string `validate:"required,oneof=DCP DCO FCD LFM DFO SFO WLO"`
}

// Student validates in and returns the normalized record.
func Student(in StudentInput) (model.Student, error) {
	in.RollNo = RollNo(in.RollNo)
	in.Name = strings.TrimSpace(in.Name)
	in.Post = strings.ToUpper(strings.TrimSpace(in.Post))
	if err := Struct(in); err != nil {
		return model.Student{}, err
	}
	dob, err := ParseDate("dob", in.DOB)
	if err != nil {
		return model.Student{}, err
	}
	mobile, err := Mobile("mobile", in.Mobile)
	if err != nil {
		return model.Student{}, err
	}
	return model.Student{
		RollNo: in.RollNo,
		Name:   in.Name,
		DOB:    dob,
		Mobile: mobile,
		Post:   model.Post(in.Post),
		Active: true,
	}, nil
}

type answerKeyPost struct {
	PostCode string `validate:"required,oneof=DCO FCD LFM DFO SFO WLO"`
}

// AnswerKeyPost validates a post code for answer key operations.
func AnswerKeyPost(raw string) (model.Post, error) {
	p := answerKeyPost{PostCode: strings.ToUpper(strings.TrimSpace(raw))}
	if err := Struct(p); err != nil {
		return "", err
	}
	return model.Post(p.PostCode), nil
}

// Struct runs tag validation and converts the first failure into a
// model.ValidationError.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.Invalid("", "%v", err)
	}
	fe := verrs[0]
	field := fieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return model.Invalid(field, "is required")
	case "oneof":
		return model.Invalid(field, "must be one of %s", fe.Param())
	case "max":
		return model.Invalid(field, "must be at most %s characters", fe.Param())
	case "rollno":
		return model.Invalid(field, "may contain only letters, digits and dashes")
	default:
		return model.Invalid(field, "is invalid")
	}
}

func fieldName(f string) string {
	switch f {
	case "RollNo":
		return "rollNo"
	case "DOB":
		return "dob"
	case "Post":
		return "postApplied"
	case "PostCode":
		return "postCode"
	default:
		return strings.ToLower(f)
	}
}
