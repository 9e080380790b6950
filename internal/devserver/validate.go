package devserver

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fieldError is one entry of a 422 detail list.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &requestValidator{v: v}
}

// Validate returns nil or the field errors of s.
func (rv *requestValidator) Validate(s any) ([]fieldError, error) {
	err := rv.v.Struct(s)
	if err == nil {
		return nil, nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil, err
	}

	out := make([]fieldError, 0, len(validationErrs))
	for _, e := range validationErrs {
		out = append(out, fieldError{
			Loc:  []string{"body", e.Field()},
			Msg:  friendlyMessage(e),
			Type: e.Tag(),
		})
	}
	return out, nil
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(e.Param(), " ", ", ")
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	default:
		return "is invalid"
	}
}
