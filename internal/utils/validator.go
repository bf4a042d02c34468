package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validator *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report errors under the JSON name the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: v}
}

// Struct validates s and returns a *ValidationError keyed by JSON field name.
func (v *Validator) Struct(s interface{}) error {
	return v.translate(v.validator.Struct(s), "")
}

// Var validates a single value that is reported under field.
func (v *Validator) Var(field string, value interface{}, tag string) error {
	return v.translate(v.validator.Var(value, tag), field)
}

func (v *Validator) translate(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: map[string][]string{}}
	for _, fe := range verrs {
		name := field
		if name == "" {
			name = fe.Field()
		}
		out.Add(name, errorMessage(fe.Tag(), fe.Param()))
	}
	return out
}

func errorMessage(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "url", "http_url":
		return "Enter a valid URL."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", param)
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", param)
	case "len":
		return fmt.Sprintf("Ensure this field has exactly %s characters.", param)
	case "numeric":
		return "Enter a number."
	case "oneof":
		return fmt.Sprintf("Value must be one of: %s.", param)
	default:
		return "Invalid value."
	}
}
