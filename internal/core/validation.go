package core

// validation.go checks the setup form before any file is parsed.
//
// Field rules are declared as validator/v10 struct tags on SetupInput and
// Operator. Failures are converted to ValidationErrors so the error mapper
// can produce the same user messages as every other validation failure.

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single invalid form field.
type ValidationError struct {
	Field   string `json:"field"`           // Form field name
	Value   string `json:"value,omitempty"` // The invalid value, empty for files
	Message string `json:"message"`         // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every invalid field of one form.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "invalid setup form: " + strings.Join(parts, "; ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags on s and flattens the result.
func (s *Service) validateStruct(obj any) error {
	err := s.validate.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, ValidationError{
			Field:   field,
			Value:   printable(fe.Value()),
			Message: messageForTag(fe),
		})
	}
	return out
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required field is empty"
	case "email":
		return "invalid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return "required field is empty"
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

func printable(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
