// Package validate wraps go-playground/validator and renders failures as a
// field→message map, which pkg/response turns into a 400 envelope.
package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())

	// Report errors under the JSON field name, not the Go field name.
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return val
}

// Struct validates all exported fields of s that carry a `validate` tag.
// Returns a map of fieldName → error message; empty map means no errors.
func Struct(s interface{}) map[string]string {
	errs := make(map[string]string)

	err := v.Struct(s)
	if err == nil {
		return errs
	}

	invalid, ok := err.(validator.ValidationErrors)
	if !ok {
		errs["_"] = err.Error()
		return errs
	}

	for _, fe := range invalid {
		errs[fe.Field()] = message(fe)
	}
	return errs
}

// HasErrors returns true when the errs map is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", fe.Field())
	case "url":
		return fmt.Sprintf("The %s must be a valid URL.", fe.Field())
	case "min":
		return fmt.Sprintf("The %s must be at least %s.", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s.", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s must be one of: %s.", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("The %s must be at least %s.", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("The %s field is invalid (%s).", fe.Field(), fe.Tag())
	}
}
