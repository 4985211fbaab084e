// Package validation wraps validator/v10 for pool API payloads. Failures are
// reported as CodeValidation domain errors naming the offending JSON field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "mutualpool/pkg/domain-errors"
	s "mutualpool/pkg/string"
)

// MaxIdentifierLength bounds account, subject and holder identifiers.
const MaxIdentifierLength = 128

var identPattern = regexp.MustCompile(`^[A-Za-z0-9:._@-]+$`)

var std = build()

func build() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// ident: a ledger identifier (account, subject, holder, participant).
	_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return len(id) <= MaxIdentifierLength && identPattern.MatchString(id)
	})
	return v
}

// jsonName reports the JSON key for a struct field, or "" to fall back to
// the Go name.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// Validate checks req against its validate tags.
func Validate(req any) error {
	if err := std.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage renders the first field failure of err.
func ErrorMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request body"
	}
	fe := fieldErrs[0]
	field := fieldLabel(fe)
	if field == "" {
		return "invalid request body"
	}

	switch fe.ActualTag() {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be blank"
	case "ident":
		return fmt.Sprintf("%s must be an identifier of at most %d characters [A-Za-z0-9:._@-]", field, MaxIdentifierLength)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

// fieldLabel prefers the JSON name. Elements reached through dive keep their
// index, e.g. "holders[2]".
func fieldLabel(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		name = s.ToSnakeCase(fe.StructField())
	}
	if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
		name = s.ToSnakeCase(name)
	}
	return name
}
