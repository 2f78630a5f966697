package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/kbukum/meetscribe/errors"
)

// structValidator names fields after their json or form tag, so messages
// match what the client sent.
var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return toSnakeCase(f.Name)
	})
	return v
})

// Validate checks s against its `validate` tags and returns an
// INVALID_INPUT AppError listing every failing field under
// Details["fields"].
func Validate(s any) error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Validation("validation failed")
	}

	fields := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		fields[i] = FieldError{Field: fe.Field(), Message: describe(fe)}
	}
	return toAppError(fields)
}

func describe(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return "must be at least " + p + " characters"
		}
		return "must be at least " + p
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return "must be at most " + p + " characters"
		}
		return "must be at most " + p
	case "len":
		return "must be exactly " + p + " characters"
	case "gt":
		return "must be greater than " + p
	case "oneof":
		return "must be one of: " + p
	case "uuid":
		return "must be a valid UUID"
	case "dive":
		return "contains an invalid element"
	default:
		return "is invalid"
	}
}

// toSnakeCase turns a Go field name like MinSpeakers into min_speakers.
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
