// Package validation wraps a shared go-playground validator and turns its
// failures into InvalidArgument errors with a stable client code.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed rule, keyed by the JSON field name.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) String() string {
	if e.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s failed %s", e.Field, e.Tag)
}

type RequestValidationError struct {
	Fields []FieldError
}

func (e *RequestValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.String())
	}
	return strings.Join(parts, "; ")
}

// Code is "missing_fields" when any required field is absent, otherwise
// "invalid_<field>" for the first failed field.
func (e *RequestValidationError) Code() string {
	for _, field := range e.Fields {
		if field.Tag == "required" {
			return "missing_fields"
		}
	}
	if len(e.Fields) == 0 {
		return "invalid_request"
	}
	return "invalid_" + e.Fields[0].Field
}

func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates s and returns nil or an *apperr.Error of kind InvalidArgument
// wrapping a *RequestValidationError.
func Struct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return apperr.Wrap(apperr.KindInvalidArgument, "invalid_request", err)
	}
	details := &RequestValidationError{Fields: make([]FieldError, 0, len(invalid))}
	for _, fieldErr := range invalid {
		details.Fields = append(details.Fields, FieldError{
			Field: fieldErr.Field(),
			Tag:   fieldErr.Tag(),
			Param: fieldErr.Param(),
		})
	}
	return apperr.Wrap(apperr.KindInvalidArgument, details.Code(), details)
}
