// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/velyx/internal/protocol"
	"github.com/tomtom215/velyx/internal/topic"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// appIDPattern restricts app IDs to characters that can never collide with
// the ':' separator of namespaced topics.
var appIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidationError is a single field failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the JSON name of the field that failed.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the tag parameter, e.g. "256" for "max=256".
func (e *ValidationError) Param() string { return e.param }

// Value returns the rejected value.
func (e *ValidationError) Value() interface{} { return e.value }

func (e *ValidationError) Error() string { return e.message }

// RequestValidationError collects the failures for one struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual failures.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for i := range ve.errors {
		messages = append(messages, ve.errors[i].Error())
	}
	return strings.Join(messages, "; ")
}

// ToProtocolError maps the first failure into the Velyx error taxonomy:
// a malformed topic becomes InvalidTopicError, anything else is a
// MalformedRequestError carrying the translated message.
func (ve *RequestValidationError) ToProtocolError() protocol.CodedError {
	if len(ve.errors) == 0 {
		return &protocol.MalformedRequestError{Reason: "validation failed"}
	}
	first := ve.errors[0]
	if first.tag == "topic" {
		value, _ := first.value.(string)
		if err := topic.Validate(value); err != nil {
			var invalid *protocol.InvalidTopicError
			if errors.As(err, &invalid) {
				return invalid
			}
		}
		return &protocol.InvalidTopicError{Topic: value, Reason: first.message}
	}
	return &protocol.MalformedRequestError{Reason: first.message}
}

// GetValidator returns the process-wide validator, initialised once with the
// Velyx tags and JSON field naming.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		// Registration only fails for empty tags or nil funcs.
		_ = validate.RegisterValidation("topic", func(fl validator.FieldLevel) bool {
			return topic.Validate(fl.Field().String()) == nil
		})
		_ = validate.RegisterValidation("appid", func(fl validator.FieldLevel) bool {
			return appIDPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct validates s. It returns nil on success.
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondCoded(w, verr.ToProtocolError())
//	}
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

// ValidateAppID reports whether appID is well-formed. It does not check that
// the app exists.
func ValidateAppID(appID string) error {
	if !appIDPattern.MatchString(appID) {
		return fmt.Errorf("app ID must be 1-64 characters of [A-Za-z0-9_-]")
	}
	return nil
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"appid":    "%s must be 1-64 characters of [A-Za-z0-9_-]",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if tag == "topic" {
		if err := topic.Validate(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
	}
	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
