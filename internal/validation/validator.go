// Package validation validates request DTOs with go-playground/validator.
//
// Field names in messages come from a `label` struct tag, so a field tagged
//
//	EventTitle string `json:"eventTitle" label:"Event title" validate:"notblank"`
//
// fails with "Event title is required".
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/soundscape/internal/apperror"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// GetValidator returns the shared validator with the custom tags registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if label := f.Tag.Get("label"); label != "" {
				return label
			}
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		// Registration errors only happen for empty tags or nil funcs.
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
			return dateRe.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return timeRe.MatchString(strings.TrimSpace(fl.Field().String()))
		})

		validate = v
	})
	return validate
}

// Messages validates s and returns one human-readable message per violated
// constraint, in field order. A nil result means s is valid.
func Messages(s any) []string {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, translateError(fe))
	}
	return msgs
}

// Struct validates s. On failure the returned error is an apperror
// validation error listing every violation. The message is summary, or the
// first violation when summary is empty.
func Struct(s any, summary string) error {
	msgs := Messages(s)
	if len(msgs) == 0 {
		return nil
	}
	if summary == "" {
		summary = msgs[0]
	}
	return apperror.ValidationList(summary, msgs)
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"notblank": "%s is required",
	"email":    "%s must be a valid email address",
	"ymd":      "%s must be in YYYY-MM-DD format",
	"hhmm":     "%s must be in HH:MM format",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"max":   "%s must be at most %s characters",
	"min":   "%s must be at least %s characters",
}

// sliceMessageWithParam overrides errorMessageWithParam for slice fields.
var sliceMessageWithParam = map[string]string{
	"max": "%s must have at most %s entries",
	"min": "%s must have at least %s entries",
}

func translateError(fe validator.FieldError) string {
	if tmpl, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if fe.Kind() == reflect.Slice {
		if tmpl, ok := sliceMessageWithParam[fe.Tag()]; ok {
			return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
		}
	}
	if tmpl, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
