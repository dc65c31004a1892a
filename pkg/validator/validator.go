// Package validator wraps go-playground/validator with the portal's field rules.
// Tags are read from `binding` so request structs validate the same way in gin
// and in the service layer.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-portal/internal/model"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

var emailShape = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailShape.MatchString(s)
}

// RegisterRules adds the portal's custom tags to v.
func RegisterRules(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"emailshape": func(fl validator.FieldLevel) bool {
			return ValidEmail(fl.Field().String())
		},
		"isodate": func(fl validator.FieldLevel) bool {
			_, err := time.Parse(model.DateLayout, fl.Field().String())
			return err == nil
		},
		"timeslot": func(fl validator.FieldLevel) bool {
			return model.IsTimeSlot(fl.Field().String())
		},
		"service": func(fl validator.FieldLevel) bool {
			return model.IsService(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s rule: %w", tag, err)
		}
	}
	return nil
}

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	v.RegisterTagNameFunc(JSONFieldName)
	if err := RegisterRules(v); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

// Struct validates s and reports all failing fields in one validation error.
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewBadRequest("invalid request", err)
	}
	return apperrors.NewValidation(Describe(fieldErrs))
}

// JSONFieldName reports struct fields by their json name.
func JSONFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// Describe renders field errors as a single human-readable message.
func Describe(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, describeField(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeField(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "emailshape", "email":
		return "Email is invalid"
	case "min":
		if field == "password" {
			return fmt.Sprintf("Password must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "isodate":
		return fmt.Sprintf("%s must be a YYYY-MM-DD date", field)
	case "timeslot":
		return fmt.Sprintf("%s is not a bookable time slot", field)
	case "service":
		return fmt.Sprintf("%s is not an offered service", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
