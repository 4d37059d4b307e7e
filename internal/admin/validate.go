package admin

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct checks the validate tags of req and converts the first
// failure to a ValidationError.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	e := verrs[0]
	return NewValidationError(e.Field(), validationMessage(e))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "email address is invalid"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at least %s characters", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must have at most %s characters", e.Field(), e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s failed on %s validation", e.Field(), e.Tag())
	}
}

// checkPassword enforces the configured minimum in characters and the bcrypt
// limit in bytes.
func checkPassword(password string, minLength int) error {
	if utf8.RuneCountInString(password) < minLength {
		return NewValidationError("password", fmt.Sprintf("password must have at least %d characters", minLength))
	}
	if len(password) > MaxPasswordBytes {
		return NewValidationError("password", fmt.Sprintf("password must have at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

// checkID validates a user id passed outside a request struct.
func checkID(id string) error {
	if err := validate.Var(strings.TrimSpace(id), "required"); err != nil {
		return NewValidationError("id", "id is required")
	}
	return nil
}
