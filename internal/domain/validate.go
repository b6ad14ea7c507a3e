package domain

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"farmnook-dispatch/internal/apperr"
)

var (
	rePlateNumber   = regexp.MustCompile(`^[A-Z]{3} ?[0-9]{3,4}$`)
	reLicenseNumber = regexp.MustCompile(`^[A-Z][0-9]{2}-[0-9]{2}-[0-9]{6}$`)
	rePhone         = regexp.MustCompile(`^(\+63|0)9[0-9]{9}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "plate", func(fl validator.FieldLevel) bool {
		return rePlateNumber.MatchString(fl.Field().String())
	})
	mustRegister(v, "license", func(fl validator.FieldLevel) bool {
		return reLicenseNumber.MatchString(fl.Field().String())
	})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return rePhone.MatchString(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// FieldErrors maps a field name to a user-facing validation message.
// It unwraps to apperr.ErrInvalid.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e FieldErrors) Unwrap() error { return apperr.ErrInvalid }

// Add records a message for field and returns e for chaining.
func (e FieldErrors) Add(field, msg string) FieldErrors {
	e[field] = msg
	return e
}

// OrNil returns nil when no field errors were recorded.
func (e FieldErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Struct validates v against its validate tags.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "plate":
		return "must look like ABC 1234"
	case "license":
		return "must look like N01-23-456789"
	case "phone":
		return "must be a mobile number like 09171234567"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "eqfield":
		return "must match " + strings.ToLower(fe.Param())
	case "lte", "lt":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
