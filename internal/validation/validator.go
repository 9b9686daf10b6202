// Package validation provides HTTP request validation utilities using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	domainerrors "github.com/upnorway/sanity-plugin-media/internal/errors"
)

// Tag name length bounds, counted in runes after normalization.
const (
	MinTagNameLength = 1
	MaxTagNameLength = 100
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		// Remove options like omitempty, -
		if i := strings.IndexByte(name, ','); i >= 0 {
			return name[:i]
		}
		return name
	})

	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("tagname", func(fl validator.FieldLevel) bool {
		return validTagName(fl.Field().String())
	})

	return &Validator{v: v}
}

// NormalizeTagName trims surrounding whitespace and converts the name to NFC
// so visually identical names compare equal.
func NormalizeTagName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func validTagName(name string) bool {
	n := utf8.RuneCountInString(NormalizeTagName(name))
	return n >= MinTagNameLength && n <= MaxTagNameLength
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "tagname":
		return fmt.Sprintf("must be between %d and %d characters", MinTagNameLength, MaxTagNameLength)
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "startsnotwith":
		return "must not start with " + e.Param()
	default:
		return "is invalid"
	}
}
