package model

import (
	"math"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every record constructor. validator.Validate caches
// struct metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("finite", validateFinite)
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return ValidIdentifier(fl.Field().String())
	})
	_ = v.RegisterValidation("tag", func(fl validator.FieldLevel) bool {
		return ValidateTag(fl.Field().String()) == nil
	})
	return v
}

// validateFinite rejects NaN and ±Inf on float fields (and pointed-to floats).
func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return true
		}
		f = f.Elem()
	}
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		v := f.Float()
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	default:
		return true
	}
}

// ValidIdentifier reports whether s is valid UTF-8 with no control
// characters. Unresolved identifiers become principal ids and are stored.
func ValidIdentifier(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
