// Package validation wraps go-playground/validator with field names taken
// from json tags and errors shaped as models.ValidationError.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agentoven/promptplane/pkg/models"
)

// Validator validates tagged structs.
type Validator struct {
	v *validator.Validate
}

// New returns a validator reporting json field names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates s. Tag violations come back as *models.ValidationError
// for entity; anything else is returned as is.
func (x *Validator) Struct(entity string, s any) error {
	err := x.v.Struct(s)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	out := &models.ValidationError{Entity: entity}
	for _, f := range fields {
		out.Add(f.Namespace()[strings.Index(f.Namespace(), ".")+1:], describe(f))
	}
	return out
}

func describe(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be >= %s", f.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", f.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", f.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", f.Param())
	case "url":
		return "must be a URL"
	default:
		return fmt.Sprintf("failed %q", f.Tag())
	}
}
