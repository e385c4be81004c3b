// Package entities binds the concrete regulatory entity types
// (requirements, changes and their embedded milestones) to the
// generic versioned store through entity traits.
package entities

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Entity type tags used across stores and the collaborator registry.
const (
	TypeRequirement = "requirement"
	TypeChange      = "change"
	TypeStakeholder = "stakeholder"
	TypeWave        = "wave"
)

// validationMessages flattens struct-tag validation failures into the
// itemized violation strings the error taxonomy carries.
func validationMessages(err error) []string {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", field))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		default:
			out = append(out, fmt.Sprintf("%s failed '%s' validation", field, fe.Tag()))
		}
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
