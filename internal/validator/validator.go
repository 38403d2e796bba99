// Package validator performs the server-side check run before a draft may be submitted.
// Only presence of required answers is enforced; format rules are client hints.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"formintake/internal/answers"
	"formintake/internal/formschema"
)

var ErrMalformedInput = errors.New("malformed form input")

type FieldError struct {
	FieldID string `json:"fieldId"`
	Label   string `json:"label"`
	Page    int    `json:"page"`
	Message string `json:"message"`
}

// FieldValidationError carries every failing field so the caller can annotate each one.
type FieldValidationError struct {
	Errors []FieldError
}

func (e *FieldValidationError) Error() string {
	ids := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		ids = append(ids, fe.FieldID)
	}
	return fmt.Sprintf("%d required field(s) missing: %s", len(e.Errors), strings.Join(ids, ", "))
}

// Validate returns one FieldError per required field that has no answer, in schema order.
func Validate(s *formschema.Schema, ans answers.Map) []FieldError {
	var errs []FieldError
	for i, page := range s.Pages {
		for _, f := range page.Fields {
			if !f.Required {
				continue
			}
			v, ok := ans.Get(f.ID)
			if ok && !blank(f, v) {
				continue
			}
			label := f.Label
			if label == "" {
				label = f.ID
			}
			errs = append(errs, FieldError{
				FieldID: f.ID,
				Label:   label,
				Page:    i + 1,
				Message: label + " is required",
			})
		}
	}
	return errs
}

// blank treats a stored multi-select answer by its items: once persisted a list comes
// back as its encoded string, and "[]" carries no choice.
func blank(f formschema.Field, v answers.Value) bool {
	if f.IsMultiSelect() && v.Kind() == answers.KindScalar {
		var items []string
		if err := json.Unmarshal([]byte(v.String()), &items); err == nil {
			return answers.List(items...).Blank()
		}
	}
	return v.Blank()
}

// Check is Validate returning an error value.
func Check(s *formschema.Schema, ans answers.Map) error {
	if errs := Validate(s, ans); len(errs) > 0 {
		return &FieldValidationError{Errors: errs}
	}
	return nil
}

// ValidateJSON validates stored documents directly. Unreadable input is never valid.
func ValidateJSON(schemaJSON, answerJSON string) ([]FieldError, error) {
	s, err := formschema.Parse(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	ans, err := answers.DecodeString(answerJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return Validate(s, ans), nil
}
