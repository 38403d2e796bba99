// Package formschema models a form template's pages and fields as stored in a template's structure JSON.
package formschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"formintake/internal/errorz"
)

// FieldType is the closed set of input kinds a field may declare.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeEmail    FieldType = "email"
	TypeTel      FieldType = "tel"
	TypePhone    FieldType = "phone"
	TypeDate     FieldType = "date"
	TypeNumber   FieldType = "number"
	TypeTextarea FieldType = "textarea"
	TypeSelect   FieldType = "select"
	TypeRadio    FieldType = "radio"
	TypeCheckbox FieldType = "checkbox"
)

var knownTypes = map[FieldType]struct{}{
	TypeText: {}, TypeEmail: {}, TypeTel: {}, TypePhone: {}, TypeDate: {},
	TypeNumber: {}, TypeTextarea: {}, TypeSelect: {}, TypeRadio: {}, TypeCheckbox: {},
}

// Known reports whether t is one of the supported field types.
func (t FieldType) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// Normalize lowercases and trims the type as generators emit "Text" or " email ".
func (t FieldType) Normalize() FieldType {
	return FieldType(strings.ToLower(strings.TrimSpace(string(t))))
}

type Schema struct {
	FormName    string `json:"formName"`
	Description string `json:"description"`
	Pages       []Page `json:"pages"`
}

type Page struct {
	PageNumber int     `json:"pageNumber"`
	Title      string  `json:"title"`
	Fields     []Field `json:"fields"`
}

type Field struct {
	ID          string      `json:"id"`
	Type        FieldType   `json:"type"`
	Label       string      `json:"label"`
	Placeholder string      `json:"placeholder,omitempty"`
	Required    bool        `json:"required"`
	Validation  *Validation `json:"validation,omitempty"`
	Position    *Position   `json:"position,omitempty"`
}

type Validation struct {
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Options   []string `json:"options,omitempty"`
}

// Position is a layout hint copied from the source document. Nothing enforces it.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Options returns the declared options, or nil when the field has none.
func (f Field) Options() []string {
	if f.Validation == nil {
		return nil
	}
	return f.Validation.Options
}

// IsMultiSelect reports whether a checkbox answer is a set of options rather than a boolean.
func (f Field) IsMultiSelect() bool {
	return f.Type.Normalize() == TypeCheckbox && len(f.Options()) > 0
}

var (
	ErrSchemaParse = errors.New("schema parse error")
	ErrSchemaCheck = errors.New("schema check failed")
)

// SchemaParseError is returned when structure JSON cannot be used as a form.
type SchemaParseError struct {
	Reason string
	Err    error
}

func (e *SchemaParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid form schema: %s: %v", e.Reason, e.Err)
	}
	return "invalid form schema: " + e.Reason
}

func (e *SchemaParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSchemaParse, e.Err}
	}
	return []error{ErrSchemaParse}
}

// PageNotFoundError is returned by Page for numbers outside [1, TotalPages].
type PageNotFoundError struct {
	PageNumber int
	TotalPages int
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("page %d not found (form has %d pages)", e.PageNumber, e.TotalPages)
}

func (e *PageNotFoundError) Unwrap() error { return errorz.ErrNotFound }

// Parse decodes structure JSON. Only malformed JSON or a missing/empty page list is rejected.
func Parse(jsonText string) (*Schema, error) {
	if strings.TrimSpace(jsonText) == "" {
		return nil, &SchemaParseError{Reason: "empty document"}
	}

	var s Schema
	if err := json.Unmarshal([]byte(jsonText), &s); err != nil {
		return nil, &SchemaParseError{Reason: "malformed json", Err: err}
	}
	if len(s.Pages) == 0 {
		return nil, &SchemaParseError{Reason: "pages missing or empty"}
	}

	return &s, nil
}

// Serialize encodes s back to structure JSON.
func Serialize(s *Schema) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to serialize schema: %w", err)
	}
	return string(b), nil
}

func (s *Schema) TotalPages() int {
	return len(s.Pages)
}

// Page returns the page at 1-based position n.
func (s *Schema) Page(n int) (*Page, error) {
	if n < 1 || n > len(s.Pages) {
		return nil, &PageNotFoundError{PageNumber: n, TotalPages: len(s.Pages)}
	}
	return &s.Pages[n-1], nil
}

// Fields lists every field in page order, then declared order.
func (s *Schema) Fields() []Field {
	var out []Field
	for _, p := range s.Pages {
		out = append(out, p.Fields...)
	}
	return out
}

// PageOf returns the page number holding field id, or 0.
func (s *Schema) PageOf(id string) int {
	for i, p := range s.Pages {
		for _, f := range p.Fields {
			if f.ID == id {
				return i + 1
			}
		}
	}
	return 0
}

// Check applies the structural rules Parse leaves out. Use it before trusting generated
// or client-supplied structures.
func (s *Schema) Check() error {
	var problems []string
	seen := make(map[string]int)

	for i, p := range s.Pages {
		if p.PageNumber != i+1 {
			problems = append(problems, fmt.Sprintf("page at index %d has pageNumber %d, want %d", i, p.PageNumber, i+1))
		}
		for _, f := range p.Fields {
			if strings.TrimSpace(f.ID) == "" {
				problems = append(problems, fmt.Sprintf("page %d has a field without id", p.PageNumber))
				continue
			}
			if prev, dup := seen[f.ID]; dup {
				problems = append(problems, fmt.Sprintf("field id %q repeated on pages %d and %d", f.ID, prev, p.PageNumber))
			}
			seen[f.ID] = p.PageNumber

			switch f.Type.Normalize() {
			case TypeSelect, TypeRadio:
				if len(f.Options()) == 0 {
					problems = append(problems, fmt.Sprintf("field %q of type %s has no options", f.ID, f.Type))
				}
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrSchemaCheck, strings.Join(problems, "; "))
	}
	return nil
}
