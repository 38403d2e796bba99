// Package render turns a parsed form schema and stored answers into display-ready views.
// Nothing here performs I/O; every function is safe to call from request handlers.
package render

import (
	"encoding/json"
	"strings"

	"formintake/internal/answers"
	"formintake/internal/formschema"
)

// ControlKind is the closed set of input controls a field renders as.
type ControlKind string

const (
	ControlInput         ControlKind = "input"
	ControlTextarea      ControlKind = "textarea"
	ControlSelect        ControlKind = "select"
	ControlRadio         ControlKind = "radio"
	ControlCheckbox      ControlKind = "checkbox"
	ControlCheckboxGroup ControlKind = "checkbox_group"
)

type OptionView struct {
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

// FieldView is one field ready for display.
type FieldView struct {
	ID              string       `json:"id"`
	Label           string       `json:"label"`
	Placeholder     string       `json:"placeholder,omitempty"`
	Control         ControlKind  `json:"control"`
	InputType       string       `json:"inputType,omitempty"`
	CurrentValue    string       `json:"currentValue"`
	Options         []OptionView `json:"options,omitempty"`
	SelectedOptions []string     `json:"selectedOptions,omitempty"`
	Checked         bool         `json:"checked,omitempty"`
	Required        bool         `json:"required"`

	// Client-side hints. Not enforced by the server.
	Pattern   string `json:"pattern,omitempty"`
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`

	Position *formschema.Position `json:"position,omitempty"`
}

// controlFor maps a declared field type onto a control. Unknown types render as text inputs.
func controlFor(f formschema.Field) (ControlKind, string) {
	switch f.Type.Normalize() {
	case formschema.TypeText:
		return ControlInput, "text"
	case formschema.TypeEmail:
		return ControlInput, "email"
	case formschema.TypeTel, formschema.TypePhone:
		return ControlInput, "tel"
	case formschema.TypeDate:
		return ControlInput, "date"
	case formschema.TypeNumber:
		return ControlInput, "number"
	case formschema.TypeTextarea:
		return ControlTextarea, ""
	case formschema.TypeSelect:
		return ControlSelect, ""
	case formschema.TypeRadio:
		return ControlRadio, ""
	case formschema.TypeCheckbox:
		if f.IsMultiSelect() {
			return ControlCheckboxGroup, ""
		}
		return ControlCheckbox, ""
	default:
		return ControlInput, "text"
	}
}

// RenderField merges a field definition with its stored value. It never fails.
func RenderField(f formschema.Field, value answers.Value) FieldView {
	kind, inputType := controlFor(f)

	view := FieldView{
		ID:          f.ID,
		Label:       f.Label,
		Placeholder: f.Placeholder,
		Control:     kind,
		InputType:   inputType,
		Required:    f.Required,
		Position:    f.Position,
	}
	if f.Validation != nil {
		view.Pattern = f.Validation.Pattern
		view.MinLength = f.Validation.MinLength
		view.MaxLength = f.Validation.MaxLength
	}

	switch kind {
	case ControlInput, ControlTextarea:
		view.CurrentValue = value.String()

	case ControlSelect, ControlRadio:
		view.CurrentValue = value.String()
		view.Options = make([]OptionView, 0, len(f.Options()))
		matched := false
		for _, opt := range f.Options() {
			sel := !matched && !value.IsNull() && opt == view.CurrentValue
			if sel {
				matched = true
				view.SelectedOptions = []string{opt}
			}
			view.Options = append(view.Options, OptionView{Value: opt, Selected: sel})
		}

	case ControlCheckboxGroup:
		chosen := selectedSet(value)
		view.CurrentValue = value.String()
		view.Options = make([]OptionView, 0, len(f.Options()))
		for _, opt := range f.Options() {
			_, sel := chosen[opt]
			if sel {
				view.SelectedOptions = append(view.SelectedOptions, opt)
			}
			view.Options = append(view.Options, OptionView{Value: opt, Selected: sel})
		}

	case ControlCheckbox:
		view.Checked = strings.EqualFold(strings.TrimSpace(value.String()), "true")
		if view.Checked {
			view.CurrentValue = "true"
		} else {
			view.CurrentValue = "false"
		}
	}

	return view
}

// selectedSet reads a multi-select answer. A stored value that is not a JSON string array
// counts as one chosen option so answers saved before multi-select support still show.
func selectedSet(v answers.Value) map[string]struct{} {
	out := map[string]struct{}{}

	switch v.Kind() {
	case answers.KindList:
		for _, item := range v.Items() {
			out[item] = struct{}{}
		}
	case answers.KindScalar:
		raw := v.String()
		if strings.TrimSpace(raw) == "" {
			return out
		}
		var items []string
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			out[raw] = struct{}{}
			return out
		}
		for _, item := range items {
			out[item] = struct{}{}
		}
	}

	return out
}
