package render

import (
	"fmt"
	"runtime/debug"

	"formintake/internal/answers"
	"formintake/internal/formschema"
)

// Diagnostic replaces a page that could not be rendered. It carries the raw structure
// JSON and a trace for support staff.
type Diagnostic struct {
	TemplateID string `json:"templateId"`
	PageNumber int    `json:"pageNumber"`
	Message    string `json:"error"`
	SchemaJSON string `json:"schemaJson"`
	Trace      string `json:"trace"`
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("render template %s page %d: %s", d.TemplateID, d.PageNumber, d.Message)
}

// RenderPageSafe parses and renders in one step. Exactly one of the results is non-nil.
// Unreadable answer data renders as an empty form rather than failing.
func RenderPageSafe(templateID, schemaJSON string, pageNumber int, answerJSON string) (view *PageView, diag *Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			view = nil
			diag = &Diagnostic{
				TemplateID: templateID,
				PageNumber: pageNumber,
				Message:    fmt.Sprintf("panic: %v", r),
				SchemaJSON: schemaJSON,
				Trace:      string(debug.Stack()),
			}
		}
	}()

	fail := func(err error) (*PageView, *Diagnostic) {
		return nil, &Diagnostic{
			TemplateID: templateID,
			PageNumber: pageNumber,
			Message:    err.Error(),
			SchemaJSON: schemaJSON,
			Trace:      fmt.Sprintf("%+v\n\n%s", err, debug.Stack()),
		}
	}

	s, err := formschema.Parse(schemaJSON)
	if err != nil {
		return fail(err)
	}

	ans, err := answers.DecodeString(answerJSON)
	if err != nil {
		ans = answers.Map{}
	}

	v, err := RenderPage(s, pageNumber, ans)
	if err != nil {
		return fail(err)
	}
	return v, nil
}
