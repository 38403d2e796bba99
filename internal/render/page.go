package render

import (
	"errors"
	"fmt"

	"formintake/internal/answers"
	"formintake/internal/formschema"
)

const defaultPageTitle = "Form Page"

var ErrPageOutOfRange = errors.New("page out of range")

type PageOutOfRangeError struct {
	PageNumber int
	TotalPages int
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("invalid page number %d, form has %d pages", e.PageNumber, e.TotalPages)
}

func (e *PageOutOfRangeError) Unwrap() error { return ErrPageOutOfRange }

type PageView struct {
	PageNumber int         `json:"pageNumber"`
	TotalPages int         `json:"totalPages"`
	Title      string      `json:"title"`
	Label      string      `json:"label"`
	Fields     []FieldView `json:"fields"`
	IsFirst    bool        `json:"isFirst"`
	IsLast     bool        `json:"isLast"`
	Notice     string      `json:"notice,omitempty"`
}

// RenderPage renders the fields of one page in declared order.
func RenderPage(s *formschema.Schema, pageNumber int, ans answers.Map) (*PageView, error) {
	page, err := s.Page(pageNumber)
	if err != nil {
		return nil, &PageOutOfRangeError{PageNumber: pageNumber, TotalPages: s.TotalPages()}
	}

	total := s.TotalPages()
	view := &PageView{
		PageNumber: pageNumber,
		TotalPages: total,
		Title:      page.Title,
		Label:      fmt.Sprintf("Page %d of %d", pageNumber, total),
		Fields:     make([]FieldView, 0, len(page.Fields)),
		IsFirst:    pageNumber == 1,
		IsLast:     pageNumber == total,
	}
	if view.Title == "" {
		view.Title = defaultPageTitle
	}

	for _, f := range page.Fields {
		v, _ := ans.Get(f.ID)
		view.Fields = append(view.Fields, RenderField(f, v))
	}
	if len(view.Fields) == 0 {
		view.Notice = "No fields found for this page."
	}

	return view, nil
}

// RenderAll renders every page. Used for read-only review screens.
func RenderAll(s *formschema.Schema, ans answers.Map) []PageView {
	out := make([]PageView, 0, s.TotalPages())
	for n := 1; n <= s.TotalPages(); n++ {
		view, err := RenderPage(s, n, ans)
		if err != nil {
			continue
		}
		out = append(out, *view)
	}
	return out
}
