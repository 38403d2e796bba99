package render

import (
	"fmt"

	"formintake/internal/formschema"
)

type StepState string

const (
	StepCompleted StepState = "completed"
	StepActive    StepState = "active"
	StepPending   StepState = "pending"
)

type Step struct {
	Number int       `json:"number"`
	Title  string    `json:"title"`
	State  StepState `json:"state"`
}

type Progress struct {
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	Percentage  int    `json:"percentage"`
	Label       string `json:"label"`
	Steps       []Step `json:"steps"`
}

// ComputeProgress reports how far an in-progress submission is through the form.
// A single-page form reads 0% until it is complete; see CompletedProgress.
func ComputeProgress(s *formschema.Schema, currentPage int) Progress {
	total := s.TotalPages()

	denom := total - 1
	if denom < 1 {
		denom = 1
	}
	pct := ((currentPage - 1) * 100) / denom
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	p := Progress{
		CurrentPage: currentPage,
		TotalPages:  total,
		Percentage:  pct,
		Label:       fmt.Sprintf("Step %d of %d", currentPage, total),
		Steps:       make([]Step, 0, total),
	}

	for i := 1; i <= total; i++ {
		state := StepPending
		switch {
		case i < currentPage:
			state = StepCompleted
		case i == currentPage:
			state = StepActive
		}
		p.Steps = append(p.Steps, Step{Number: i, Title: stepTitle(s, i), State: state})
	}

	return p
}

// CompletedProgress is the view for a submission that has been submitted.
func CompletedProgress(s *formschema.Schema) Progress {
	total := s.TotalPages()
	p := Progress{
		CurrentPage: total,
		TotalPages:  total,
		Percentage:  100,
		Label:       fmt.Sprintf("Step %d of %d", total, total),
		Steps:       make([]Step, 0, total),
	}
	for i := 1; i <= total; i++ {
		p.Steps = append(p.Steps, Step{Number: i, Title: stepTitle(s, i), State: StepCompleted})
	}
	return p
}

func stepTitle(s *formschema.Schema, n int) string {
	for _, page := range s.Pages {
		if page.PageNumber == n && page.Title != "" {
			return page.Title
		}
	}
	return fmt.Sprintf("Step %d", n)
}
