package formschema

import (
	"fmt"
	"path/filepath"
	"strings"
)

func intPtr(v int) *int { return &v }

// Fallback is the demo form used when generation is unavailable or produced nothing usable.
func Fallback(fileName string) *Schema {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if base == "" || base == "." {
		base = "Untitled Form"
	}

	return &Schema{
		FormName:    base,
		Description: fmt.Sprintf("Demo form generated from %s", fileName),
		Pages: []Page{
			{
				PageNumber: 1,
				Title:      "Basic Information",
				Fields: []Field{
					{ID: "firstName", Type: TypeText, Label: "First Name", Placeholder: "Enter your first name", Required: true,
						Position: &Position{X: 10, Y: 50, Width: 200, Height: 30}},
					{ID: "lastName", Type: TypeText, Label: "Last Name", Placeholder: "Enter your last name", Required: true,
						Position: &Position{X: 250, Y: 50, Width: 200, Height: 30}},
					{ID: "email", Type: TypeEmail, Label: "Email Address", Placeholder: "Enter your email", Required: true,
						Validation: &Validation{Pattern: `^[^\s@]+@[^\s@]+\.[^\s@]+$`, MaxLength: intPtr(254)},
						Position:   &Position{X: 10, Y: 120, Width: 300, Height: 30}},
					{ID: "phone", Type: TypeTel, Label: "Phone Number", Placeholder: "(555) 123-4567",
						Position: &Position{X: 10, Y: 190, Width: 200, Height: 30}},
					{ID: "department", Type: TypeSelect, Label: "Department", Required: true,
						Validation: &Validation{Options: []string{"Human Resources", "Finance", "IT", "Marketing", "Operations", "Other"}},
						Position:   &Position{X: 250, Y: 190, Width: 200, Height: 30}},
				},
			},
			{
				PageNumber: 2,
				Title:      "Additional Details",
				Fields: []Field{
					{ID: "comments", Type: TypeTextarea, Label: "Comments or Additional Information",
						Placeholder: "Please provide any additional information...",
						Position:    &Position{X: 10, Y: 50, Width: 500, Height: 100}},
					{ID: "agreement", Type: TypeCheckbox, Label: "I agree to the terms and conditions", Required: true,
						Position: &Position{X: 10, Y: 200, Width: 300, Height: 20}},
				},
			},
		},
	}
}

// FallbackJSON is Fallback serialized. The demo schema always encodes.
func FallbackJSON(fileName string) string {
	out, _ := Serialize(Fallback(fileName))
	return out
}
