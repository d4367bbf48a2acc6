package template

import (
	_ "embed"
)

//go:embed templates/plan.tmpl
var planTemplate string

// GetPlanTemplate return an example XML plan template
func GetPlanTemplate() string {
	return planTemplate
}
