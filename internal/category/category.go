// Package category derives the clinical category of a guideline file from its name.
package category

import (
	"path/filepath"
	"strings"

	"github.com/hyperjump/nutriguide/internal/models"
)

type rule struct {
	keywords []string
	category models.Category
}

// Order matters: the first matching rule wins.
var rules = []rule{
	{[]string{"diabetes"}, models.CategoryDiabetes},
	{[]string{"hypertension", "blood_pressure"}, models.CategoryHypertension},
	{[]string{"anemia", "iron"}, models.CategoryAnaemia},
	{[]string{"pcos"}, models.CategoryPCOS},
	{[]string{"obesity", "esi"}, models.CategoryObesity},
	{[]string{"pregnancy"}, models.CategoryPregnancy},
	{[]string{"dietary_guidelines", "icmr"}, models.CategoryGeneral},
}

// Categorize returns the category for filename. Only the base name is inspected,
// never the file content. Names matching no rule are general.
func Categorize(filename string) models.Category {
	name := strings.ToLower(filepath.Base(filename))
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return r.category
			}
		}
	}
	return models.CategoryGeneral
}
