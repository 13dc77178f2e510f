// Package e2e provides end-to-end tests over a guideline corpus written to disk in every
// supported format.
package e2e

import (
	"github.com/hyperjump/nutriguide/internal/models"
)

// GuidelineFile is one guideline document of the corpus.
type GuidelineFile struct {
	// Stem is the file name without extension; the extension is chosen per test.
	Stem       string
	Category   models.Category
	Paragraphs []string
}

// QueryTestCase is a question and the guideline file whose chunk must be retrieved for it.
type QueryTestCase struct {
	Query          string
	ExpectedStem   string
	ExpectedTag    models.Category
	Description    string
}

// Corpus holds guideline files and query test cases.
type Corpus struct {
	Files     []GuidelineFile
	TestCases []QueryTestCase
}

// BuildCorpus returns one guideline file per category. Each paragraph uses vocabulary
// that no other file shares, and each query restates one paragraph.
func BuildCorpus() *Corpus {
	files := []GuidelineFile{
		{
			Stem:     "Diabetes_Guide",
			Category: models.CategoryDiabetes,
			Paragraphs: []string{
				"Mango raises blood glucose quickly. Diabetic patients should limit mango to half a cup and pair it with protein.",
				"Whole grains like millet and barley release glucose slowly and help control HbA1c over months.",
			},
		},
		{
			Stem:     "Hypertension_DASH",
			Category: models.CategoryHypertension,
			Paragraphs: []string{
				"The DASH plan caps sodium below 1500 milligrams daily. Avoid pickles, papad and salted snacks.",
				"Potassium from bananas, spinach and coconut water counters sodium and lowers systolic pressure.",
			},
		},
		{
			Stem:     "Anaemia_Iron",
			Category: models.CategoryAnaemia,
			Paragraphs: []string{
				"Iron from jaggery, dates, lentils and green leafy vegetables rebuilds hemoglobin.",
				"Vitamin C from amla or lemon improves iron absorption; avoid tea with meals.",
			},
		},
		{
			Stem:     "PCOS_Nutrition",
			Category: models.CategoryPCOS,
			Paragraphs: []string{
				"Low glycemic index foods such as oats and chickpeas steady insulin in polycystic ovary syndrome.",
				"Seed cycling with flax and pumpkin seeds is popular, though evidence for cycle regulation is limited.",
			},
		},
		{
			Stem:     "Obesity_Weight_Loss",
			Category: models.CategoryObesity,
			Paragraphs: []string{
				"A calorie deficit of five hundred kilocalories per day yields gradual fat loss of half a kilogram weekly.",
			},
		},
		{
			Stem:     "Pregnancy_Maternal_Diet",
			Category: models.CategoryPregnancy,
			Paragraphs: []string{
				"Folic acid before conception and during the first trimester prevents neural tube defects.",
			},
		},
		{
			Stem:     "Healthy_Plate",
			Category: models.CategoryGeneral,
			Paragraphs: []string{
				"Fill half the plate with vegetables, a quarter with protein and a quarter with cereals; drink water.",
			},
		},
	}
	cases := []QueryTestCase{
		{"Can a diabetic patient eat mango and how much?", "Diabetes_Guide", models.CategoryDiabetes, "diabetes mango portion"},
		{"Which whole grains like millet or barley help HbA1c?", "Diabetes_Guide", models.CategoryDiabetes, "diabetes whole grains"},
		{"How much sodium per day does the DASH plan allow?", "Hypertension_DASH", models.CategoryHypertension, "hypertension sodium cap"},
		{"Does potassium from bananas lower systolic pressure?", "Hypertension_DASH", models.CategoryHypertension, "hypertension potassium"},
		{"Which foods like jaggery and dates rebuild hemoglobin iron?", "Anaemia_Iron", models.CategoryAnaemia, "anaemia iron sources"},
		{"Does vitamin C from amla or lemon improve iron absorption?", "Anaemia_Iron", models.CategoryAnaemia, "anaemia absorption"},
		{"Are low glycemic index oats and chickpeas good for polycystic ovary syndrome insulin?", "PCOS_Nutrition", models.CategoryPCOS, "pcos low gi"},
		{"What calorie deficit gives gradual fat loss weekly?", "Obesity_Weight_Loss", models.CategoryObesity, "obesity deficit"},
		{"Why take folic acid in the first trimester?", "Pregnancy_Maternal_Diet", models.CategoryPregnancy, "pregnancy folic acid"},
		{"How should I fill my plate with vegetables, protein and cereals?", "Healthy_Plate", models.CategoryGeneral, "general plate"},
	}
	return &Corpus{Files: files, TestCases: cases}
}
