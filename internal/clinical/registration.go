package clinical

import (
	"errors"
	"strings"

	"github.com/hyperjump/nutriguide/internal/models"
)

// Registration is the input for registering a patient. The condition selects which
// marker fields are kept.
type Registration struct {
	Name          string  `json:"name"`
	Age           int     `json:"age"`
	Gender        string  `json:"gender"`
	WeightKg      float64 `json:"weight_kg"`
	HeightCm      float64 `json:"height_cm"`
	ActivityLevel string  `json:"activity_level"`
	Condition     string  `json:"condition"`
	Goal          string  `json:"health_goal"`

	HbA1c        float64           `json:"hba1c,omitempty"`
	Medication   string            `json:"medication,omitempty"`
	Systolic     int               `json:"bp_systolic,omitempty"`
	Diastolic    int               `json:"bp_diastolic,omitempty"`
	Hemoglobin   float64           `json:"hemoglobin,omitempty"`
	Symptoms     []string          `json:"symptoms,omitempty"`
	Cycle        string            `json:"periods,omitempty"`
	WeightGain   bool              `json:"weight_gain,omitempty"`
	TargetWeight float64           `json:"target_weight,omitempty"`
	Metrics      map[string]string `json:"metrics,omitempty"`
}

// Patient validates r and builds the patient record. Obesity profiles get their BMI
// from weight and height.
func (r Registration) Patient() (*models.Patient, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	if r.Age < 0 || r.WeightKg < 0 || r.HeightCm < 0 {
		return nil, errors.New("age, weight and height must not be negative")
	}
	return &models.Patient{
		Name:          name,
		Age:           r.Age,
		Gender:        r.Gender,
		WeightKg:      r.WeightKg,
		HeightCm:      r.HeightCm,
		ActivityLevel: r.ActivityLevel,
		Profile:       r.profile(),
		Goal:          r.Goal,
	}, nil
}

func (r Registration) profile() models.ClinicalProfile {
	c := strings.ToLower(strings.TrimSpace(r.Condition))
	switch {
	case strings.Contains(c, "diabetes"):
		return models.DiabetesProfile{HbA1c: r.HbA1c, Medication: r.Medication}
	case strings.Contains(c, "hypertension"), strings.Contains(c, "blood pressure"):
		return models.HypertensionProfile{Systolic: r.Systolic, Diastolic: r.Diastolic}
	case strings.Contains(c, "anaemia"), strings.Contains(c, "anemia"):
		return models.AnaemiaProfile{Hemoglobin: r.Hemoglobin, Symptoms: r.Symptoms}
	case c == "pcos", c == "pcod":
		return models.PCOSProfile{Cycle: r.Cycle, WeightGain: r.WeightGain}
	case strings.Contains(c, "obesity"):
		return models.ObesityProfile{BMI: BMI(r.WeightKg, r.HeightCm), TargetWeight: r.TargetWeight}
	default:
		return models.GeneralProfile{Label: strings.TrimSpace(r.Condition), Metrics: r.Metrics}
	}
}
