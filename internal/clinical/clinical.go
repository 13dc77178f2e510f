// Package clinical renders a patient's record into the context block handed to the model.
package clinical

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/nutriguide/internal/models"
	"github.com/hyperjump/nutriguide/internal/storage"
	"github.com/hyperjump/nutriguide/pkg/utils"
	"go.uber.org/zap"
)

// GeneralPublic is the context used when no patient record is available.
const GeneralPublic = "PATIENT CONTEXT: General Public (No specific medical history)"

// Formatter looks up patients and renders their clinical context.
type Formatter struct {
	patients storage.PatientStore
	logger   *zap.Logger
}

// NewFormatter returns a formatter reading from patients. A nil logger is a no-op.
func NewFormatter(patients storage.PatientStore, logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{patients: patients, logger: logger}
}

// PatientContext returns the rendered context for the named patient. It never fails:
// an empty name, an unknown patient or a store error yield GeneralPublic.
func (f *Formatter) PatientContext(ctx context.Context, name string) string {
	if strings.TrimSpace(name) == "" || f.patients == nil {
		return GeneralPublic
	}
	p, err := f.patients.GetPatient(ctx, name)
	if err != nil {
		f.logger.Debug("patient context unavailable", zap.String("patient", name), zap.Error(err))
		return GeneralPublic
	}
	return Render(p)
}

// Render formats a patient record as PATIENT CONTEXT and CLINICAL PROFILE sections.
func Render(p *models.Patient) string {
	var b strings.Builder
	b.WriteString("PATIENT CONTEXT:\n")
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Demographics: %d years old, %s\n", p.Age, p.Gender)
	fmt.Fprintf(&b, "- Body: %skg, %scm (Activity: %s)\n\n", num(p.WeightKg), num(p.HeightCm), p.ActivityLevel)
	b.WriteString("CLINICAL PROFILE:\n")
	fmt.Fprintf(&b, "- Condition: %s\n", p.Condition())
	fmt.Fprintf(&b, "- Clinical Markers: %s\n", Markers(p.Profile))
	fmt.Fprintf(&b, "- Goal: %s", p.Goal)
	return b.String()
}

// Markers renders the condition-specific markers of profile.
func Markers(profile models.ClinicalProfile) string {
	switch v := models.ProfileValue(profile).(type) {
	case models.DiabetesProfile:
		return fmt.Sprintf("HbA1c: %s%% | Medication: %s", num(v.HbA1c), v.Medication)
	case models.HypertensionProfile:
		return fmt.Sprintf("BP: %d/%d mmHg", v.Systolic, v.Diastolic)
	case models.AnaemiaProfile:
		return fmt.Sprintf("Hemoglobin: %s g/dL | Symptoms: %s", num(v.Hemoglobin), strings.Join(v.Symptoms, ", "))
	case models.PCOSProfile:
		gain := "No"
		if v.WeightGain {
			gain = "Yes"
		}
		return fmt.Sprintf("Cycle: %s | Weight Gain: %s", v.Cycle, gain)
	case models.ObesityProfile:
		return fmt.Sprintf("BMI: %s | Target: %skg", num(v.BMI), num(v.TargetWeight))
	case models.GeneralProfile:
		return generalMetrics(v.Metrics)
	default:
		return generalMetrics(nil)
	}
}

func generalMetrics(metrics map[string]string) string {
	if len(metrics) == 0 {
		return "No specific metrics"
	}
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + metrics[k]
	}
	return strings.Join(parts, ", ")
}

// BMI returns weight / height² rounded to one decimal, or 0 without a height.
func BMI(weightKg, heightCm float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return utils.Round(weightKg/(m*m), 1)
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
