package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Patient is a registered patient record.
type Patient struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Age           int             `json:"age"`
	Gender        string          `json:"gender"`
	WeightKg      float64         `json:"weight_kg"`
	HeightCm      float64         `json:"height_cm"`
	ActivityLevel string          `json:"activity_level"`
	Profile       ClinicalProfile `json:"-"`
	Goal          string          `json:"health_goal"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Condition returns the display name of the patient's condition.
func (p *Patient) Condition() string {
	return ProfileValue(p.Profile).Condition()
}

// ClinicalProfile is one of GeneralProfile, DiabetesProfile, HypertensionProfile,
// AnaemiaProfile, PCOSProfile or ObesityProfile.
type ClinicalProfile interface {
	Condition() string
	kind() string
}

// GeneralProfile covers any condition without dedicated markers.
type GeneralProfile struct {
	Label   string            `json:"label,omitempty"`
	Metrics map[string]string `json:"metrics,omitempty"`
}

type DiabetesProfile struct {
	HbA1c      float64 `json:"hba1c"`
	Medication string  `json:"medication"`
}

type HypertensionProfile struct {
	Systolic  int `json:"bp_systolic"`
	Diastolic int `json:"bp_diastolic"`
}

type AnaemiaProfile struct {
	Hemoglobin float64  `json:"hemoglobin"`
	Symptoms   []string `json:"symptoms"`
}

type PCOSProfile struct {
	Cycle      string `json:"periods"`
	WeightGain bool   `json:"weight_gain"`
}

type ObesityProfile struct {
	BMI          float64 `json:"bmi"`
	TargetWeight float64 `json:"target_weight"`
}

func (g GeneralProfile) Condition() string {
	if g.Label == "" {
		return "General Health"
	}
	return g.Label
}
func (DiabetesProfile) Condition() string     { return "Type 2 Diabetes" }
func (HypertensionProfile) Condition() string { return "Hypertension" }
func (AnaemiaProfile) Condition() string      { return "Anaemia" }
func (PCOSProfile) Condition() string         { return "PCOS" }
func (ObesityProfile) Condition() string      { return "Obesity" }

func (GeneralProfile) kind() string      { return "general" }
func (DiabetesProfile) kind() string     { return "diabetes" }
func (HypertensionProfile) kind() string { return "hypertension" }
func (AnaemiaProfile) kind() string      { return "anaemia" }
func (PCOSProfile) kind() string         { return "pcos" }
func (ObesityProfile) kind() string      { return "obesity" }

// ProfileValue returns p with pointer variants dereferenced. A nil profile, or a nil
// pointer to one, is GeneralProfile.
func ProfileValue(p ClinicalProfile) ClinicalProfile {
	switch v := p.(type) {
	case nil:
		return GeneralProfile{}
	case *GeneralProfile:
		if v != nil {
			return *v
		}
	case *DiabetesProfile:
		if v != nil {
			return *v
		}
	case *HypertensionProfile:
		if v != nil {
			return *v
		}
	case *AnaemiaProfile:
		if v != nil {
			return *v
		}
	case *PCOSProfile:
		if v != nil {
			return *v
		}
	case *ObesityProfile:
		if v != nil {
			return *v
		}
	default:
		return p
	}
	return GeneralProfile{}
}

type profileEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeProfile serializes a profile with its kind tag.
func EncodeProfile(p ClinicalProfile) ([]byte, error) {
	p = ProfileValue(p)
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return json.Marshal(profileEnvelope{Kind: p.kind(), Data: data})
}

// DecodeProfile is the inverse of EncodeProfile. Empty input decodes to GeneralProfile.
func DecodeProfile(raw []byte) (ClinicalProfile, error) {
	if len(raw) == 0 {
		return GeneralProfile{}, nil
	}
	var env profileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	var (
		p   ClinicalProfile
		err error
	)
	switch env.Kind {
	case "diabetes":
		var v DiabetesProfile
		err = unmarshalData(env.Data, &v)
		p = v
	case "hypertension":
		var v HypertensionProfile
		err = unmarshalData(env.Data, &v)
		p = v
	case "anaemia":
		var v AnaemiaProfile
		err = unmarshalData(env.Data, &v)
		p = v
	case "pcos":
		var v PCOSProfile
		err = unmarshalData(env.Data, &v)
		p = v
	case "obesity":
		var v ObesityProfile
		err = unmarshalData(env.Data, &v)
		p = v
	case "general", "":
		var v GeneralProfile
		err = unmarshalData(env.Data, &v)
		p = v
	default:
		return nil, fmt.Errorf("decode profile: unknown kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s profile: %w", env.Kind, err)
	}
	return p, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
