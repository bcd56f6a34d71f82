package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Unspecified fills every structured field of a degraded detection.
const Unspecified = "Unspecified"

// Estimate is a model-produced estimate. Vision replies use strings
// ("150 g") or bare numbers (150); numbers keep their literal text.
type Estimate string

// UnmarshalJSON accepts a JSON string, number, boolean or null.
func (e *Estimate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*e = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = Estimate(s)
		return nil
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return fmt.Errorf("estimate must be a string or number, got %c", data[0])
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*e = Estimate(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b {
		*e = "true"
	} else {
		*e = "false"
	}
	return nil
}

// NutritionalInfo holds per-100 g estimates from a vision reply.
type NutritionalInfo struct {
	Proteins Estimate `json:"proteins"`
	Carbs    Estimate `json:"carbs"`
	Fats     Estimate `json:"fats"`
	Fiber    Estimate `json:"fiber"`
	Sugar    Estimate `json:"sugar"`
}

// FoodDetection is the structured record a vision model is asked to return.
type FoodDetection struct {
	Name              string          `json:"name"`
	Type              string          `json:"type"`
	EstimatedWeight   Estimate        `json:"estimatedWeight"`
	EstimatedCalories Estimate        `json:"estimatedCalories"`
	NutritionalInfo   NutritionalInfo `json:"nutritionalInfo"`
	HealthBenefits    []string        `json:"healthBenefits"`
	HealthRisks       []string        `json:"healthRisks"`
	Recommendations   string          `json:"recommendations"`
	Description       string          `json:"description"`
}

// DegradedDetection is returned when a vision reply carries no parseable
// JSON object: every structured field is Unspecified and the raw reply is
// kept as the description.
func DegradedDetection(raw string) *FoodDetection {
	return &FoodDetection{
		Name:              Unspecified,
		Type:              Unspecified,
		EstimatedWeight:   Unspecified,
		EstimatedCalories: Unspecified,
		NutritionalInfo: NutritionalInfo{
			Proteins: Unspecified,
			Carbs:    Unspecified,
			Fats:     Unspecified,
			Fiber:    Unspecified,
			Sugar:    Unspecified,
		},
		HealthBenefits:  []string{Unspecified},
		HealthRisks:     []string{Unspecified},
		Recommendations: Unspecified,
		Description:     raw,
	}
}
