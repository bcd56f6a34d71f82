package domain

import (
	"encoding/json"
	"strings"
)

// OFF status values of the product endpoint.
const (
	OFFStatusNotFound = 0
	OFFStatusFound    = 1
)

// OFFProductResponse is the Open Food Facts product endpoint reply.
type OFFProductResponse struct {
	Code          string      `json:"code"`
	Status        int         `json:"status"`
	StatusVerbose string      `json:"status_verbose"`
	Product       *OFFProduct `json:"product"`
}

// OFFProduct is the subset of an Open Food Facts product record we read.
type OFFProduct struct {
	ProductName      string         `json:"product_name"`
	IngredientsText  string         `json:"ingredients_text"`
	ImageFrontURL    string         `json:"image_front_url"`
	ImageURL         string         `json:"image_url"`
	Nutriments       map[string]any `json:"nutriments"`
	NutritionGradeFR string         `json:"nutrition_grade_fr"`
	NutriscoreGrade  string         `json:"nutriscore_grade"`
	EcoscoreGrade    string         `json:"ecoscore_grade"`
	Brands           string         `json:"brands"`
	Quantity         string         `json:"quantity"`
	AllergensTags    []string       `json:"allergens_tags"`
	AdditivesTags    []string       `json:"additives_tags"`

	// Per-language variants keyed by language code ("es", "fr", ...),
	// taken from product_name_<lc> and ingredients_text_<lc>.
	LocalizedNames       map[string]string `json:"-"`
	LocalizedIngredients map[string]string `json:"-"`
}

// UnmarshalJSON decodes the fixed fields and collects localized variants.
func (p *OFFProduct) UnmarshalJSON(data []byte) error {
	type plain OFFProduct
	var base plain
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = OFFProduct(base)
	p.LocalizedNames = collectLocalized(raw, "product_name_")
	p.LocalizedIngredients = collectLocalized(raw, "ingredients_text_")
	return nil
}

func collectLocalized(raw map[string]json.RawMessage, prefix string) map[string]string {
	out := make(map[string]string)
	for key, value := range raw {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil || s == "" {
			continue
		}
		out[strings.TrimPrefix(key, prefix)] = s
	}
	return out
}
