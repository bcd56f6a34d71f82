package domain

// Placeholders used when the source record lacks a field.
const (
	PlaceholderName        = "Name not available"
	PlaceholderBrand       = "Brand not available"
	PlaceholderQuantity    = "Quantity not available"
	PlaceholderIngredients = "Ingredients not available"
	PlaceholderScore       = "unavailable"
)

// Nutriment keys shown to the user, per 100 g.
const (
	NutrientEnergyKcal    = "energy-kcal_100g"
	NutrientFat           = "fat_100g"
	NutrientCarbohydrates = "carbohydrates_100g"
	NutrientProteins      = "proteins_100g"
	NutrientSalt          = "salt_100g"
	NutrientSugars        = "sugars_100g"
	NutrientFiber         = "fiber_100g"
)

// KeyNutrientKeys is the display allow-list, in display order.
var KeyNutrientKeys = []string{
	NutrientEnergyKcal,
	NutrientFat,
	NutrientCarbohydrates,
	NutrientProteins,
	NutrientSalt,
	NutrientSugars,
	NutrientFiber,
}

// Product is the canonical food record rendered by clients. It has the same
// shape whether it came from a barcode lookup or from image detection.
type Product struct {
	Code        string         `json:"code,omitempty"`
	Name        string         `json:"name"`
	Brands      string         `json:"brands"`
	Quantity    string         `json:"quantity"`
	Image       *string        `json:"image"`
	Ingredients string         `json:"ingredients"`
	Nutriments  map[string]any `json:"nutriments"`
	NutriScore  *string        `json:"nutriScore"`
	EcoScore    *string        `json:"ecoScore"`
	Allergens   []string       `json:"allergens"`
	Additives   []string       `json:"additives"`

	// Set only for products detected from an image.
	Type            string   `json:"type,omitempty"`
	HealthBenefits  []string `json:"healthBenefits,omitempty"`
	HealthRisks     []string `json:"healthRisks,omitempty"`
	Recommendations string   `json:"recommendations,omitempty"`
	Description     string   `json:"description,omitempty"`
}

// NutrientValue is one allow-listed nutriment present on a product.
type NutrientValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// KeyNutrients returns the allow-listed nutriments present on p.
func (p *Product) KeyNutrients() []NutrientValue {
	out := make([]NutrientValue, 0, len(KeyNutrientKeys))
	for _, key := range KeyNutrientKeys {
		v, ok := p.Nutriments[key]
		if !ok || v == nil {
			continue
		}
		out = append(out, NutrientValue{Key: key, Value: v})
	}
	return out
}

// IsGrade reports whether s is a single-letter score between a and e.
func IsGrade(s string) bool {
	return len(s) == 1 && s[0] >= 'a' && s[0] <= 'e'
}
