package openfoodfacts

import (
	"strings"

	"github.com/nutriscan/backend/internal/domain"
)

// MapToProduct converts an Open Food Facts record to the canonical Product.
// Every field prefers the locale variant, then the generic one, then a
// fixed placeholder.
func MapToProduct(code string, p *domain.OFFProduct, locale string) *domain.Product {
	if p == nil {
		p = &domain.OFFProduct{}
	}

	return &domain.Product{
		Code:        code,
		Name:        firstNonEmpty(localized(p.LocalizedNames, locale), p.ProductName, domain.PlaceholderName),
		Brands:      firstNonEmpty(p.Brands, domain.PlaceholderBrand),
		Quantity:    firstNonEmpty(p.Quantity, domain.PlaceholderQuantity),
		Image:       optional(firstNonEmpty(p.ImageFrontURL, p.ImageURL)),
		Ingredients: firstNonEmpty(localized(p.LocalizedIngredients, locale), p.IngredientsText, domain.PlaceholderIngredients),
		Nutriments:  copyNutriments(p.Nutriments),
		NutriScore:  grade(p.NutritionGradeFR, p.NutriscoreGrade),
		EcoScore:    grade(p.EcoscoreGrade),
		Allergens:   nonNil(p.AllergensTags),
		Additives:   nonNil(p.AdditivesTags),
	}
}

func localized(values map[string]string, locale string) string {
	if locale == "" {
		return ""
	}
	return values[strings.ToLower(locale)]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// grade returns the first candidate that is a letter a-e, lower-cased.
// Open Food Facts uses "unknown" and "not-applicable" for missing grades.
func grade(candidates ...string) *string {
	for _, c := range candidates {
		g := strings.ToLower(strings.TrimSpace(c))
		if domain.IsGrade(g) {
			return &g
		}
	}
	return nil
}

func copyNutriments(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
