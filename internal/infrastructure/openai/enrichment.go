package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/nutriscan/backend/internal/domain"
)

const nutritionistSystemPrompt = "You are a friendly, approachable nutritionist who gives practical advice about food."

// promptNutrients are the nutriments embedded in the advice prompt.
var promptNutrients = []string{
	domain.NutrientEnergyKcal,
	domain.NutrientFat,
	domain.NutrientCarbohydrates,
	domain.NutrientProteins,
	domain.NutrientSalt,
	domain.NutrientSugars,
}

// Enricher asks the text model for free-text advice about a product.
type Enricher struct {
	client      *Client
	model       string
	maxTokens   int
	temperature float64
}

var _ domain.NutritionEnricher = (*Enricher)(nil)

// NewEnricher creates the nutritional enrichment client.
func NewEnricher(client *Client, cfg Config) *Enricher {
	return &Enricher{
		client:      client,
		model:       cfg.TextModel,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Enrich returns the model's reply verbatim.
func (e *Enricher) Enrich(ctx context.Context, product *domain.Product) (string, error) {
	if product == nil {
		return "", domain.ErrInvalidInput
	}

	temperature := e.temperature
	return e.client.complete(ctx, chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: nutritionistSystemPrompt},
			{Role: "user", Content: BuildAnalysisPrompt(product)},
		},
		MaxTokens:   e.maxTokens,
		Temperature: &temperature,
	})
}

// BuildAnalysisPrompt embeds the product facts into the advice request.
func BuildAnalysisPrompt(p *domain.Product) string {
	var b strings.Builder
	b.WriteString("Analyze this food product in a friendly, approachable way, like a nutritionist advising a friend:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Brand: %s\n", p.Brands)
	fmt.Fprintf(&b, "Quantity: %s\n", p.Quantity)
	fmt.Fprintf(&b, "Ingredients: %s\n", p.Ingredients)
	fmt.Fprintf(&b, "Nutri-Score: %s\n", scoreOrPlaceholder(p.NutriScore))
	fmt.Fprintf(&b, "Eco-Score: %s\n\n", scoreOrPlaceholder(p.EcoScore))
	fmt.Fprintf(&b, "Main nutrients:\n%s\n\n", formatNutrients(p.Nutriments))
	b.WriteString("Provide an analysis that includes:\n")
	b.WriteString("1. Overall assessment of the product\n")
	b.WriteString("2. Positive and negative points\n")
	b.WriteString("3. Consumption recommendations\n")
	b.WriteString("4. Healthier alternatives if applicable\n\n")
	b.WriteString("Keep a warm, easy-to-understand tone, 200 words maximum.")
	return b.String()
}

func scoreOrPlaceholder(score *string) string {
	if score == nil || *score == "" {
		return domain.PlaceholderScore
	}
	return *score
}

// formatNutrients renders "energy kcal: 539, fat: 30.9" in allow-list order.
func formatNutrients(nutriments map[string]any) string {
	parts := make([]string, 0, len(promptNutrients))
	for _, key := range promptNutrients {
		value, ok := nutriments[key]
		if !ok || value == nil {
			continue
		}
		label := strings.ReplaceAll(strings.TrimSuffix(key, "_100g"), "-", " ")
		parts = append(parts, fmt.Sprintf("%s: %v", label, value))
	}
	return strings.Join(parts, ", ")
}
