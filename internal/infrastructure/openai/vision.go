package openai

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nutriscan/backend/internal/domain"
)

const visionPrompt = `Analyze this image of a food and provide the following information in JSON format:

{
  "name": "Name of the food",
  "type": "Type (fruit, vegetable, drink, snack, dish, etc.)",
  "estimatedWeight": "Estimated weight in grams",
  "estimatedCalories": "Estimated calories per 100g",
  "nutritionalInfo": {
    "proteins": "Proteins in g per 100g",
    "carbs": "Carbohydrates in g per 100g",
    "fats": "Fats in g per 100g",
    "fiber": "Fiber in g per 100g",
    "sugar": "Sugars in g per 100g"
  },
  "healthBenefits": ["Benefit 1", "Benefit 2"],
  "healthRisks": ["Risk 1", "Risk 2"],
  "recommendations": "Consumption recommendations",
  "description": "Detailed description of the food"
}

Be precise with the weight and calorie estimates based on the size visible in the image.`

// Vision asks the vision model to identify the food in an image.
type Vision struct {
	client    *Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

var _ domain.FoodDetector = (*Vision)(nil)

// NewVision creates the food vision client.
func NewVision(client *Client, cfg Config) *Vision {
	return &Vision{
		client:    client,
		model:     cfg.VisionModel,
		maxTokens: cfg.VisionMaxTokens,
		logger:    client.logger,
	}
}

// Detect sends the image and parses the JSON record embedded in the reply.
// Only credential and transport failures are errors; an unparseable reply
// degrades to a placeholder record carrying the raw text.
func (v *Vision) Detect(ctx context.Context, imageDataURI string) (*domain.FoodDetection, error) {
	if imageDataURI == "" {
		return nil, domain.ErrInvalidInput
	}

	reply, err := v.client.complete(ctx, chatRequest{
		Model: v.model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: visionPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: imageDataURI}},
				},
			},
		},
		MaxTokens: v.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	detection, ok := ParseDetection(reply)
	if !ok {
		v.logger.Warn("vision reply had no parseable JSON, degrading", "reply_length", len(reply))
	}
	return detection, nil
}

// ParseDetection extracts the first top-level JSON object from reply. ok is
// false when the degraded record was returned instead.
func ParseDetection(reply string) (*domain.FoodDetection, bool) {
	object, found := ExtractJSONObject(reply)
	if !found {
		return domain.DegradedDetection(reply), false
	}

	var detection domain.FoodDetection
	if err := json.Unmarshal([]byte(object), &detection); err != nil {
		return domain.DegradedDetection(reply), false
	}
	return &detection, true
}

// ExtractJSONObject returns the first balanced {...} in text. Braces inside
// JSON strings, including escaped quotes, do not count.
func ExtractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if start < 0 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
