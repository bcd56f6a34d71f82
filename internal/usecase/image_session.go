package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/nutriscan/backend/internal/domain"
)

// Presenter publishes a product that did not come from a lookup.
type Presenter interface {
	Present(ctx context.Context, query string, product *domain.Product) domain.SearchState
}

// ImageSessionConfig holds configuration for image capture sessions
type ImageSessionConfig struct {
	MaxImageBytes int64
}

// ImageSession analyzes one still image and presents the detected food as
// the current product, bypassing the food database.
type ImageSession struct {
	detector  domain.FoodDetector
	presenter Presenter
	config    ImageSessionConfig
	logger    *slog.Logger
}

// NewImageSession creates an image session handler.
func NewImageSession(detector domain.FoodDetector, presenter Presenter, config ImageSessionConfig, logger *slog.Logger) *ImageSession {
	if config.MaxImageBytes <= 0 {
		config.MaxImageBytes = 5 * 1024 * 1024
	}
	return &ImageSession{
		detector:  detector,
		presenter: presenter,
		config:    config,
		logger:    logger.With("component", "image-session"),
	}
}

// Analyze checks the image, sends it to the vision client and presents the
// result. Size and type checks happen before any encoding or request.
func (s *ImageSession) Analyze(ctx context.Context, input domain.ImageInput) (domain.SearchState, error) {
	if int64(len(input.Data)) > s.config.MaxImageBytes {
		return domain.SearchState{}, fmt.Errorf("%w: %d bytes", domain.ErrImageTooLarge, len(input.Data))
	}
	if len(input.Data) == 0 {
		return domain.SearchState{}, fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}

	switch input.Source {
	case "":
		input.Source = domain.ImageSourceGallery
	case domain.ImageSourceCamera, domain.ImageSourceGallery:
	default:
		return domain.SearchState{}, fmt.Errorf("%w: unknown image source %q", domain.ErrInvalidInput, input.Source)
	}

	mimeType := mediaType(input.MIMEType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mediaType(http.DetectContentType(input.Data))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.SearchState{}, fmt.Errorf("%w: content type %q is not an image", domain.ErrInvalidInput, mimeType)
	}

	uri := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(input.Data)

	detection, err := s.detector.Detect(ctx, uri)
	if err != nil {
		s.logger.Info("image analysis failed", "source", input.Source, "error", err)
		return domain.SearchState{}, err
	}

	s.logger.Debug("food detected", "source", input.Source, "name", detection.Name)
	return s.presenter.Present(ctx, detection.Name, DetectionToProduct(detection)), nil
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

var leadingNumberPattern = regexp.MustCompile(`^\s*~?\s*(\d+(?:[.,]\d+)?)`)

// DetectionToProduct maps a vision detection onto the product shape. Numeric
// estimates become nutriments; fields a photo cannot tell get placeholders.
func DetectionToProduct(d *domain.FoodDetection) *domain.Product {
	nutriments := make(map[string]any)
	setEstimate(nutriments, domain.NutrientEnergyKcal, d.EstimatedCalories)
	setEstimate(nutriments, domain.NutrientProteins, d.NutritionalInfo.Proteins)
	setEstimate(nutriments, domain.NutrientCarbohydrates, d.NutritionalInfo.Carbs)
	setEstimate(nutriments, domain.NutrientFat, d.NutritionalInfo.Fats)
	setEstimate(nutriments, domain.NutrientFiber, d.NutritionalInfo.Fiber)
	setEstimate(nutriments, domain.NutrientSugars, d.NutritionalInfo.Sugar)

	return &domain.Product{
		Name:            orPlaceholder(d.Name, domain.PlaceholderName),
		Brands:          domain.PlaceholderBrand,
		Quantity:        orPlaceholder(string(d.EstimatedWeight), domain.PlaceholderQuantity),
		Ingredients:     domain.PlaceholderIngredients,
		Nutriments:      nutriments,
		Allergens:       []string{},
		Additives:       []string{},
		Type:            d.Type,
		HealthBenefits:  d.HealthBenefits,
		HealthRisks:     d.HealthRisks,
		Recommendations: d.Recommendations,
		Description:     d.Description,
	}
}

func setEstimate(nutriments map[string]any, key string, e domain.Estimate) {
	m := leadingNumberPattern.FindStringSubmatch(string(e))
	if m == nil {
		return
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return
	}
	nutriments[key] = v
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
