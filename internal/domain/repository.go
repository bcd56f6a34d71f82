package domain

import (
	"context"
	"time"
)

// CacheRepository stores serialized values with a TTL. Get returns
// ErrCacheMiss for absent or expired keys.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ProductLookup resolves a barcode to a normalized Product.
type ProductLookup interface {
	Lookup(ctx context.Context, code string) (*Product, error)
}

// NutritionEnricher produces free-text nutritional advice for a product.
type NutritionEnricher interface {
	Enrich(ctx context.Context, product *Product) (string, error)
}

// FoodDetector identifies a food in an image given as a data URI.
type FoodDetector interface {
	Detect(ctx context.Context, imageDataURI string) (*FoodDetection, error)
}
