package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nutriscan/backend/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ProductServiceConfig holds configuration for the product service
type ProductServiceConfig struct {
	CacheTTL time.Duration
}

// ProductService resolves barcodes through the cache and the food database.
// Concurrent lookups of the same code share one outbound request.
type ProductService struct {
	cache    domain.CacheRepository
	lookup   domain.ProductLookup
	cacheTTL time.Duration
	group    singleflight.Group
	logger   *slog.Logger
}

var _ domain.ProductLookup = (*ProductService)(nil)

// NewProductService creates a new product service. cache may be nil.
func NewProductService(
	cache domain.CacheRepository,
	lookup domain.ProductLookup,
	config ProductServiceConfig,
	logger *slog.Logger,
) *ProductService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	return &ProductService{
		cache:    cache,
		lookup:   lookup,
		cacheTTL: cacheTTL,
		logger:   logger.With("component", "products"),
	}
}

// Lookup returns the product for code.
// Flow: check cache -> food database (shared per code) -> cache -> return.
// Only found products are cached. The returned product must not be mutated.
func (s *ProductService) Lookup(ctx context.Context, code string) (*domain.Product, error) {
	if code == "" {
		return nil, domain.ErrInvalidInput
	}

	key := cacheKey(code)

	if product, err := s.getFromCache(ctx, key); err == nil {
		s.logger.Debug("cache hit", "code", code)
		return product, nil
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("cache read failed", "code", code, "error", err)
	}

	// The shared call outlives any one caller; the lookup client bounds it
	// with its own timeout.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		product, err := s.lookup.Lookup(shared, code)
		if err != nil {
			return nil, err
		}
		if err := s.setInCache(shared, key, product); err != nil {
			s.logger.Warn("cache write failed", "code", code, "error", err)
		}
		return product, nil
	})

	var val any
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrRequestFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("lookup shared", "code", code)
		}
		val = res.Val
	}

	product, ok := val.(*domain.Product)
	if !ok || product == nil {
		return nil, fmt.Errorf("%w: empty lookup result", domain.ErrProductNotFound)
	}
	return product, nil
}

// cacheKey format: "product:{code}"
func cacheKey(code string) string {
	return "product:" + code
}

func (s *ProductService) getFromCache(ctx context.Context, key string) (*domain.Product, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var product domain.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("decode cached product: %w", err)
	}
	return &product, nil
}

func (s *ProductService) setInCache(ctx context.Context, key string, product *domain.Product) error {
	if s.cache == nil || product == nil {
		return nil
	}

	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.cacheTTL)
}
