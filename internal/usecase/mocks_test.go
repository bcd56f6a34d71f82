package usecase

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nutriscan/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string][]byte
	getError error
	setError error
	sets     int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockProductLookup is a mock implementation of domain.ProductLookup
type MockProductLookup struct {
	product *domain.Product
	err     error
	panics  bool
	block   chan struct{}
	calls   atomic.Int32
}

func (m *MockProductLookup) Lookup(ctx context.Context, code string) (*domain.Product, error) {
	m.calls.Add(1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrRequestFailed, ctx.Err())
		}
	}
	if m.panics {
		panic("lookup exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.product, nil
}

// MockEnricher is a mock implementation of domain.NutritionEnricher
type MockEnricher struct {
	analysis string
	err      error
	calls    atomic.Int32
}

func (m *MockEnricher) Enrich(ctx context.Context, product *domain.Product) (string, error) {
	m.calls.Add(1)
	if m.err != nil {
		return "", m.err
	}
	return m.analysis, nil
}

// MockDetector is a mock implementation of domain.FoodDetector
type MockDetector struct {
	detection *domain.FoodDetection
	err       error
	calls     atomic.Int32
	lastURI   string
}

func (m *MockDetector) Detect(ctx context.Context, imageDataURI string) (*domain.FoodDetection, error) {
	m.calls.Add(1)
	m.lastURI = imageDataURI
	if m.err != nil {
		return nil, m.err
	}
	return m.detection, nil
}

// MockSearcher records the identifiers handed to Search
type MockSearcher struct {
	mu          sync.Mutex
	identifiers []string
}

func (m *MockSearcher) Search(ctx context.Context, identifier string) domain.SearchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identifiers = append(m.identifiers, identifier)
	return domain.SearchState{Query: identifier, Product: &domain.Product{Code: identifier}}
}

func (m *MockSearcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.identifiers...)
}

// MockCamera hands out a stream over a channel controlled by the test
type MockCamera struct {
	err       error
	streamErr error
	frames    chan image.Image
	acquires  atomic.Int32
	closes    atomic.Int32
}

func NewMockCamera(buffer int) *MockCamera {
	return &MockCamera{frames: make(chan image.Image, buffer)}
}

func (m *MockCamera) Acquire(ctx context.Context) (domain.VideoStream, error) {
	m.acquires.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &mockStream{camera: m}, nil
}

type mockStream struct {
	camera *MockCamera
}

func (s *mockStream) Frames() <-chan image.Image { return s.camera.frames }

func (s *mockStream) Err() error { return s.camera.streamErr }

func (s *mockStream) Close() error {
	s.camera.closes.Add(1)
	return nil
}

// MockDecoder returns queued codes, one per frame; an empty string is a miss
type MockDecoder struct {
	mu    sync.Mutex
	codes []string
}

func (m *MockDecoder) DecodeFrame(frame image.Image, formats []domain.Symbology) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return "", false
	}
	code := m.codes[0]
	m.codes = m.codes[1:]
	return code, code != ""
}

func testFrame() image.Image {
	return image.NewGray(image.Rect(0, 0, 1, 1))
}
