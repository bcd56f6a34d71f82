package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nutriscan/backend/internal/domain"
)

// SearchService runs product searches and publishes their outcome to the
// state store: lookup first, then best-effort enrichment.
type SearchService struct {
	lookup     domain.ProductLookup
	enricher   domain.NutritionEnricher
	normalizer *IdentifierNormalizer
	store      *StateStore
	logger     *slog.Logger
}

// NewSearchService creates a search service. enricher may be nil.
func NewSearchService(
	lookup domain.ProductLookup,
	enricher domain.NutritionEnricher,
	normalizer *IdentifierNormalizer,
	store *StateStore,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		lookup:     lookup,
		enricher:   enricher,
		normalizer: normalizer,
		store:      store,
		logger:     logger.With("component", "search"),
	}
}

// Search looks up identifier, enriches the product when possible, and
// returns the settled state. The result is published only if no newer
// search began in the meantime.
func (s *SearchService) Search(ctx context.Context, identifier string) domain.SearchState {
	state := s.store.Begin(strings.TrimSpace(identifier))
	settled, _ := s.store.Settle(s.run(ctx, state, identifier))
	return settled
}

// Present publishes a product obtained without a lookup, e.g. from image
// analysis. No enrichment is attempted.
func (s *SearchService) Present(ctx context.Context, query string, product *domain.Product) domain.SearchState {
	state := s.store.Begin(query)
	if product == nil {
		state = withError(state, domain.MsgGeneric)
	} else {
		state.Product = product
	}
	settled, _ := s.store.Settle(state)
	return settled
}

// State returns the active search state.
func (s *SearchService) State() domain.SearchState {
	return s.store.Current()
}

// Subscribe streams state changes until the returned func is called.
func (s *SearchService) Subscribe() (<-chan domain.SearchState, func()) {
	return s.store.Subscribe()
}

func (s *SearchService) run(ctx context.Context, state domain.SearchState, identifier string) (result domain.SearchState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("search panicked", "query", state.Query, "panic", r)
			result = withError(state, domain.MsgGeneric)
		}
		result.Loading = false
	}()

	code, err := s.normalizer.Normalize(identifier)
	if err != nil {
		return withError(state, domain.UserMessage(err))
	}
	state.Query = code

	product, err := s.lookup.Lookup(ctx, code)
	if err != nil {
		s.logger.Info("lookup failed", "code", code, "error", err)
		return withError(state, domain.UserMessage(err))
	}
	if product == nil {
		return withError(state, domain.MsgNotFound)
	}
	state.Product = product

	if s.enricher == nil {
		return state
	}
	analysis, err := s.enricher.Enrich(ctx, product)
	if err != nil {
		s.logger.Warn("enrichment unavailable", "code", code, "error", err)
		return state
	}
	state.Analysis = &analysis
	return state
}

func withError(state domain.SearchState, msg string) domain.SearchState {
	state.Product = nil
	state.Analysis = nil
	state.Error = &msg
	return state
}
