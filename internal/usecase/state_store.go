package usecase

import (
	"log/slog"
	"sync"

	"github.com/nutriscan/backend/internal/domain"
)

const subscriberBuffer = 8

// StateStore is the single register holding the active SearchState. Every
// search takes the next sequence number; a settlement carrying an older
// number is discarded so a slow response never overwrites a newer search.
type StateStore struct {
	mu      sync.Mutex
	seq     uint64
	current domain.SearchState
	subs    map[uint64]chan domain.SearchState
	nextSub uint64
	logger  *slog.Logger
}

// NewStateStore creates an empty store.
func NewStateStore(logger *slog.Logger) *StateStore {
	return &StateStore{
		subs:   make(map[uint64]chan domain.SearchState),
		logger: logger.With("component", "state"),
	}
}

// Begin replaces the current state with a fresh loading state for query.
func (s *StateStore) Begin(query string) domain.SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.current = domain.SearchState{Sequence: s.seq, Query: query, Loading: true}
	s.publish(s.current)
	return s.current
}

// Settle stores next as the outcome of its search, with loading cleared.
// It reports false and leaves the store untouched when a newer search has
// begun since next's.
func (s *StateStore) Settle(next domain.SearchState) (domain.SearchState, bool) {
	next.Loading = false

	s.mu.Lock()
	defer s.mu.Unlock()

	if next.Sequence != s.seq {
		s.logger.Debug("stale result discarded", "sequence", next.Sequence, "latest", s.seq, "query", next.Query)
		return next, false
	}

	s.current = next
	s.publish(s.current)
	return s.current, true
}

// Current returns the active state.
func (s *StateStore) Current() domain.SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a channel that receives the current state and then every
// change, plus a func that ends the subscription. Slow subscribers skip
// intermediate states but always see the latest one.
func (s *StateStore) Subscribe() (<-chan domain.SearchState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.SearchState, subscriberBuffer)
	ch <- s.current
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// publish must be called with mu held.
func (s *StateStore) publish(state domain.SearchState) {
	for _, ch := range s.subs {
		select {
		case ch <- state:
		default:
			// drop the oldest queued state to make room
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}
