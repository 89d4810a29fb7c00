package subscription

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/m41na/payment-agent-sub001/internal/domain"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// Store keeps subscriptions in memory. The processor remains the source of
// truth for recurring billing; this is the service-side view the app reads.
type Store struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscription
}

func NewStore() *Store {
	return &Store{subs: make(map[string]*domain.Subscription)}
}

func (s *Store) Save(sub *domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subs[sub.ID] = &cp
}

func (s *Store) Get(userID, id string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok || sub.UserID != userID {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

// ListByUser returns the user's subscriptions, newest first.
func (s *Store) ListByUser(userID string) []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Subscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ActiveForPlan reports whether the user already holds a live subscription to
// the plan, which blocks a duplicate purchase. Pending plans count: their
// charge may still settle, and a second purchase would double-charge.
func (s *Store) ActiveForPlan(userID, planID string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.UserID != userID || sub.PlanID != planID {
			continue
		}
		if sub.Status == domain.SubscriptionPending {
			return true
		}
		if sub.Status == domain.SubscriptionActive && !sub.IsExpired(now) {
			return true
		}
	}
	return false
}

// ListPending returns plans waiting on charge settlement, for the poller.
func (s *Store) ListPending() []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Subscription
	for _, sub := range s.subs {
		if sub.Status == domain.SubscriptionPending {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out
}

func (s *Store) SetStatus(id string, status domain.SubscriptionStatus, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.Status = status
	if !expiresAt.IsZero() {
		sub.ExpiresAt = expiresAt
	}
	sub.UpdatedAt = time.Now()
	return nil
}

// ExpireStale flips active subscriptions whose expiry has passed. Returns how
// many were expired; the refresh poller logs the count.
func (s *Store) ExpireStale(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sub := range s.subs {
		if sub.Status == domain.SubscriptionActive && sub.IsExpired(now) {
			sub.Status = domain.SubscriptionExpired
			sub.UpdatedAt = now
			n++
		}
	}
	return n
}
