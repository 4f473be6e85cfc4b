package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"verigate/internal/sentinel"
	"verigate/internal/webhook/models"
	id "verigate/pkg/domain"
)

// InMemoryStore keeps subscriptions in process memory. Used in tests and
// single-node development setups.
type InMemoryStore struct {
	mu   sync.RWMutex
	subs map[string]map[id.SubscriptionID]*models.Subscription
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{subs: make(map[string]map[id.SubscriptionID]*models.Subscription)}
}

func (s *InMemoryStore) Create(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org := sub.OrgID.String()
	if s.subs[org] == nil {
		s.subs[org] = make(map[id.SubscriptionID]*models.Subscription)
	}
	if _, exists := s.subs[org][sub.ID]; exists {
		return fmt.Errorf("subscription %s: %w", sub.ID, sentinel.ErrAlreadyUsed)
	}
	s.subs[org][sub.ID] = clone(sub)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, orgID id.OrgID, subID id.SubscriptionID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sub, ok := s.subs[orgID.String()][subID]; ok {
		return clone(sub), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context, orgID id.OrgID) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Subscription
	for _, sub := range s.subs[orgID.String()] {
		out = append(out, clone(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org := sub.OrgID.String()
	if _, ok := s.subs[org][sub.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.subs[org][sub.ID] = clone(sub)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, orgID id.OrgID, subID id.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org := orgID.String()
	if _, ok := s.subs[org][subID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.subs[org], subID)
	return nil
}

func clone(sub *models.Subscription) *models.Subscription {
	out := *sub
	out.Events = append([]string{}, sub.Events...)
	return &out
}
