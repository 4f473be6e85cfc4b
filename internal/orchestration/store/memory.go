package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"verigate/internal/orchestration/models"
	"verigate/internal/sentinel"
	id "verigate/pkg/domain"
)

// In-memory stores keep the demo environment and tests lightweight.
// They intentionally favor clarity over performance.

type sessionEntry struct {
	session   *models.Session
	expiresAt time.Time
}

// InMemorySessionStore holds session snapshots with per-entry expiry.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

// NewInMemorySessionStore creates an in-memory session store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// WithClock overrides the store's clock. Test hook for expiry behavior.
func (s *InMemorySessionStore) WithClock(now func() time.Time) *InMemorySessionStore {
	s.now = now
	return s
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := session.ID.String()
	if entry, ok := s.sessions[key]; ok && s.now().Before(entry.expiresAt) {
		return fmt.Errorf("session %s: %w", key, sentinel.ErrAlreadyUsed)
	}
	s.sessions[key] = &sessionEntry{
		session:   session.Clone(),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *InMemorySessionStore) Get(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID.String()]
	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return entry.session.Clone(), nil
}

func (s *InMemorySessionStore) Update(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := session.ID.String()
	entry, ok := s.sessions[key]
	if !ok || !s.now().Before(entry.expiresAt) {
		return sentinel.ErrNotFound
	}
	if entry.session.Version != session.Version {
		return fmt.Errorf("session %s version %d: %w", key, session.Version, sentinel.ErrConflict)
	}
	updated := session.Clone()
	updated.Version++
	entry.session = updated
	return nil
}

// InMemoryDefinitionStore holds immutable definitions keyed by org + ID.
type InMemoryDefinitionStore struct {
	mu          sync.RWMutex
	definitions map[string]*models.Definition
}

// NewInMemoryDefinitionStore creates an in-memory definition store.
func NewInMemoryDefinitionStore() *InMemoryDefinitionStore {
	return &InMemoryDefinitionStore{definitions: make(map[string]*models.Definition)}
}

func definitionKey(orgID id.OrgID, defID id.DefinitionID) string {
	return orgID.String() + "/" + defID.String()
}

func (s *InMemoryDefinitionStore) Create(_ context.Context, def *models.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := definitionKey(def.OrgID, def.ID)
	if _, exists := s.definitions[key]; exists {
		return fmt.Errorf("definition id must be unique per organization: %w", sentinel.ErrAlreadyUsed)
	}
	s.definitions[key] = def
	return nil
}

func (s *InMemoryDefinitionStore) Get(_ context.Context, orgID id.OrgID, defID id.DefinitionID) (*models.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if def, ok := s.definitions[definitionKey(orgID, defID)]; ok {
		return def, nil
	}
	return nil, sentinel.ErrNotFound
}
