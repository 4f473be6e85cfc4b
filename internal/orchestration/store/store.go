// Package store persists orchestration definitions and sessions.
//
// Sessions are TTL'd: an expired session is simply gone, the engine treats
// "not found" as "gone" and never sweeps. Writes use optimistic concurrency:
// Update compares the session's Version against the stored one and rejects
// stale writers with sentinel.ErrConflict.
package store

import (
	"context"
	"time"

	"verigate/internal/orchestration/models"
	id "verigate/pkg/domain"
)

// SessionStore is the keyed, TTL'd persistence for session snapshots.
// Implementations must return sentinel.ErrNotFound for missing or expired
// entries and sentinel.ErrConflict for version mismatches on Update.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	// Update writes the session if the stored version still matches
	// session.Version, then increments the version. The entry's TTL is
	// preserved.
	Update(ctx context.Context, session *models.Session) error
}

// DefinitionStore persists immutable orchestration definitions per
// organization. Create must reject duplicates with sentinel.ErrAlreadyUsed.
type DefinitionStore interface {
	Create(ctx context.Context, def *models.Definition) error
	Get(ctx context.Context, orgID id.OrgID, defID id.DefinitionID) (*models.Definition, error)
}
