package service

import (
	"context"

	"verigate/internal/orchestration/models"
	wmodels "verigate/internal/webhook/models"
	id "verigate/pkg/domain"
)

// Verifier starts verification exchanges on the external verification engine.
// The engine never parses credentials; it only sequences steps around the
// opaque handle the verifier returns.
type Verifier interface {
	StartVerification(ctx context.Context, template string, sessionID id.SessionID) (*models.VerificationHandle, error)
}

// Notifier fans lifecycle events out to webhook subscribers.
// Implementations must return without waiting on network I/O; delivery
// happens off the caller's path.
type Notifier interface {
	DispatchAsync(orgID id.OrgID, payload wmodels.Payload)
}
