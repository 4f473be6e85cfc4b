// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "verigate/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a SessionID where an OrgID is expected.
type (
	OrgID          uuid.UUID
	SessionID      uuid.UUID
	SubscriptionID uuid.UUID
)

// DefinitionID identifies an orchestration definition. Definitions are
// operator-named and versioned by ID (a new version is a new ID), so this is
// a caller-chosen string rather than a generated UUID.
type DefinitionID string

// StepID identifies a step within a single orchestration definition.
type StepID string

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseOrgID(s string) (OrgID, error) {
	id, err := parseUUID(s, "organization ID")
	return OrgID(id), err
}

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func ParseSubscriptionID(s string) (SubscriptionID, error) {
	id, err := parseUUID(s, "subscription ID")
	return SubscriptionID(id), err
}

func ParseDefinitionID(s string) (DefinitionID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "definition ID cannot be empty")
	}
	return DefinitionID(s), nil
}

// NewSessionID mints a fresh opaque session token.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// NewSubscriptionID mints a fresh subscription identifier.
func NewSubscriptionID() SubscriptionID {
	return SubscriptionID(uuid.New())
}

// String methods - for logging and debugging.

func (id OrgID) String() string          { return uuid.UUID(id).String() }
func (id SessionID) String() string      { return uuid.UUID(id).String() }
func (id SubscriptionID) String() string { return uuid.UUID(id).String() }
func (id DefinitionID) String() string   { return string(id) }
func (id StepID) String() string         { return string(id) }

// IsNil checks - used for service-layer validation.

func (id OrgID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id SubscriptionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DefinitionID) IsNil() bool   { return id == "" }

// parseUUID is the shared validation logic.
// Note: Nil UUIDs are allowed here. Use IsNil() at the service layer for
// business validation, which allows store lookups to return proper
// "not found" errors for consistency.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return id, nil
}
