package audit

import (
	"context"

	pkgerrors "verigate/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
)

type Store interface {
	Append(ctx context.Context, event Event) error
	ListByOrg(ctx context.Context, orgID string) ([]Event, error)
}
