// Package store persists webhook subscriptions per organization.
package store

import (
	"context"

	"verigate/internal/webhook/models"
	id "verigate/pkg/domain"
)

// Store is the subscription registry. Implementations must return
// sentinel.ErrNotFound for missing subscriptions; List returns subscriptions
// in creation order, enabled or not, and the dispatcher filters.
type Store interface {
	Create(ctx context.Context, sub *models.Subscription) error
	Get(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID) (*models.Subscription, error)
	List(ctx context.Context, orgID id.OrgID) ([]*models.Subscription, error)
	Update(ctx context.Context, sub *models.Subscription) error
	Delete(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID) error
}
