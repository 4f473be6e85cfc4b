package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"verigate/internal/sentinel"
	"verigate/internal/webhook/models"
	id "verigate/pkg/domain"
)

const subscriptionKeyPrefix = "verigate:webhook:"

// RedisStore persists subscriptions as per-org hashes keyed by subscription
// ID. Subscriptions have no TTL; they live until deleted.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func orgKey(orgID id.OrgID) string {
	return subscriptionKeyPrefix + orgID.String()
}

func (s *RedisStore) Create(ctx context.Context, sub *models.Subscription) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	ok, err := s.client.HSetNX(ctx, orgKey(sub.OrgID), sub.ID.String(), payload).Result()
	if err != nil {
		return fmt.Errorf("create subscription: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("subscription %s: %w", sub.ID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID) (*models.Subscription, error) {
	raw, err := s.client.HGet(ctx, orgKey(orgID), subID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w: %w", sentinel.ErrUnavailable, err)
	}
	var sub models.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}
	return &sub, nil
}

func (s *RedisStore) List(ctx context.Context, orgID id.OrgID) ([]*models.Subscription, error) {
	raw, err := s.client.HGetAll(ctx, orgKey(orgID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w: %w", sentinel.ErrUnavailable, err)
	}
	out := make([]*models.Subscription, 0, len(raw))
	for _, v := range raw {
		var sub models.Subscription
		if err := json.Unmarshal([]byte(v), &sub); err != nil {
			return nil, fmt.Errorf("unmarshal subscription: %w", err)
		}
		out = append(out, &sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, sub *models.Subscription) error {
	key := orgKey(sub.OrgID)
	exists, err := s.client.HExists(ctx, key, sub.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("update subscription: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	if err := s.client.HSet(ctx, key, sub.ID.String(), payload).Err(); err != nil {
		return fmt.Errorf("update subscription: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, orgID id.OrgID, subID id.SubscriptionID) error {
	removed, err := s.client.HDel(ctx, orgKey(orgID), subID.String()).Result()
	if err != nil {
		return fmt.Errorf("delete subscription: %w: %w", sentinel.ErrUnavailable, err)
	}
	if removed == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
