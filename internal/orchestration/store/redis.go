package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"verigate/internal/orchestration/models"
	"verigate/internal/sentinel"
	id "verigate/pkg/domain"
)

const (
	sessionKeyPrefix    = "verigate:session:"
	definitionKeyPrefix = "verigate:definition:"
)

// RedisSessionStore persists session snapshots in Redis with native TTL
// expiry. Update runs as an optimistic WATCH transaction so two concurrent
// completions cannot overwrite each other; the loser gets ErrConflict and
// the engine re-reads and retries.
type RedisSessionStore struct {
	client redis.UniversalClient
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func (s *RedisSessionStore) Create(ctx context.Context, session *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(session.ID), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w: %w", sentinel.ErrUnavailable, err)
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Update(ctx context.Context, session *models.Session) error {
	key := sessionKey(session.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored models.Session
		if err := json.Unmarshal(raw, &stored); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if stored.Version != session.Version {
			return fmt.Errorf("session %s version %d: %w", session.ID, session.Version, sentinel.ErrConflict)
		}

		updated := session.Clone()
		updated.Version++
		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// KeepTTL preserves the entry's original expiry.
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		// Another writer touched the key mid-transaction.
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrConflict)
	}
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) && !errors.Is(err, sentinel.ErrConflict) {
		return fmt.Errorf("update session: %w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

// RedisDefinitionStore persists immutable definitions in Redis without
// expiry. Definitions are small and read-heavy.
type RedisDefinitionStore struct {
	client redis.UniversalClient
}

// NewRedisDefinitionStore creates a Redis-backed definition store.
func NewRedisDefinitionStore(client redis.UniversalClient) *RedisDefinitionStore {
	return &RedisDefinitionStore{client: client}
}

func redisDefinitionKey(orgID id.OrgID, defID id.DefinitionID) string {
	return definitionKeyPrefix + orgID.String() + ":" + defID.String()
}

func (s *RedisDefinitionStore) Create(ctx context.Context, def *models.Definition) error {
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	ok, err := s.client.SetNX(ctx, redisDefinitionKey(def.OrgID, def.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("create definition: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("definition id must be unique per organization: %w", sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *RedisDefinitionStore) Get(ctx context.Context, orgID id.OrgID, defID id.DefinitionID) (*models.Definition, error) {
	raw, err := s.client.Get(ctx, redisDefinitionKey(orgID, defID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get definition: %w: %w", sentinel.ErrUnavailable, err)
	}
	var def models.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return &def, nil
}
