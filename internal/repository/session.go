package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/ticsync-backend/internal/apperror"
	"github.com/rocketscienceinc/ticsync-backend/internal/entity"
)

const (
	sessionKeyPrefix     = "session:"
	sessionUpdatesPrefix = "session:updates:"

	// published on the updates channel when the document is removed.
	tombstonePayload = "deleted"
)

type SessionRepository interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByKey(ctx context.Context, key string) (*entity.Session, error)
	DeleteByKey(ctx context.Context, key string) error
	ListOpenPublic(ctx context.Context) ([]*entity.Session, error)
	Subscribe(ctx context.Context, key string) (<-chan *entity.Session, func(), error)
}

type dbSession struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionRepository(client *redis.Client, ttl time.Duration) SessionRepository {
	return &dbSession{
		client: client,
		ttl:    ttl,
	}
}

// CreateOrUpdate - overwrites the full session document and publishes the new
// snapshot to subscribers. There is no compare-and-swap: the last writer wins.
func (that *dbSession) CreateOrUpdate(ctx context.Context, session *entity.Session) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("could not marshal session: %w", err)
	}

	sessionKey := sessionKeyPrefix + session.Key
	if err = that.client.Set(ctx, sessionKey, sessionJSON, that.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	if err = that.client.Publish(ctx, sessionUpdatesPrefix+session.Key, sessionJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish session update: %w", err)
	}

	return nil
}

func (that *dbSession) GetByKey(ctx context.Context, key string) (*entity.Session, error) {
	sessionKey := sessionKeyPrefix + key

	response, err := that.client.Get(ctx, sessionKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrSessionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by key: %w", err)
	}

	var existingSession entity.Session
	if err = json.Unmarshal([]byte(response), &existingSession); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &existingSession, nil
}

func (that *dbSession) DeleteByKey(ctx context.Context, key string) error {
	sessionKey := sessionKeyPrefix + key

	if err := that.client.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("failed to delete session by key: %w", err)
	}

	if err := that.client.Publish(ctx, sessionUpdatesPrefix+key, tombstonePayload).Err(); err != nil {
		return fmt.Errorf("failed to publish session removal: %w", err)
	}

	return nil
}

// ListOpenPublic - scans all session documents and keeps the discoverable
// ones with a free seat, newest first.
func (that *dbSession) ListOpenPublic(ctx context.Context) ([]*entity.Session, error) {
	var sessions []*entity.Session

	iter := that.client.Scan(ctx, 0, sessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		response, err := that.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get session by key: %w", err)
		}

		var session entity.Session
		if err = json.Unmarshal([]byte(response), &session); err != nil {
			continue
		}

		if session.IsOpenPublic() {
			sessions = append(sessions, &session)
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt > sessions[j].CreatedAt
	})

	return sessions, nil
}

// Subscribe - delivers full-document snapshots for the session until the
// returned cancel func is called, the context ends, or the document is
// removed. Delivery is latest-value, not every intermediate write.
func (that *dbSession) Subscribe(ctx context.Context, key string) (<-chan *entity.Session, func(), error) {
	pubsub := that.client.Subscribe(ctx, sessionUpdatesPrefix+key)

	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe to session updates: %w", err)
	}

	updates := make(chan *entity.Session, 1)

	go func() {
		defer close(updates)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}

				if msg.Payload == tombstonePayload {
					return
				}

				var session entity.Session
				if err := json.Unmarshal([]byte(msg.Payload), &session); err != nil {
					continue
				}

				select {
				case updates <- &session:
				default:
					// a slow reader only ever needs the latest snapshot
					select {
					case <-updates:
					default:
					}
					updates <- &session
				}
			}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}

	return updates, cancel, nil
}
