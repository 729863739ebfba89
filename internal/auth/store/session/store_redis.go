package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"taskboard/internal/auth/models"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix     = "session:"
	tokenKeyPrefix       = "session_token:"
	userSessionKeyPrefix = "user_sessions:"

	// minTTL keeps a just-expired session readable long enough to be
	// reported as expired instead of missing.
	minTTL = time.Second

	scanBatch = 256
)

// RedisStore keeps each session as a JSON document under session:<id> with a
// TTL matching its expiry. session_token:<hash> resolves bearer tokens and
// user_sessions:<user> indexes sessions per user.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisClock overrides the clock used to compute key TTLs.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		s.now = now
	}
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + uuid.UUID(sessionID).String()
}

func tokenKey(tokenHash string) string {
	return tokenKeyPrefix + tokenHash
}

func userSessionsKey(userID id.UserID) string {
	return userSessionKeyPrefix + uuid.UUID(userID).String()
}

func (s *RedisStore) ttl(session *models.Session) time.Duration {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

// Create writes the session document, token index and user index atomically.
func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := s.ttl(session)

	ok, err := s.client.SetNX(ctx, tokenKey(session.TokenHash), uuid.UUID(session.ID).String(), ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve session token: %w", err)
	}
	if !ok {
		return fmt.Errorf("session token: %w", sentinel.ErrAlreadyUsed)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), payload, ttl)
		pipe.SAdd(ctx, userSessionsKey(session.UserID), uuid.UUID(session.ID).String())
		return nil
	})
	if err != nil {
		_ = s.client.Del(ctx, tokenKey(session.TokenHash)).Err()
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.get(ctx, s.client, sessionKey(sessionID))
}

func (s *RedisStore) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, tokenKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session token: %w", err)
	}
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt session token index: %w", err)
	}
	return s.FindByID(ctx, id.SessionID(sessionID))
}

// ListByUser loads the user's indexed sessions, pruning index entries whose
// documents have expired.
func (s *RedisStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	key := userSessionsKey(userID)
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = sessionKeyPrefix + m
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load user sessions: %w", err)
	}

	var (
		sessions []*models.Session
		stale    []any
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if len(stale) > 0 {
		_ = s.client.SRem(ctx, key, stale...).Err()
	}
	newestFirst(sessions)
	return sessions, nil
}

func (s *RedisStore) UpdateSession(ctx context.Context, session *models.Session) error {
	_, err := s.Execute(ctx, session.ID,
		func(*models.Session) error { return nil },
		func(stored *models.Session) { *stored = *copySession(session) },
	)
	return err
}

// Execute applies validate and mutate under WATCH on the session key. A
// concurrent writer makes the transaction fail with redis.TxFailedErr.
func (s *RedisStore) Execute(ctx context.Context, sessionID id.SessionID, validate func(*models.Session) error, mutate func(*models.Session)) (*models.Session, error) {
	key := sessionKey(sessionID)
	var result *models.Session

	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		session, err := s.get(ctx, rtx, key)
		if err != nil {
			return err
		}
		if err := validate(session); err != nil {
			return err
		}
		mutate(session)

		payload, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		ttl := s.ttl(session)
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			pipe.Expire(ctx, tokenKey(session.TokenHash), ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = session
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RedisStore) RevokeSessionIfActive(ctx context.Context, sessionID id.SessionID, now time.Time) error {
	_, err := s.Execute(ctx, sessionID,
		func(session *models.Session) error {
			if session.CanRevoke() != nil {
				return ErrSessionRevoked
			}
			return nil
		},
		func(session *models.Session) { session.ApplyRevocation(now) },
	)
	return err
}

// RevokeExpired scans session documents for active sessions past expiry.
// Key TTLs remove most of them first, so this mainly catches clock skew.
func (s *RedisStore) RevokeExpired(ctx context.Context, now time.Time) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		session, err := s.get(ctx, s.client, iter.Val())
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return count, err
		}
		if !session.IsActive() || !session.IsExpired(now) {
			continue
		}
		err = s.RevokeSessionIfActive(ctx, session.ID, now)
		switch {
		case err == nil:
			count++
		case errors.Is(err, ErrSessionRevoked), errors.Is(err, sentinel.ErrNotFound), errors.Is(err, redis.TxFailedErr):
		default:
			return count, err
		}
	}
	if err := iter.Err(); err != nil {
		return count, fmt.Errorf("scan sessions: %w", err)
	}
	return count, nil
}

func (s *RedisStore) get(ctx context.Context, cmd getter, key string) (*models.Session, error) {
	raw, err := cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decodeSession(raw)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func decodeSession(raw []byte) (*models.Session, error) {
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}
