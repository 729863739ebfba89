//go:build integration

package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"taskboard/internal/auth/models"
	"taskboard/internal/auth/store/session"
	id "taskboard/pkg/domain"
	"taskboard/pkg/platform/sentinel"
	"taskboard/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = session.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func makeSession(userID id.UserID) *models.Session {
	now := time.Now()
	return &models.Session{
		ID:                id.SessionID(uuid.New()),
		UserID:            userID,
		TokenHash:         uuid.NewString(),
		Status:            models.SessionStatusActive,
		UserAgent:         "curl/8.4.0",
		ClientIP:          "10.0.0.1",
		DeviceDisplayName: "curl on Unknown OS",
		CreatedAt:         now,
		ExpiresAt:         now.Add(24 * time.Hour),
	}
}

func (s *RedisStoreSuite) TestCreateAndLookup() {
	ctx := context.Background()
	sess := makeSession(id.UserID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, sess))

	byID, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.TokenHash, byID.TokenHash)
	s.Equal(sess.DeviceDisplayName, byID.DeviceDisplayName)
	s.True(sess.ExpiresAt.Equal(byID.ExpiresAt))

	byToken, err := s.store.FindByTokenHash(ctx, sess.TokenHash)
	s.Require().NoError(err)
	s.Equal(sess.ID, byToken.ID)

	dup := makeSession(sess.UserID)
	dup.TokenHash = sess.TokenHash
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrAlreadyUsed)

	_, err = s.store.FindByTokenHash(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestWATCHConflictDetection verifies that concurrent revocations of one
// session succeed exactly once.
func (s *RedisStoreSuite) TestWATCHConflictDetection() {
	ctx := context.Background()
	sess := makeSession(id.UserID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, sess))

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount, failCount, otherErrors atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RevokeSessionIfActive(ctx, sess.ID, time.Now())
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, redis.TxFailedErr), errors.Is(err, session.ErrSessionRevoked):
				failCount.Add(1)
			default:
				otherErrors.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one revoke should succeed")
	s.Equal(int32(goroutines-1), failCount.Load(), "remaining should fail")
	s.Equal(int32(0), otherErrors.Load(), "no unexpected errors")
}

// TestTTLPreservation verifies that updates keep key TTLs in line with expiry.
func (s *RedisStoreSuite) TestTTLPreservation() {
	ctx := context.Background()
	sess := makeSession(id.UserID(uuid.New()))
	sess.ExpiresAt = time.Now().Add(time.Hour)
	s.Require().NoError(s.store.Create(ctx, sess))

	key := "session:" + uuid.UUID(sess.ID).String()
	initialTTL, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.InDelta(time.Hour.Seconds(), initialTTL.Seconds(), 5)

	s.Require().NoError(s.store.RevokeSessionIfActive(ctx, sess.ID, time.Now()))

	afterTTL, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.InDelta(initialTTL.Seconds(), afterTTL.Seconds(), 5)

	tokenTTL, err := s.redis.Client.TTL(ctx, "session_token:"+sess.TokenHash).Result()
	s.Require().NoError(err)
	s.InDelta(initialTTL.Seconds(), tokenTTL.Seconds(), 5)
}

func (s *RedisStoreSuite) TestListByUserPrunesExpiredEntries() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	kept := makeSession(userID)
	gone := makeSession(userID)
	s.Require().NoError(s.store.Create(ctx, kept))
	s.Require().NoError(s.store.Create(ctx, gone))

	s.Require().NoError(s.redis.Client.Del(ctx, "session:"+uuid.UUID(gone.ID).String()).Err())

	sessions, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(kept.ID, sessions[0].ID)

	members, err := s.redis.Client.SMembers(ctx, "user_sessions:"+uuid.UUID(userID).String()).Result()
	s.Require().NoError(err)
	s.Equal([]string{uuid.UUID(kept.ID).String()}, members)
}

func (s *RedisStoreSuite) TestConcurrentCreatesForSameUser() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	const goroutines = 30

	var wg sync.WaitGroup
	var successCount atomic.Int32
	sessions := make([]*models.Session, goroutines)
	for i := range sessions {
		sessions[i] = makeSession(userID)
	}
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := s.store.Create(ctx, sessions[idx]); err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(goroutines), successCount.Load(), "all creates should succeed")
	listed, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Len(listed, goroutines)
}

func (s *RedisStoreSuite) TestRevokeExpired() {
	ctx := context.Background()
	sess := makeSession(id.UserID(uuid.New()))
	sess.ExpiresAt = time.Now().Add(time.Minute)
	s.Require().NoError(s.store.Create(ctx, sess))

	count, err := s.store.RevokeExpired(ctx, time.Now().Add(2*time.Minute))
	s.Require().NoError(err)
	s.Equal(1, count)

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusRevoked, found.Status)
}
