package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"taskboard/internal/auth/models"
	id "taskboard/pkg/domain"
	dErrors "taskboard/pkg/domain-errors"
	"taskboard/pkg/platform/sentinel"
)

type SessionStoreSuite struct {
	suite.Suite
	store *InMemorySessionStore
	ctx   context.Context
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func newSession(userID id.UserID, createdAt time.Time) *models.Session {
	return &models.Session{
		ID:                id.SessionID(uuid.New()),
		UserID:            userID,
		TokenHash:         uuid.NewString(),
		Status:            models.SessionStatusActive,
		DeviceDisplayName: "Firefox on Linux",
		CreatedAt:         createdAt,
		ExpiresAt:         createdAt.Add(time.Hour),
	}
}

// TestSessionLookup tests session retrieval behavior.
func (s *SessionStoreSuite) TestSessionLookup() {
	s.Run("returns stored session by id and token hash", func() {
		session := newSession(id.UserID(uuid.New()), time.Now())
		s.Require().NoError(s.store.Create(s.ctx, session))

		byID, err := s.store.FindByID(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(session, byID)

		byToken, err := s.store.FindByTokenHash(s.ctx, session.TokenHash)
		s.Require().NoError(err)
		s.Equal(session.ID, byToken.ID)
	})

	s.Run("returns ErrNotFound when session does not exist", func() {
		_, err := s.store.FindByID(s.ctx, id.SessionID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindByTokenHash(s.ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects a reused token hash", func() {
		first := newSession(id.UserID(uuid.New()), time.Now())
		s.Require().NoError(s.store.Create(s.ctx, first))

		second := newSession(id.UserID(uuid.New()), time.Now())
		second.TokenHash = first.TokenHash
		s.Require().ErrorIs(s.store.Create(s.ctx, second), sentinel.ErrAlreadyUsed)
	})
}

func (s *SessionStoreSuite) TestListByUser() {
	userID := id.UserID(uuid.New())
	base := time.Now()
	older := newSession(userID, base.Add(-time.Hour))
	newer := newSession(userID, base)
	other := newSession(id.UserID(uuid.New()), base)
	for _, sess := range []*models.Session{older, newer, other} {
		s.Require().NoError(s.store.Create(s.ctx, sess))
	}

	sessions, err := s.store.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal(newer.ID, sessions[0].ID)
	s.Equal(older.ID, sessions[1].ID)

	none, err := s.store.ListByUser(s.ctx, id.UserID(uuid.New()))
	s.Require().NoError(err)
	s.Empty(none)
}

// TestExecute covers the validate/mutate callback contract.
func (s *SessionStoreSuite) TestExecute() {
	s.Run("applies mutation when validation passes", func() {
		session := newSession(id.UserID(uuid.New()), time.Now())
		s.Require().NoError(s.store.Create(s.ctx, session))

		updated, err := s.store.Execute(s.ctx, session.ID,
			func(sess *models.Session) error { return sess.CanRevoke() },
			func(sess *models.Session) { sess.ApplyRevocation(time.Now()) },
		)
		s.Require().NoError(err)
		s.Equal(models.SessionStatusRevoked, updated.Status)

		found, err := s.store.FindByID(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.SessionStatusRevoked, found.Status)
	})

	s.Run("validation error leaves session untouched", func() {
		session := newSession(id.UserID(uuid.New()), time.Now())
		s.Require().NoError(s.store.Create(s.ctx, session))

		_, err := s.store.Execute(s.ctx, session.ID,
			func(*models.Session) error { return dErrors.New(dErrors.CodeForbidden, "nope") },
			func(sess *models.Session) { sess.ApplyRevocation(time.Now()) },
		)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeForbidden))

		found, err := s.store.FindByID(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.SessionStatusActive, found.Status)
	})

	s.Run("missing session returns ErrNotFound", func() {
		_, err := s.store.Execute(s.ctx, id.SessionID(uuid.New()),
			func(*models.Session) error { return nil },
			func(*models.Session) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestSessionRevocation tests the revocation behavior and idempotency.
func (s *SessionStoreSuite) TestSessionRevocation() {
	s.Run("revokes active session and sets RevokedAt timestamp", func() {
		session := newSession(id.UserID(uuid.New()), time.Now())
		s.Require().NoError(s.store.Create(s.ctx, session))

		s.Require().NoError(s.store.RevokeSessionIfActive(s.ctx, session.ID, time.Now()))

		found, err := s.store.FindByID(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.SessionStatusRevoked, found.Status)
		s.Require().NotNil(found.RevokedAt)
	})

	s.Run("revoking already-revoked session returns ErrSessionRevoked", func() {
		session := newSession(id.UserID(uuid.New()), time.Now())
		s.Require().NoError(s.store.Create(s.ctx, session))
		s.Require().NoError(s.store.RevokeSessionIfActive(s.ctx, session.ID, time.Now()))

		err := s.store.RevokeSessionIfActive(s.ctx, session.ID, time.Now())
		s.Require().ErrorIs(err, ErrSessionRevoked)
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("revoking non-existent session returns ErrNotFound", func() {
		err := s.store.RevokeSessionIfActive(s.ctx, id.SessionID(uuid.New()), time.Now())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("concurrent revokes succeed exactly once", func() {
		session := newSession(id.UserID(uuid.New()), time.Now())
		s.Require().NoError(s.store.Create(s.ctx, session))

		const goroutines = 20
		var wg sync.WaitGroup
		var successCount, revokedCount atomic.Int32
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.store.RevokeSessionIfActive(s.ctx, session.ID, time.Now())
				switch {
				case err == nil:
					successCount.Add(1)
				case errors.Is(err, ErrSessionRevoked):
					revokedCount.Add(1)
				}
			}()
		}
		wg.Wait()

		s.Equal(int32(1), successCount.Load())
		s.Equal(int32(goroutines-1), revokedCount.Load())
	})
}

func (s *SessionStoreSuite) TestRevokeExpired() {
	now := time.Now()
	userID := id.UserID(uuid.New())

	expired := newSession(userID, now.Add(-2*time.Hour))
	live := newSession(userID, now)
	alreadyRevoked := newSession(userID, now.Add(-3*time.Hour))
	alreadyRevoked.ApplyRevocation(now.Add(-150 * time.Minute))
	for _, sess := range []*models.Session{expired, live, alreadyRevoked} {
		s.Require().NoError(s.store.Create(s.ctx, sess))
	}

	count, err := s.store.RevokeExpired(s.ctx, now)
	s.Require().NoError(err)
	s.Equal(1, count)

	found, err := s.store.FindByID(s.ctx, expired.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusRevoked, found.Status)

	found, err = s.store.FindByID(s.ctx, live.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusActive, found.Status)

	count, err = s.store.RevokeExpired(s.ctx, now)
	s.Require().NoError(err)
	s.Zero(count)
}
