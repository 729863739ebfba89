// Package session persists sign-in sessions in memory, PostgreSQL or Redis.
// All three stores share the same semantics and error contract.
package session

import (
	"fmt"
	"sort"

	"taskboard/internal/auth/models"
	"taskboard/pkg/platform/sentinel"
)

// ErrSessionRevoked is returned when revoking a session that is no longer active.
var ErrSessionRevoked = fmt.Errorf("session already revoked: %w", sentinel.ErrInvalidState)

// newestFirst orders sessions by creation time, most recent first.
func newestFirst(sessions []*models.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}
