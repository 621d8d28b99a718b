// Package session holds the authenticated identity of one client run.
//
// A Session is created by a successful login and lives only in the
// process that logged in. It is never written to storage; logging out is
// dropping the value.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-zoo-core/internal/rbac"
)

// Session is the authorization context threaded through every operation
type Session struct {
	ID        uuid.UUID
	UserID    int64
	Username  string
	Role      rbac.Role
	StartedAt time.Time
}

// New creates a session for an authenticated user
func New(userID int64, username string, role rbac.Role) *Session {
	return &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Username:  username,
		Role:      role,
		StartedAt: time.Now().UTC(),
	}
}

// Can reports whether the session's role holds capability c.
// A nil session holds nothing.
func (s *Session) Can(c rbac.Capability) bool {
	if s == nil {
		return false
	}
	return rbac.Allowed(s.Role, c)
}
