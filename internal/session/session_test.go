package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/pesio-ai/be-zoo-core/internal/rbac"
)

func TestNew(t *testing.T) {
	s := New(42, "keeper", rbac.RoleZookeeper)

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, int64(42), s.UserID)
	assert.Equal(t, "keeper", s.Username)
	assert.Equal(t, rbac.RoleZookeeper, s.Role)
	assert.False(t, s.StartedAt.IsZero())

	other := New(42, "keeper", rbac.RoleZookeeper)
	assert.NotEqual(t, s.ID, other.ID)
}

func TestSession_Can(t *testing.T) {
	keeper := New(1, "keeper", rbac.RoleZookeeper)
	assert.True(t, keeper.Can(rbac.Cap(rbac.DomainFeeding, rbac.ActionCreate)))
	assert.False(t, keeper.Can(rbac.Cap(rbac.DomainTickets, rbac.ActionCreate)))

	var none *Session
	assert.False(t, none.Can(rbac.Cap(rbac.DomainAnimals, rbac.ActionView)))
}
