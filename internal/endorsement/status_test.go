package endorsement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMS-backend/internal/platform/auth"
)

func TestNextFollowsTheChain(t *testing.T) {
	chain := []struct {
		from  Status
		actor auth.Role
		to    Status
		slot  FileSlot
		file  bool
	}{
		{StatusRequested, auth.RoleAdmin, StatusForHTE, SlotAdmin, false},
		{StatusForHTE, auth.RoleHTE, StatusForStudent, SlotHTE, true},
		{StatusForStudent, auth.RoleStudent, StatusApproved, SlotHTE, true},
	}
	for _, tc := range chain {
		to, slot, needsFile, err := Next(tc.from, tc.actor)
		require.NoError(t, err, tc.from)
		assert.Equal(t, tc.to, to)
		assert.Equal(t, tc.slot, slot)
		assert.Equal(t, tc.file, needsFile)
	}
}

func TestNextRejectsEverythingElse(t *testing.T) {
	statuses := []Status{StatusRequested, StatusForHTE, StatusForStudent, StatusApproved, "Bogus"}
	roles := []auth.Role{auth.RoleAdmin, auth.RoleStudent, auth.RoleHTE, auth.RoleParent}
	allowed := map[Status]auth.Role{
		StatusRequested:  auth.RoleAdmin,
		StatusForHTE:     auth.RoleHTE,
		StatusForStudent: auth.RoleStudent,
	}
	for _, st := range statuses {
		for _, r := range roles {
			if allowed[st] == r {
				continue
			}
			_, _, _, err := Next(st, r)
			assert.ErrorIs(t, err, ErrTransition, "%s by %s", st, r)
		}
	}

	_, ok := ActorFor(StatusApproved)
	assert.False(t, ok)
}
