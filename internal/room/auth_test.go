package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvaslab/internal/protocol"
)

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, h)
	assert.NotEqual(t, "s3cret", h)

	assert.True(t, CheckPassword(h, "s3cret"))
	assert.False(t, CheckPassword(h, "wrong"))
	assert.False(t, CheckPassword(h, ""))

	empty, err := HashPassword("")
	require.NoError(t, err)
	assert.Equal(t, "", empty, "empty password means slot unset")
	assert.False(t, CheckPassword("", ""), "an unset slot matches nothing")
}

func TestAuthorize(t *testing.T) {
	adminHash, err := HashPassword("admin-pw")
	require.NoError(t, err)
	roHash, err := HashPassword("view-pw")
	require.NoError(t, err)

	t.Run("open room admits everyone as admin", func(t *testing.T) {
		role, err := authorize("", "", "")
		require.NoError(t, err)
		assert.Equal(t, protocol.RoleAdmin, role)

		role, err = authorize("", "", "anything-at-all")
		require.NoError(t, err)
		assert.Equal(t, protocol.RoleAdmin, role, "passwords are ignored on open rooms")
	})

	t.Run("admin password only", func(t *testing.T) {
		role, err := authorize(adminHash, "", "admin-pw")
		require.NoError(t, err)
		assert.Equal(t, protocol.RoleAdmin, role)

		_, err = authorize(adminHash, "", "wrong")
		assert.ErrorIs(t, err, ErrWrongPassword)

		_, err = authorize(adminHash, "", "")
		assert.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("readonly password only", func(t *testing.T) {
		role, err := authorize("", roHash, "view-pw")
		require.NoError(t, err)
		assert.Equal(t, protocol.RoleReadonly, role)

		// Rooms that predate admin passwords let a blank password in
		// with full access.
		role, err = authorize("", roHash, "")
		require.NoError(t, err)
		assert.Equal(t, protocol.RoleAdmin, role)

		_, err = authorize("", roHash, "wrong")
		assert.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("both passwords set", func(t *testing.T) {
		role, err := authorize(adminHash, roHash, "admin-pw")
		require.NoError(t, err)
		assert.Equal(t, protocol.RoleAdmin, role)

		role, err = authorize(adminHash, roHash, "view-pw")
		require.NoError(t, err)
		assert.Equal(t, protocol.RoleReadonly, role)

		_, err = authorize(adminHash, roHash, "")
		assert.ErrorIs(t, err, ErrWrongPassword)

		_, err = authorize(adminHash, roHash, "wrong")
		assert.ErrorIs(t, err, ErrWrongPassword)
	})
}
