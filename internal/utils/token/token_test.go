package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	m := NewManager("test-secret")
	userID := uuid.New()

	t.Run("Round trip", func(t *testing.T) {
		signed, err := m.Issue(userID, time.Hour)
		require.NoError(t, err)

		got, err := m.Verify(signed)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("Expired token", func(t *testing.T) {
		signed, err := m.Issue(userID, -time.Minute)
		require.NoError(t, err)

		_, err = m.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		signed, err := NewManager("other-secret").Issue(userID, time.Hour)
		require.NoError(t, err)

		_, err = m.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Missing user id", func(t *testing.T) {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = m.Verify(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := m.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
