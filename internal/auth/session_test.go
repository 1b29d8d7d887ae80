package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticate(t *testing.T) {
	require.NoError(t, Init("1h"))
	uid := uuid.New()

	token, err := CreateJWT(uid)
	require.NoError(t, err)

	got, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, uid, got)
}

func TestAuthenticateRejectsForeignKey(t *testing.T) {
	require.NoError(t, Init("never"))
	token, err := CreateJWT(uuid.New())
	require.NoError(t, err)

	// rotating keys invalidates earlier tokens
	require.NoError(t, Init("never"))
	_, err = AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticateRejectsHMAC(t *testing.T) {
	require.NoError(t, Init("never"))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.NewString()})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = AuthenticateJWT(signed)
	assert.Error(t, err)
}

func TestParseTokenExpireTime(t *testing.T) {
	d, err := ParseTokenExpireTime("never")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = ParseTokenExpireTime("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = ParseTokenExpireTime("soon")
	assert.Error(t, err)
}

func TestUserIDContext(t *testing.T) {
	_, ok := UserIDFrom(context.Background())
	assert.False(t, ok)

	uid := uuid.New()
	got, ok := UserIDFrom(WithUserID(context.Background(), uid))
	assert.True(t, ok)
	assert.Equal(t, uid, got)
}

func TestOperatorRoleClaim(t *testing.T) {
	require.NoError(t, Init("never"))
	uid := uuid.New()

	token, err := CreateOperatorJWT(uid)
	require.NoError(t, err)
	id, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: uid, Operator: true}, id)

	token, err = CreateJWT(uid)
	require.NoError(t, err)
	id, err = ParseJWT(token)
	require.NoError(t, err)
	assert.False(t, id.Operator)

	ctx := WithIdentity(context.Background(), Identity{UserID: uid, Operator: true})
	assert.True(t, IsOperator(ctx))
	got, ok := UserIDFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, uid, got)
	assert.False(t, IsOperator(WithUserID(context.Background(), uid)))
}
