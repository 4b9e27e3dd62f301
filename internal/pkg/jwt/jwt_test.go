package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := New("secret", time.Hour)

	token, err := svc.GenerateToken("u1001", "홍길동", "employee")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1001", claims.UserID)
	assert.Equal(t, "홍길동", claims.Name)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := New("one", time.Hour).GenerateToken("u1", "", "")
	require.NoError(t, err)

	_, err = New("two", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := New("secret", -time.Minute)
	token, err := svc.GenerateToken("u1", "", "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsEmptyUser(t *testing.T) {
	svc := New("secret", time.Hour)
	token, err := svc.GenerateToken("  ", "", "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenContext(t *testing.T) {
	ctx := WithToken(context.Background(), "abc")
	assert.Equal(t, "abc", TokenFromContext(ctx))
	assert.Empty(t, TokenFromContext(context.Background()))
}
