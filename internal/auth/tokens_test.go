package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "worldsim-test-secret-0123456789"

func TestTokenService_MintAndVerify(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	user := &User{ID: 42, Username: "operator", IsAdmin: true}
	token, err := svc.Mint(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err, "Свежевыпущенный токен должен проходить проверку")
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "operator", claims.Username)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "worldsim", claims.Issuer)
}

func TestTokenService_RejectsShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	assert.Error(t, err, "Короткий секрет — ошибка конфигурации")
}

func TestTokenService_RejectsTamperedToken(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := svc.Mint(&User{ID: 1, Username: "user"})
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "AAAA"
	_, err = svc.Verify(tampered)
	assert.Error(t, err, "Подделанный токен должен отклоняться")
}

func TestTokenService_RejectsForeignSecret(t *testing.T) {
	issuer, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	verifier, err := NewTokenService("another-secret-0123456789abcdef", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Mint(&User{ID: 1, Username: "user"})
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err, "Токен с чужой подписью должен отклоняться")
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Nanosecond)
	require.NoError(t, err)

	token, err := svc.Mint(&User{ID: 1, Username: "user"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = svc.Verify(token)
	assert.Error(t, err, "Просроченный токен должен отклоняться")
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc, err := NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify("not.a.token")
	assert.Error(t, err)
	_, err = svc.Verify("")
	assert.Error(t, err)
}
