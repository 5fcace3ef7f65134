package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *MemoryUserRepo {
	t.Helper()
	repo, err := NewMemoryUserRepo("admin", "s3cret")
	require.NoError(t, err)
	return repo
}

func TestMemoryUserRepo_AdminSeed(t *testing.T) {
	repo := newRepo(t)

	user, err := repo.GetUserByUsername("admin")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
	assert.NotEqual(t, "s3cret", user.PasswordHash, "Пароль хранится только хешем")
}

func TestMemoryUserRepo_CaseInsensitiveLookup(t *testing.T) {
	repo := newRepo(t)

	user, err := repo.GetUserByUsername("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
}

func TestMemoryUserRepo_DuplicateUsername(t *testing.T) {
	repo := newRepo(t)

	hash, err := HashPassword("x")
	require.NoError(t, err)

	_, err = repo.CreateUser("Admin", hash, false)
	assert.ErrorIs(t, err, ErrUserExists, "Имена уникальны без учёта регистра")
}

func TestMemoryUserRepo_ValidateCredentials(t *testing.T) {
	repo := newRepo(t)

	user, err := repo.ValidateCredentials("admin", "s3cret")
	require.NoError(t, err)
	assert.False(t, user.LastLogin.IsZero(), "Успешный вход отмечает LastLogin")

	_, err = repo.ValidateCredentials("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = repo.ValidateCredentials("ghost", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials,
		"Неизвестный пользователь неотличим от неверного пароля")
}

func TestMemoryUserRepo_GetUserByID(t *testing.T) {
	repo := newRepo(t)

	admin, err := repo.GetUserByUsername("admin")
	require.NoError(t, err)

	found, err := repo.GetUserByID(admin.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.Username, found.Username)

	_, err = repo.GetUserByID(999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemoryUserRepo_EmptySeedSkipsAdmin(t *testing.T) {
	repo, err := NewMemoryUserRepo("", "")
	require.NoError(t, err)

	_, err = repo.GetUserByUsername("admin")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
