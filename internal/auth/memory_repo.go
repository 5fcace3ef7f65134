package auth

import (
	"strings"
	"sync"
	"time"
)

// MemoryUserRepo — потокобезопасное хранилище аккаунтов в памяти.
// Достаточно для одиночного процесса симуляции; данные не переживают
// перезапуск.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	users  map[string]*User // ключ — имя в нижнем регистре
	nextID uint64
}

// NewMemoryUserRepo создаёт репозиторий с административным аккаунтом.
// Пустые adminUser/adminPass пропускают создание (логин будет невозможен
// до явного CreateUser).
func NewMemoryUserRepo(adminUser, adminPass string) (*MemoryUserRepo, error) {
	repo := &MemoryUserRepo{
		users:  make(map[string]*User),
		nextID: 1,
	}

	if adminUser != "" && adminPass != "" {
		hash, err := HashPassword(adminPass)
		if err != nil {
			return nil, err
		}
		if _, err := repo.CreateUser(adminUser, hash, true); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func normalize(username string) string {
	return strings.ToLower(username)
}

// GetUserByUsername возвращает пользователя по имени без учёта регистра.
func (r *MemoryUserRepo) GetUserByUsername(username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[normalize(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *MemoryUserRepo) GetUserByID(id uint64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

// CreateUser создаёт пользователя с уникальным именем.
func (r *MemoryUserRepo) CreateUser(username, passwordHash string, isAdmin bool) (*User, error) {
	key := normalize(username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[key]; exists {
		return nil, ErrUserExists
	}

	user := &User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		IsAdmin:      isAdmin,
	}
	r.nextID++
	r.users[key] = user
	return user, nil
}

// ValidateCredentials проверяет пару имя/пароль и отмечает время входа.
func (r *MemoryUserRepo) ValidateCredentials(username, password string) (*User, error) {
	user, err := r.GetUserByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	r.mu.Lock()
	user.LastLogin = time.Now()
	r.mu.Unlock()
	return user, nil
}
