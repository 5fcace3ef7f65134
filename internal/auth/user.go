package auth

import (
	"errors"
	"time"
)

// User — аккаунт для доступа к REST API мира.
type User struct {
	ID           uint64    // Неизменяемый идентификатор
	Username     string    // Уникальное имя (без учёта регистра)
	PasswordHash string    // bcrypt-хеш пароля
	CreatedAt    time.Time // Время создания аккаунта
	LastLogin    time.Time // Последний успешный вход
	IsAdmin      bool      // Право на мутирующие операции API
}

// UserRepository определяет операции хранения аккаунтов.
// Для одиночного процесса достаточно реализации в памяти; интерфейс
// позволяет подключить БД, не трогая остальной код.
type UserRepository interface {
	// GetUserByUsername возвращает пользователя по имени (без учёта регистра).
	// Отсутствие — (nil, ErrUserNotFound).
	GetUserByUsername(username string) (*User, error)

	// GetUserByID возвращает пользователя по ID.
	GetUserByID(id uint64) (*User, error)

	// CreateUser создаёт пользователя; passwordHash — уже bcrypt-хеш.
	// Конфликт имён — ErrUserExists.
	CreateUser(username, passwordHash string, isAdmin bool) (*User, error)

	// ValidateCredentials проверяет пару имя/пароль и возвращает пользователя.
	// Неверные данные — ErrInvalidCredentials.
	ValidateCredentials(username, password string) (*User, error)
}

// Доменные ошибки репозитория.
var (
	ErrUserNotFound       = errors.New("пользователь не найден")
	ErrUserExists         = errors.New("пользователь уже существует")
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
)
