package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "worldsim"

// Claims — полезная нагрузка API-токена.
type Claims struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenService выпускает и проверяет JWT для REST API.
// Секрет приходит из конфигурации; сервис не держит глобального состояния,
// чтобы тесты и несколько миров в одном процессе не конфликтовали.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService создаёт сервис с секретом подписи и временем жизни токена.
// Нулевой ttl означает 24 часа.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("секрет подписи слишком короткий: %d байт (минимум 16)", len(secret))
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Mint выпускает подписанный токен для пользователя.
func (s *TokenService) Mint(user *User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify проверяет подпись и срок действия токена, возвращая claims.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("неожиданный метод подписи")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("проверка токена: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("недействительный токен")
	}
	return claims, nil
}
