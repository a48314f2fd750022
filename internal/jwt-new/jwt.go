package security

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin — единственная роль, которой выдаются токены
const RoleAdmin = "admin"

// NewToken генерирует JWT-токен оператора с заданным временем жизни.
func NewToken(_ context.Context, subject, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not set")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": RoleAdmin,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
