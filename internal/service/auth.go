package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	security "github.com/linemk/shop-bot/internal/jwt-new"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (string, error)
	// TokenTTL — срок жизни выдаваемых токенов
	TokenTTL() time.Duration
}

// AuthService выдаёт токены операторам HTTP API заказов.
// Оператор один, его логин и bcrypt-хэш пароля задаются в конфиге.
type AuthService struct {
	log          *slog.Logger
	username     string
	passwordHash []byte
	secret       string
	tokenTTL     time.Duration
}

func NewAuthService(log *slog.Logger, username, passwordHash, secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:          log,
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       secret,
		tokenTTL:     tokenTTL,
	}
}

func (a *AuthService) TokenTTL() time.Duration {
	return a.tokenTTL
}

// Login сверяет логин и пароль и генерирует JWT-токен.
// Неверный логин и неверный пароль неразличимы для клиента.
func (a *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	const op = "service.AuthService.Login"
	logger := a.log.With(slog.String("op", op), slog.String("username", username))

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// хэш проверяется всегда, чтобы время ответа не выдавало существование логина
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		logger.Warn("invalid credentials")
		return "", fmt.Errorf("%s: invalid credentials: %w", op, ErrUnauthorized)
	}

	token, err := security.NewToken(ctx, username, a.secret, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("operator logged in")
	return token, nil
}
