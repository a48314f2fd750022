package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/storage"
)

type UserService interface {
	// GetUser возвращает пользователя или ErrNotFound, если он ещё не писал боту
	GetUser(ctx context.Context, externalID int64) (*models.User, error)
	SetLanguage(ctx context.Context, externalID int64, lang models.Language) error
	IsAdmin(externalID int64) bool
}

type userService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	admins   map[int64]struct{}
}

func NewUserService(log *slog.Logger, userRepo storage.UserStorage, adminIDs []int64) UserService {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &userService{log: log, userRepo: userRepo, admins: admins}
}

func (s *userService) GetUser(ctx context.Context, externalID int64) (*models.User, error) {
	const op = "service.UserService.GetUser"

	user, err := s.userRepo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.log.With(slog.String("op", op)).Error("failed to get user", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w: %w", op, classify(err), err)
	}
	return user, nil
}

func (s *userService) SetLanguage(ctx context.Context, externalID int64, lang models.Language) error {
	const op = "service.UserService.SetLanguage"
	logger := s.log.With(slog.String("op", op), slog.Int64("externalID", externalID))

	if !lang.Valid() {
		return fmt.Errorf("%s: unsupported language %q: %w", op, lang, ErrInvalidInput)
	}
	if err := s.userRepo.SetLanguage(ctx, externalID, lang); err != nil {
		logger.Error("failed to set language", slog.Any("error", err))
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	logger.Info("language saved", slog.String("language", string(lang)))
	return nil
}

func (s *userService) IsAdmin(externalID int64) bool {
	_, ok := s.admins[externalID]
	return ok
}
