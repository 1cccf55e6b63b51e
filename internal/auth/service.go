// Package auth はデバイス登録とアクセストークンによる認証を提供する。
//
// アカウントは匿名で、最初のデバイス登録時にユーザーが作成される。
// 以降のAPI呼び出しは登録時に発行したアクセストークンで認証する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/repository"
)

const maxPushTokenLength = 256

// Rescheduler はリマインダーの再計画を要求するインターフェース。
type Rescheduler interface {
	Refresh(ctx context.Context, userID string)
}

// DeviceInput はデバイス登録・更新の入力。
type DeviceInput struct {
	Platform             model.Platform
	PushToken            string
	NotificationsEnabled bool
}

// Registration はデバイス登録の結果。
type Registration struct {
	UserID      string
	DeviceID    string
	AccessToken string
	ExpiresAt   time.Time
}

// Service はデバイス登録に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	deviceRepo  repository.DeviceRepository
	tokens      *TokenIssuer
	rescheduler Rescheduler
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	deviceRepo repository.DeviceRepository,
	tokens *TokenIssuer,
	rescheduler Rescheduler,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:    userRepo,
		deviceRepo:  deviceRepo,
		tokens:      tokens,
		rescheduler: rescheduler,
		logger:      logger,
	}
}

// RegisterDevice は匿名ユーザーとデバイスを作成し、アクセストークンを発行する。
func (s *Service) RegisterDevice(ctx context.Context, input DeviceInput) (*Registration, error) {
	if err := validateDeviceInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	device := &model.Device{
		ID:                   uuid.New().String(),
		UserID:               user.ID,
		Platform:             input.Platform,
		PushToken:            input.PushToken,
		NotificationsEnabled: input.NotificationsEnabled,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.userRepo.CreateWithDevice(ctx, user, device); err != nil {
		return nil, fmt.Errorf("ユーザーとデバイスの作成に失敗しました: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, device.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("デバイスを登録しました",
		slog.String("user_id", user.ID),
		slog.String("device_id", device.ID),
		slog.String("platform", string(device.Platform)),
	)

	return &Registration{
		UserID:      user.ID,
		DeviceID:    device.ID,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// UpdateDevice はプッシュトークンと通知許可状態を更新し、リマインダーを再計画する。
// 通知の可否は配信チャネルの有無に影響するため、更新のたびに再計画を要求する。
func (s *Service) UpdateDevice(ctx context.Context, userID, deviceID string, input DeviceInput) (*model.Device, error) {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("デバイスの取得に失敗しました: %w", err)
	}
	if device == nil || device.UserID != userID {
		return nil, model.NewDeviceNotFoundError()
	}

	if input.Platform == "" {
		input.Platform = device.Platform
	}
	if err := validateDeviceInput(input); err != nil {
		return nil, err
	}

	device.Platform = input.Platform
	device.PushToken = input.PushToken
	device.NotificationsEnabled = input.NotificationsEnabled
	device.UpdatedAt = time.Now()

	if err := s.deviceRepo.Update(ctx, device); err != nil {
		return nil, fmt.Errorf("デバイスの更新に失敗しました: %w", err)
	}

	if s.rescheduler != nil {
		s.rescheduler.Refresh(ctx, userID)
	}
	return device, nil
}

// validateDeviceInput はプラットフォームとExpoプッシュトークンの形式を検証する。
func validateDeviceInput(input DeviceInput) error {
	if !input.Platform.Valid() {
		return model.NewValidationError("platform", "ios または android を指定してください")
	}
	if input.PushToken == "" {
		return nil
	}
	if len(input.PushToken) > maxPushTokenLength {
		return model.NewValidationError("pushToken", "長すぎます")
	}
	if !isExpoPushToken(input.PushToken) {
		return model.NewValidationError("pushToken", "Expoのプッシュトークン形式ではありません")
	}
	return nil
}

func isExpoPushToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	for _, prefix := range []string{"ExponentPushToken[", "ExpoPushToken["} {
		if strings.HasPrefix(token, prefix) && len(token) > len(prefix)+1 {
			return true
		}
	}
	return false
}
