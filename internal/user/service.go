// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/hydrate/internal/model"
	"github.com/hitoshi/hydrate/internal/repository"
)

// SessionCloser は接続中のリアルタイムセッションを切断するインターフェース。
type SessionCloser interface {
	Disconnect(userID string) int
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	sessions SessionCloser
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, sessions SessionCloser, logger *slog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		sessions: sessions,
		logger:   logger,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// ユーザー行を削除すると、デバイス、プロフィール、目標、設定、摂取記録、
// リマインダーはCASCADE削除される。配信待ちのリマインダーも同時に消えるため
// 退会後に通知が届くことはない。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	closed := 0
	if s.sessions != nil {
		closed = s.sessions.Disconnect(userID)
	}

	s.logger.Info("退会処理が完了しました",
		slog.String("user_id", userID),
		slog.Int("closed_sessions", closed),
	)

	return nil
}
