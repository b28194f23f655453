// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/hisho/internal/model"
	"github.com/hitoshi/hisho/internal/repository"
)

// SessionDeleter はユーザーの全セッションを破棄するインターフェース。
type SessionDeleter interface {
	DeleteByUserID(userID string) int
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	credRepo    repository.CredentialRepository
	projectRepo repository.ProjectRepository
	sessions    SessionDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	credRepo repository.CredentialRepository,
	projectRepo repository.ProjectRepository,
	sessions SessionDeleter,
) *Service {
	return &Service{
		userRepo:    userRepo,
		credRepo:    credRepo,
		projectRepo: projectRepo,
		sessions:    sessions,
	}
}

// GetProfile はユーザーのプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: credential → プロジェクト → セッション → user（+ CASCADE: identities）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. OAuthクレデンシャルを削除
	if err := s.credRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("クレデンシャルの削除に失敗しました: %w", err)
	}

	// 2. プロジェクトを削除（tasks, task_tagsはCASCADE削除）
	if err := s.projectRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("プロジェクトの削除に失敗しました: %w", err)
	}

	// 3. インメモリセッションを破棄
	if s.sessions != nil {
		s.sessions.DeleteByUserID(userID)
	}

	// 4. ユーザーを削除（identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
