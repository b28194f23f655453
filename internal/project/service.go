// Package project はカンバン（プロジェクト・タスク・タグ）のドメインロジックを提供する。
package project

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hisho/internal/model"
	"github.com/hitoshi/hisho/internal/repository"
)

// Service はカンバン操作のサービス層。
// 所有権チェックはすべてここで行う。他ユーザーのリソースは
// 存在の有無を漏らさないよう、一律not foundとして扱う。
type Service struct {
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
	tagRepo     repository.TagRepository
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
	tagRepo repository.TagRepository,
) *Service {
	return &Service{
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
		tagRepo:     tagRepo,
		now:         time.Now,
	}
}

// ownedProject はプロジェクトを取得し、所有者を確認する。
func (s *Service) ownedProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if project == nil || project.UserID != userID {
		return nil, model.NewProjectNotFoundError(projectID)
	}
	return project, nil
}

// ownedTask はタスクを取得し、親プロジェクトの所有者を確認する。
func (s *Service) ownedTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	if _, err := s.ownedProject(ctx, userID, task.ProjectID); err != nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return task, nil
}

// ListProjects はユーザーのプロジェクト一覧を作成日時昇順で返す。
func (s *Service) ListProjects(ctx context.Context, userID string) ([]*model.Project, error) {
	projects, err := s.projectRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	return projects, nil
}

// GetProject はプロジェクトを取得する。
func (s *Service) GetProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	return s.ownedProject(ctx, userID, projectID)
}

// CreateProject は新しいプロジェクトを作成する。
func (s *Service) CreateProject(ctx context.Context, userID, title string) (*model.Project, error) {
	if title == "" {
		return nil, fmt.Errorf("project title is required")
	}

	now := s.now()
	project := &model.Project{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}
	return project, nil
}

// RenameProject はプロジェクトのタイトルを変更する。
func (s *Service) RenameProject(ctx context.Context, userID, projectID, title string) (*model.Project, error) {
	if title == "" {
		return nil, fmt.Errorf("project title is required")
	}

	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if err := s.projectRepo.UpdateTitle(ctx, projectID, title); err != nil {
		return nil, fmt.Errorf("プロジェクトの更新に失敗しました: %w", err)
	}
	project.Title = title
	return project, nil
}

// DeleteProject はプロジェクトを削除する。
// 配下のタスクとタグ付けはCASCADE削除される。
func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	if _, err := s.ownedProject(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.projectRepo.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("プロジェクトの削除に失敗しました: %w", err)
	}
	return nil
}

// ListTasks はプロジェクトのタスク一覧をタグ付きで返す。
func (s *Service) ListTasks(ctx context.Context, userID, projectID string) ([]model.TaskWithTags, error) {
	if _, err := s.ownedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.ListByProjectID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// TaskInput はタスク作成・更新の入力。
type TaskInput struct {
	Title       string
	Description string
	Status      string
}

// CreateTask はプロジェクトにタスクを作成する。
// ステータス未指定はto-doとする。
func (s *Service) CreateTask(ctx context.Context, userID, projectID string, in TaskInput) (*model.Task, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	if in.Status == "" {
		in.Status = string(model.TaskStatusTodo)
	}
	if !model.ValidTaskStatus(in.Status) {
		return nil, model.NewInvalidStatusError(in.Status)
	}

	if _, err := s.ownedProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	now := s.now()
	task := &model.Task{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      model.TaskStatus(in.Status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return task, nil
}

// UpdateTask はタスクのタイトル・説明・ステータスを更新する。
// 空のフィールドは既存値を維持する。
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, in TaskInput) (*model.Task, error) {
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if in.Title != "" {
		task.Title = in.Title
	}
	if in.Description != "" {
		task.Description = in.Description
	}
	if in.Status != "" {
		if !model.ValidTaskStatus(in.Status) {
			return nil, model.NewInvalidStatusError(in.Status)
		}
		task.Status = model.TaskStatus(in.Status)
	}
	task.UpdatedAt = s.now()

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	return task, nil
}

// DeleteTask はタスクを削除する。
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	return nil
}

// AttachTag はタスクにタグを付与する。タグが無ければ作成する。
func (s *Service) AttachTag(ctx context.Context, userID, taskID, tagName string) (*model.Tag, error) {
	if tagName == "" {
		return nil, fmt.Errorf("tag name is required")
	}

	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return nil, err
	}

	tag, err := s.tagRepo.FindOrCreate(ctx, userID, tagName)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}
	if err := s.tagRepo.AttachToTask(ctx, taskID, tag.ID); err != nil {
		return nil, fmt.Errorf("タグの付与に失敗しました: %w", err)
	}
	return tag, nil
}

// DetachTag はタスクからタグを外す。
func (s *Service) DetachTag(ctx context.Context, userID, taskID, tagID string) error {
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return err
	}
	if err := s.tagRepo.DetachFromTask(ctx, taskID, tagID); err != nil {
		return fmt.Errorf("タグの削除に失敗しました: %w", err)
	}
	return nil
}
