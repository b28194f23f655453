package project

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/hisho/internal/model"
)

// --- モック定義 ---

type mockProjectRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.Project, error)
	listByUserIDFn   func(ctx context.Context, userID string) ([]*model.Project, error)
	createFn         func(ctx context.Context, project *model.Project) error
	updateTitleFn    func(ctx context.Context, id, title string) error
	deleteFn         func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockProjectRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Project, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockProjectRepo) Create(ctx context.Context, project *model.Project) error {
	if m.createFn != nil {
		return m.createFn(ctx, project)
	}
	return nil
}

func (m *mockProjectRepo) UpdateTitle(ctx context.Context, id, title string) error {
	if m.updateTitleFn != nil {
		return m.updateTitleFn(ctx, id, title)
	}
	return nil
}

func (m *mockProjectRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockProjectRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type mockTaskRepo struct {
	findByIDFn        func(ctx context.Context, id string) (*model.Task, error)
	listByProjectIDFn func(ctx context.Context, projectID string) ([]model.TaskWithTags, error)
	createFn          func(ctx context.Context, task *model.Task) error
	updateFn          func(ctx context.Context, task *model.Task) error
	deleteFn          func(ctx context.Context, id string) error
}

func (m *mockTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockTaskRepo) ListByProjectID(ctx context.Context, projectID string) ([]model.TaskWithTags, error) {
	if m.listByProjectIDFn != nil {
		return m.listByProjectIDFn(ctx, projectID)
	}
	return nil, nil
}

func (m *mockTaskRepo) Create(ctx context.Context, task *model.Task) error {
	if m.createFn != nil {
		return m.createFn(ctx, task)
	}
	return nil
}

func (m *mockTaskRepo) Update(ctx context.Context, task *model.Task) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, task)
	}
	return nil
}

func (m *mockTaskRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockTagRepo struct {
	findOrCreateFn func(ctx context.Context, userID, name string) (*model.Tag, error)
	attachFn       func(ctx context.Context, taskID, tagID string) error
	detachFn       func(ctx context.Context, taskID, tagID string) error
	listByTaskIDFn func(ctx context.Context, taskID string) ([]model.Tag, error)
}

func (m *mockTagRepo) FindOrCreate(ctx context.Context, userID, name string) (*model.Tag, error) {
	if m.findOrCreateFn != nil {
		return m.findOrCreateFn(ctx, userID, name)
	}
	return &model.Tag{ID: "tag-1", UserID: userID, Name: name}, nil
}

func (m *mockTagRepo) AttachToTask(ctx context.Context, taskID, tagID string) error {
	if m.attachFn != nil {
		return m.attachFn(ctx, taskID, tagID)
	}
	return nil
}

func (m *mockTagRepo) DetachFromTask(ctx context.Context, taskID, tagID string) error {
	if m.detachFn != nil {
		return m.detachFn(ctx, taskID, tagID)
	}
	return nil
}

func (m *mockTagRepo) ListByTaskID(ctx context.Context, taskID string) ([]model.Tag, error) {
	if m.listByTaskIDFn != nil {
		return m.listByTaskIDFn(ctx, taskID)
	}
	return nil, nil
}

func ownedProjectRepo(userID string) *mockProjectRepo {
	return &mockProjectRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Project, error) {
			return &model.Project{ID: id, UserID: userID, Title: "仕事"}, nil
		},
	}
}

// --- テスト ---

func TestService_CreateProject(t *testing.T) {
	var created *model.Project
	projectRepo := &mockProjectRepo{
		createFn: func(ctx context.Context, project *model.Project) error {
			created = project
			return nil
		},
	}
	s := NewService(projectRepo, &mockTaskRepo{}, &mockTagRepo{})

	project, err := s.CreateProject(context.Background(), "user-1", "引っ越し準備")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected project to be persisted")
	}
	if project.UserID != "user-1" || project.Title != "引っ越し準備" {
		t.Errorf("unexpected project: %+v", project)
	}
	if project.ID == "" {
		t.Error("expected generated project id")
	}
}

func TestService_CreateProject_EmptyTitle(t *testing.T) {
	s := NewService(&mockProjectRepo{}, &mockTaskRepo{}, &mockTagRepo{})

	if _, err := s.CreateProject(context.Background(), "user-1", ""); err == nil {
		t.Fatal("expected error for empty title")
	}
}

func TestService_GetProject(t *testing.T) {
	projectRepo := &mockProjectRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Project, error) {
			return &model.Project{ID: id, UserID: "user-1", Title: "旅行計画"}, nil
		},
	}
	s := NewService(projectRepo, &mockTaskRepo{}, &mockTagRepo{})

	project, err := s.GetProject(context.Background(), "user-1", "proj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project.ID != "proj-1" || project.Title != "旅行計画" {
		t.Errorf("unexpected project: %+v", project)
	}
}

func TestService_GetProject_NotOwned(t *testing.T) {
	projectRepo := &mockProjectRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Project, error) {
			return &model.Project{ID: id, UserID: "someone-else"}, nil
		},
	}
	s := NewService(projectRepo, &mockTaskRepo{}, &mockTagRepo{})

	_, err := s.GetProject(context.Background(), "user-1", "proj-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeProjectNotFound {
		t.Errorf("unexpected code: %s", apiErr.Code)
	}
}

func TestService_RenameProject_NotOwned(t *testing.T) {
	projectRepo := &mockProjectRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Project, error) {
			return &model.Project{ID: id, UserID: "someone-else"}, nil
		},
	}
	s := NewService(projectRepo, &mockTaskRepo{}, &mockTagRepo{})

	_, err := s.RenameProject(context.Background(), "user-1", "proj-1", "新しい名前")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeProjectNotFound {
		t.Errorf("unexpected code: %s", apiErr.Code)
	}
}

func TestService_DeleteProject(t *testing.T) {
	deleted := ""
	projectRepo := ownedProjectRepo("user-1")
	projectRepo.deleteFn = func(ctx context.Context, id string) error {
		deleted = id
		return nil
	}
	s := NewService(projectRepo, &mockTaskRepo{}, &mockTagRepo{})

	if err := s.DeleteProject(context.Background(), "user-1", "proj-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "proj-1" {
		t.Errorf("expected proj-1 deleted, got %q", deleted)
	}
}

func TestService_CreateTask_DefaultsStatusToTodo(t *testing.T) {
	var created *model.Task
	taskRepo := &mockTaskRepo{
		createFn: func(ctx context.Context, task *model.Task) error {
			created = task
			return nil
		},
	}
	s := NewService(ownedProjectRepo("user-1"), taskRepo, &mockTagRepo{})

	task, err := s.CreateTask(context.Background(), "user-1", "proj-1", TaskInput{Title: "荷造り"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected task to be persisted")
	}
	if task.Status != model.TaskStatusTodo {
		t.Errorf("expected to-do, got %s", task.Status)
	}
}

func TestService_CreateTask_InvalidStatus(t *testing.T) {
	s := NewService(ownedProjectRepo("user-1"), &mockTaskRepo{}, &mockTagRepo{})

	_, err := s.CreateTask(context.Background(), "user-1", "proj-1", TaskInput{Title: "荷造り", Status: "blocked"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidStatus {
		t.Errorf("unexpected code: %s", apiErr.Code)
	}
}

func TestService_UpdateTask_PartialUpdate(t *testing.T) {
	taskRepo := &mockTaskRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Task, error) {
			return &model.Task{
				ID:          id,
				ProjectID:   "proj-1",
				Title:       "荷造り",
				Description: "段ボールを買う",
				Status:      model.TaskStatusTodo,
				UpdatedAt:   time.Now().Add(-time.Hour),
			}, nil
		},
	}
	s := NewService(ownedProjectRepo("user-1"), taskRepo, &mockTagRepo{})

	task, err := s.UpdateTask(context.Background(), "user-1", "task-1", TaskInput{Status: "in-progress"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != model.TaskStatusInProgress {
		t.Errorf("expected in-progress, got %s", task.Status)
	}
	// 指定しなかったフィールドは維持される
	if task.Title != "荷造り" || task.Description != "段ボールを買う" {
		t.Errorf("expected unchanged fields, got %+v", task)
	}
}

func TestService_UpdateTask_NotFound(t *testing.T) {
	s := NewService(ownedProjectRepo("user-1"), &mockTaskRepo{}, &mockTagRepo{})

	_, err := s.UpdateTask(context.Background(), "user-1", "task-404", TaskInput{Title: "x"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeTaskNotFound {
		t.Errorf("unexpected code: %s", apiErr.Code)
	}
}

func TestService_UpdateTask_OtherUsersTaskHiddenAsNotFound(t *testing.T) {
	taskRepo := &mockTaskRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Task, error) {
			return &model.Task{ID: id, ProjectID: "proj-1", Title: "荷造り"}, nil
		},
	}
	projectRepo := &mockProjectRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Project, error) {
			return &model.Project{ID: id, UserID: "someone-else"}, nil
		},
	}
	s := NewService(projectRepo, taskRepo, &mockTagRepo{})

	_, err := s.UpdateTask(context.Background(), "user-1", "task-1", TaskInput{Title: "x"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeTaskNotFound {
		t.Errorf("expected task not found, got %s", apiErr.Code)
	}
}

func TestService_ListTasks(t *testing.T) {
	taskRepo := &mockTaskRepo{
		listByProjectIDFn: func(ctx context.Context, projectID string) ([]model.TaskWithTags, error) {
			return []model.TaskWithTags{
				{Task: model.Task{ID: "task-1", Title: "荷造り"}},
			}, nil
		},
	}
	s := NewService(ownedProjectRepo("user-1"), taskRepo, &mockTagRepo{})

	tasks, err := s.ListTasks(context.Background(), "user-1", "proj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "task-1" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
}

func TestService_AttachTag_FindsOrCreates(t *testing.T) {
	attachedTask, attachedTag := "", ""
	tagRepo := &mockTagRepo{
		attachFn: func(ctx context.Context, taskID, tagID string) error {
			attachedTask, attachedTag = taskID, tagID
			return nil
		},
	}
	taskRepo := &mockTaskRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Task, error) {
			return &model.Task{ID: id, ProjectID: "proj-1"}, nil
		},
	}
	s := NewService(ownedProjectRepo("user-1"), taskRepo, tagRepo)

	tag, err := s.AttachTag(context.Background(), "user-1", "task-1", "緊急")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag.Name != "緊急" {
		t.Errorf("unexpected tag: %+v", tag)
	}
	if attachedTask != "task-1" || attachedTag != tag.ID {
		t.Errorf("unexpected attach: task=%s tag=%s", attachedTask, attachedTag)
	}
}
