package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hisho/internal/middleware"
	"github.com/hitoshi/hisho/internal/model"
	"github.com/hitoshi/hisho/internal/project"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	ListProjects(ctx context.Context, userID string) ([]*model.Project, error)
	GetProject(ctx context.Context, userID, projectID string) (*model.Project, error)
	CreateProject(ctx context.Context, userID, title string) (*model.Project, error)
	RenameProject(ctx context.Context, userID, projectID, title string) (*model.Project, error)
	DeleteProject(ctx context.Context, userID, projectID string) error

	ListTasks(ctx context.Context, userID, projectID string) ([]model.TaskWithTags, error)
	CreateTask(ctx context.Context, userID, projectID string, in project.TaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, in project.TaskInput) (*model.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error

	AttachTag(ctx context.Context, userID, taskID, tagName string) (*model.Tag, error)
	DetachTag(ctx context.Context, userID, taskID, tagID string) error
}

// ProjectHandler はプロジェクト・タスク管理のHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{
		service: service,
	}
}

// projectRequest はプロジェクト作成・更新リクエストのボディ。
type projectRequest struct {
	Title string `json:"title"`
}

// taskRequest はタスク作成・更新リクエストのボディ。
type taskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// attachTagRequest はタグ付与リクエストのボディ。
type attachTagRequest struct {
	Name string `json:"name"`
}

// projectResponse はプロジェクト情報のAPIレスポンス。
type projectResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// tagResponse はタグ情報のAPIレスポンス。
type tagResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// taskResponse はタスク情報のAPIレスポンス。
type taskResponse struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Tags        []tagResponse `json:"tags"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ListProjects はユーザーのプロジェクト一覧を返す。
// GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	projects, err := h.service.ListProjects(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]projectResponse, len(projects))
	for i, p := range projects {
		results[i] = toProjectResponse(p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"projects": results})
}

// CreateProject はプロジェクトを作成する。
// POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Title == "" {
		writeEmptyTitleError(w)
		return
	}

	p, err := h.service.CreateProject(r.Context(), userID, req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toProjectResponse(p))
}

// GetProject はプロジェクト詳細を返す。
// GET /api/projects/{id}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	p, err := h.service.GetProject(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProjectResponse(p))
}

// RenameProject はプロジェクト名を変更する。
// PATCH /api/projects/{id}
func (h *ProjectHandler) RenameProject(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Title == "" {
		writeEmptyTitleError(w)
		return
	}

	p, err := h.service.RenameProject(r.Context(), userID, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProjectResponse(p))
}

// DeleteProject はプロジェクトと配下のタスクを削除する。
// DELETE /api/projects/{id}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteProject(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTasks はプロジェクト内のタスク一覧をタグ付きで返す。
// GET /api/projects/{id}/tasks
func (h *ProjectHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		results[i] = toTaskResponse(&t.Task, t.Tags)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"tasks": results})
}

// CreateTask はプロジェクトにタスクを作成する。
// POST /api/projects/{id}/tasks
func (h *ProjectHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Title == "" {
		writeEmptyTitleError(w)
		return
	}

	task, err := h.service.CreateTask(r.Context(), userID, chi.URLParam(r, "id"), project.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTaskResponse(task, nil))
}

// UpdateTask はタスクのタイトル・説明・ステータスを部分更新する。
// PATCH /api/tasks/{id}
func (h *ProjectHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	task, err := h.service.UpdateTask(r.Context(), userID, chi.URLParam(r, "id"), project.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(task, nil))
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *ProjectHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteTask(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AttachTag はタスクにタグを付与する。タグが無ければ作成する。
// POST /api/tasks/{id}/tags
func (h *ProjectHandler) AttachTag(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req attachTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "タグ名が空です。",
			Category: "validation",
			Action:   "nameを指定してください。",
		})
		return
	}

	tag, err := h.service.AttachTag(r.Context(), userID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tagResponse{ID: tag.ID, Name: tag.Name})
}

// DetachTag はタスクからタグを外す。
// DELETE /api/tasks/{id}/tags/{tagID}
func (h *ProjectHandler) DetachTag(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DetachTag(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "tagID")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupProjectRoutes はプロジェクト・タスク管理関連のルーティングを設定したchi.Routerを返す。
func SetupProjectRoutes(service ProjectServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewProjectHandler(service)

	r.Route("/api/projects", func(r chi.Router) {
		r.Get("/", h.ListProjects)
		r.Post("/", h.CreateProject)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetProject)
			r.Patch("/", h.RenameProject)
			r.Delete("/", h.DeleteProject)

			r.Get("/tasks", h.ListTasks)
			r.Post("/tasks", h.CreateTask)
		})
	})

	r.Route("/api/tasks/{id}", func(r chi.Router) {
		r.Patch("/", h.UpdateTask)
		r.Delete("/", h.DeleteTask)

		r.Post("/tags", h.AttachTag)
		r.Delete("/tags/{tagID}", h.DetachTag)
	})

	return r
}

// --- ヘルパー関数 ---

// toProjectResponse はmodel.ProjectからAPIレスポンスに変換する。
func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:        p.ID,
		Title:     p.Title,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// toTaskResponse はmodel.TaskとタグからAPIレスポンスに変換する。
func toTaskResponse(t *model.Task, tags []model.Tag) taskResponse {
	resp := taskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Tags:        []tagResponse{},
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	for _, tag := range tags {
		resp.Tags = append(resp.Tags, tagResponse{ID: tag.ID, Name: tag.Name})
	}
	return resp
}

// writeEmptyTitleError はタイトル未指定のエラーレスポンスを書き込む。
func writeEmptyTitleError(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "タイトルが空です。",
		Category: "validation",
		Action:   "titleを指定してください。",
	})
}
