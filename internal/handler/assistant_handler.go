package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hisho/internal/assistant"
	"github.com/hitoshi/hisho/internal/middleware"
	"github.com/hitoshi/hisho/internal/model"
)

// AssistantRunner はアシスタントハンドラーが必要とするオーケストレータのインターフェース。
type AssistantRunner interface {
	Run(ctx context.Context, userID, utterance, projectContext string) (*assistant.Result, error)
}

// ProjectContextSource はチャットに添えるプロジェクト状況の取得インターフェース。
type ProjectContextSource interface {
	ListTasks(ctx context.Context, userID, projectID string) ([]model.TaskWithTags, error)
}

// AssistantHandler はチャットのHTTPハンドラー。
type AssistantHandler struct {
	runner   AssistantRunner
	projects ProjectContextSource
}

// NewAssistantHandler はAssistantHandlerを生成する。
func NewAssistantHandler(runner AssistantRunner, projects ProjectContextSource) *AssistantHandler {
	return &AssistantHandler{
		runner:   runner,
		projects: projects,
	}
}

// chatRequest はチャットリクエストのボディ。
// ProjectIDを指定すると、そのプロジェクトのタスク状況をコンテキストとしてモデルに渡す。
type chatRequest struct {
	Message   string `json:"message"`
	ProjectID string `json:"project_id"`
}

// chatResponse はチャットのAPIレスポンス。
type chatResponse struct {
	Reply     string           `json:"reply"`
	Steps     []assistant.Step `json:"steps"`
	ToolCalls int              `json:"tool_calls"`
}

// Chat は1回のユーザー発話を処理する。
// POST /api/assistant/chat
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "メッセージが空です。",
			Category: "validation",
			Action:   "messageを指定してください。",
		})
		return
	}

	projectContext := ""
	if req.ProjectID != "" {
		projectContext, err = h.buildProjectContext(r.Context(), userID, req.ProjectID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
	}

	result, err := h.runner.Run(r.Context(), userID, req.Message, projectContext)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	steps := result.Steps
	if steps == nil {
		steps = []assistant.Step{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		Reply:     result.Content,
		Steps:     steps,
		ToolCalls: result.TotalToolCalls,
	})
}

// buildProjectContext はプロジェクトのタスク状況をモデル向けのテキストに整形する。
func (h *AssistantHandler) buildProjectContext(ctx context.Context, userID, projectID string) (string, error) {
	tasks, err := h.projects.ListTasks(ctx, userID, projectID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("現在見ているプロジェクトのタスク:\n")
	if len(tasks) == 0 {
		b.WriteString("（タスクなし）\n")
		return b.String(), nil
	}
	for _, t := range tasks {
		fmt.Fprintf(&b, "- [%s] %s", t.Status, t.Title)
		if len(t.Tags) > 0 {
			names := make([]string, len(t.Tags))
			for i, tag := range t.Tags {
				names[i] = tag.Name
			}
			fmt.Fprintf(&b, " (tags: %s)", strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// SetupAssistantRoutes はチャット関連のルーティングを設定したchi.Routerを返す。
// chatMiddleware が nil でない場合、チャット専用レート制限を適用する。
func SetupAssistantRoutes(runner AssistantRunner, projects ProjectContextSource, chatMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	h := NewAssistantHandler(runner, projects)

	r.Route("/api/assistant", func(r chi.Router) {
		if chatMiddleware != nil {
			r.With(chatMiddleware).Post("/chat", h.Chat)
		} else {
			r.Post("/chat", h.Chat)
		}
	})

	return r
}
