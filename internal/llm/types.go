// Package llm はLLMプロバイダーへのチャット補完呼び出しを抽象化する。
package llm

import (
	"context"
	"encoding/json"
)

// メッセージロール。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message は会話履歴の1メッセージを表す。
type Message struct {
	Role    string
	Content string

	// ToolCalls はアシスタントメッセージに付随するツール呼び出し。
	ToolCalls []ToolCall

	// ToolCallID はツール結果メッセージが応答するツール呼び出しのID。
	ToolCallID string
}

// ToolCall はモデルが要求した1つのツール呼び出し。
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolSchema はモデルに提示するツール定義。
// Parametersはobject型JSONスキーマのpropertiesマップ。
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
}

// ChatRequest は1回のチャット補完要求。
type ChatRequest struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSchema
}

// ChatResponse はチャット補完の結果。
// ToolCallsが空でない場合、モデルはツール実行を要求している。
type ChatResponse struct {
	Content          string
	ToolCalls        []ToolCall
	PromptTokens     int64
	CompletionTokens int64
}

// Client はLLMプロバイダーのインターフェース。
// テストではモック実装に差し替える。
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
