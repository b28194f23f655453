// Package assistant はLLMツール呼び出しによるチャットアシスタントを提供する。
// ツールレジストリは起動時に固定セットを登録し、以降は読み取り専用。
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hitoshi/hisho/internal/llm"
)

// Handler はツールの実行関数。
// 結果は成功・失敗を問わずモデルに渡すテキストとして返す。
// エラーを外に投げてはならない。ドメインエラーは内部で捕捉し、
// 人間が読める失敗文字列に変換する。
type Handler func(ctx context.Context, userID string, args json.RawMessage) (result string, ok bool)

// Tool はモデルが呼び出せる1つの能力。
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
	Handler     Handler
}

// Registry は登録済みツールを管理する。
type Registry struct {
	tools map[string]Tool
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register はツールを登録する。
// 名前の重複は配線ミスなのでpanicする（起動時にのみ呼ばれる前提）。
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name]; exists {
		panic(fmt.Sprintf("tool %q is already registered", t.Name))
	}
	r.tools[t.Name] = t
}

// Schemas は全ツールのスキーマを名前順で返す。
func (r *Registry) Schemas() []llm.ToolSchema {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]llm.ToolSchema, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
			Required:    t.Required,
		})
	}
	return schemas
}

// Execute は指定ツールを実行し、モデルに返す結果テキストを返す。
// 未知のツール名も実行失敗もテキストとして返し、会話を継続させる。
func (r *Registry) Execute(ctx context.Context, userID, name string, args json.RawMessage) (string, bool) {
	t, exists := r.tools[name]
	if !exists {
		return fmt.Sprintf("unknown tool: %q", name), false
	}
	return t.Handler(ctx, userID, args)
}
