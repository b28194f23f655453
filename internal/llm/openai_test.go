package llm

import (
	"testing"
)

func TestBuildMessages_SystemPromptFirst(t *testing.T) {
	req := &ChatRequest{
		SystemPrompt: "あなたは秘書です。",
		Messages: []Message{
			{Role: RoleUser, Content: "明日の予定は？"},
		},
	}

	params := buildMessages(req)
	if len(params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(params))
	}
	if params[0].OfSystem == nil {
		t.Error("expected first param to be system message")
	}
	if params[1].OfUser == nil {
		t.Error("expected second param to be user message")
	}
}

func TestBuildMessages_AssistantWithToolCalls(t *testing.T) {
	req := &ChatRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "予定を教えて"},
			{
				Role: RoleAssistant,
				ToolCalls: []ToolCall{
					{ID: "call-1", Name: "get_calendar_events", Arguments: []byte(`{"maxResults":5}`)},
				},
			},
			{Role: RoleTool, Content: `[{"summary":"定例"}]`, ToolCallID: "call-1"},
		},
	}

	params := buildMessages(req)
	if len(params) != 3 {
		t.Fatalf("expected 3 params, got %d", len(params))
	}
	assistant := params[1].OfAssistant
	if assistant == nil {
		t.Fatal("expected assistant message")
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(assistant.ToolCalls))
	}
	if assistant.ToolCalls[0].Function.Name != "get_calendar_events" {
		t.Errorf("unexpected tool name: %s", assistant.ToolCalls[0].Function.Name)
	}
	if params[2].OfTool == nil {
		t.Fatal("expected tool result message")
	}
	if params[2].OfTool.ToolCallID != "call-1" {
		t.Errorf("unexpected tool call id: %s", params[2].OfTool.ToolCallID)
	}
}

func TestBuildTools_IncludesSchema(t *testing.T) {
	tools := buildTools([]ToolSchema{
		{
			Name:        "create_project",
			Description: "プロジェクトを作成する",
			Parameters: map[string]any{
				"title": map[string]any{"type": "string"},
			},
			Required: []string{"title"},
		},
	})

	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	fn := tools[0].Function
	if fn.Name != "create_project" {
		t.Errorf("unexpected name: %s", fn.Name)
	}
	if fn.Parameters["type"] != "object" {
		t.Error("expected object-typed parameters")
	}
	required, ok := fn.Parameters["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "title" {
		t.Errorf("unexpected required list: %v", fn.Parameters["required"])
	}
}

func TestBuildTools_Empty(t *testing.T) {
	if got := buildTools(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestNewOpenAIClient_Initializes(t *testing.T) {
	c := NewOpenAIClient("test-key", "gpt-4o-mini", "")
	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.model != "gpt-4o-mini" {
		t.Errorf("unexpected model: %s", c.model)
	}
}
