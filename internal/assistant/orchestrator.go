package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/hisho/internal/llm"
	"github.com/hitoshi/hisho/internal/metrics"
	"github.com/hitoshi/hisho/internal/model"
)

// Step は1回のツール呼び出しの記録。
type Step struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// Result はアシスタント実行の結果。
type Result struct {
	Content        string `json:"content"`
	Steps          []Step `json:"steps"`
	TotalToolCalls int    `json:"totalToolCalls"`
}

// Orchestrator はLLMとツールレジストリの間の会話ループを駆動する。
// 1回のRunは1つのユーザー発話を処理し、会話履歴は保持しない。
type Orchestrator struct {
	llm           llm.Client
	registry      *Registry
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	location      *time.Location
	maxToolRounds int
	timeout       time.Duration
	now           func() time.Time
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(
	client llm.Client,
	registry *Registry,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	location *time.Location,
	maxToolRounds int,
	timeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		llm:           client,
		registry:      registry,
		metrics:       collector,
		logger:        logger,
		location:      location,
		maxToolRounds: maxToolRounds,
		timeout:       timeout,
		now:           time.Now,
	}
}

// systemPrompt はモデルへの指示文を組み立てる。
// 現在日時とタイムゾーン、時刻未指定時の既定値を明示する。
func (o *Orchestrator) systemPrompt(projectContext string) string {
	var b strings.Builder
	b.WriteString("あなたはユーザーの秘書です。カレンダーの確認・予定の作成・プロジェクトの作成ができます。\n")
	b.WriteString("簡潔に、日本語で応答してください。\n")
	fmt.Fprintf(&b, "現在日時: %s\n", o.now().In(o.location).Format("2006-01-02 15:04 (Mon)"))
	fmt.Fprintf(&b, "タイムゾーン: %s\n", o.location.String())
	b.WriteString("予定作成で時刻が指定されない場合は9:00開始・1時間とする。\n")
	if projectContext != "" {
		b.WriteString("\nユーザーの既存プロジェクト:\n")
		b.WriteString(projectContext)
		b.WriteString("\n")
	}
	return b.String()
}

// Run はユーザー発話を処理し、最終応答とツール実行の記録を返す。
// ツール呼び出しはmaxToolRoundsラウンドで打ち切る。
// 全体がtimeoutを超過した場合はTimeoutErrorを返す。
func (o *Orchestrator) Run(ctx context.Context, userID, utterance, projectContext string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := &llm.ChatRequest{
		SystemPrompt: o.systemPrompt(projectContext),
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: utterance},
		},
		Tools: o.registry.Schemas(),
	}

	result := &Result{}

	for round := 0; round < o.maxToolRounds; round++ {
		start := time.Now()
		resp, err := o.llm.Chat(ctx, req)
		o.metrics.RecordLLMLatency(time.Since(start))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				o.metrics.RecordChatFailure("timeout")
				return nil, &model.TimeoutError{Op: "assistant run", Err: err}
			}
			o.metrics.RecordChatFailure("llm_error")
			return nil, fmt.Errorf("failed to get model response: %w", err)
		}
		o.metrics.RecordLLMTokens(resp.PromptTokens, resp.CompletionTokens)

		if len(resp.ToolCalls) == 0 {
			result.Content = resp.Content
			o.metrics.RecordChatSuccess()
			return result, nil
		}

		req.Messages = append(req.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		results := o.executeToolCalls(ctx, userID, resp.ToolCalls)
		for i, tc := range resp.ToolCalls {
			result.Steps = append(result.Steps, Step{Tool: tc.Name, Args: tc.Arguments})
			result.TotalToolCalls++
			req.Messages = append(req.Messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    results[i],
				ToolCallID: tc.ID,
			})
		}

		if err := ctx.Err(); err != nil {
			o.metrics.RecordChatFailure("timeout")
			return nil, &model.TimeoutError{Op: "assistant run", Err: err}
		}
	}

	// ラウンド上限に達した。ツールなしで最終応答を強制する。
	o.logger.Warn("tool round limit reached",
		slog.String("user_id", userID),
		slog.Int("rounds", o.maxToolRounds),
	)
	req.Tools = nil
	resp, err := o.llm.Chat(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.metrics.RecordChatFailure("timeout")
			return nil, &model.TimeoutError{Op: "assistant run", Err: err}
		}
		o.metrics.RecordChatFailure("llm_error")
		return nil, fmt.Errorf("failed to get final response: %w", err)
	}

	result.Content = resp.Content
	o.metrics.RecordChatSuccess()
	return result, nil
}

// executeToolCalls はツール呼び出しを実行し、呼び出し順の結果を返す。
// 複数の呼び出しは並行実行し、結果はインデックスで元の順序に戻す。
func (o *Orchestrator) executeToolCalls(ctx context.Context, userID string, calls []llm.ToolCall) []string {
	results := make([]string, len(calls))

	if len(calls) == 1 {
		results[0] = o.executeOne(ctx, userID, calls[0])
		return results
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc llm.ToolCall) {
			defer wg.Done()
			results[idx] = o.executeOne(ctx, userID, tc)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) executeOne(ctx context.Context, userID string, tc llm.ToolCall) string {
	start := time.Now()
	text, ok := o.registry.Execute(ctx, userID, tc.Name, tc.Arguments)
	o.metrics.RecordToolCall(tc.Name, ok)
	o.logger.Info("tool executed",
		slog.String("user_id", userID),
		slog.String("tool", tc.Name),
		slog.Bool("success", ok),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return text
}
