package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/hisho/internal/calendar"
	"github.com/hitoshi/hisho/internal/model"
)

// CalendarClient はツールが利用するカレンダー操作のインターフェース。
type CalendarClient interface {
	ListEvents(ctx context.Context, userID string, maxResults int64) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, userID string, spec calendar.EventSpec) (*calendar.Event, error)
}

// ProjectCreator はツールが利用するプロジェクト作成のインターフェース。
type ProjectCreator interface {
	CreateProject(ctx context.Context, userID, title string) (*model.Project, error)
}

// ツールごとの引数型。モデル出力のJSONをここでデコード・検証する。

type getCalendarEventsArgs struct {
	MaxResults int64 `json:"maxResults"`
}

type createCalendarEventArgs struct {
	Summary       string `json:"summary"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime"`
	Date          string `json:"date"`
}

type createProjectArgs struct {
	Title string `json:"title"`
}

// toolFailure はドメインエラーをモデル向けの失敗テキストに変換する。
// 生のプロバイダーエラーやトークンは含めない。
func toolFailure(err error) string {
	var notAuth *model.NotAuthenticatedError
	var noRefresh *model.NoRefreshTokenError
	switch {
	case errors.As(err, &notAuth), errors.As(err, &noRefresh):
		return "failed: the user is not connected to Google Calendar. Ask them to log in again."
	default:
		return fmt.Sprintf("failed: %v", err)
	}
}

// NewGetCalendarEventsTool はカレンダーの今後の予定を取得するツールを生成する。
func NewGetCalendarEventsTool(client CalendarClient) Tool {
	return Tool{
		Name:        "get_calendar_events",
		Description: "ユーザーのGoogleカレンダーから今後の予定を取得する。予定・スケジュールについて聞かれたら使う。",
		Parameters: map[string]any{
			"maxResults": map[string]any{
				"type":        "integer",
				"description": "取得する予定の最大件数（デフォルト10）",
			},
		},
		Handler: func(ctx context.Context, userID string, args json.RawMessage) (string, bool) {
			var in getCalendarEventsArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return fmt.Sprintf("invalid arguments: %v", err), false
			}

			events, err := client.ListEvents(ctx, userID, in.MaxResults)
			if err != nil {
				return toolFailure(err), false
			}
			if len(events) == 0 {
				return "no upcoming events found", true
			}

			out, err := json.Marshal(events)
			if err != nil {
				return fmt.Sprintf("failed to encode events: %v", err), false
			}
			return string(out), true
		},
	}
}

// NewCreateCalendarEventTool はカレンダーに予定を作成するツールを生成する。
func NewCreateCalendarEventTool(client CalendarClient) Tool {
	return Tool{
		Name:        "create_calendar_event",
		Description: "ユーザーのGoogleカレンダーに予定を作成する。日時はISO 8601形式。終日の予定はdateのみ指定する。",
		Parameters: map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "予定のタイトル",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "予定の詳細説明",
			},
			"location": map[string]any{
				"type":        "string",
				"description": "場所",
			},
			"startDateTime": map[string]any{
				"type":        "string",
				"description": "開始日時（例: 2026-09-01T09:00:00）",
			},
			"endDateTime": map[string]any{
				"type":        "string",
				"description": "終了日時。省略時は開始の1時間後",
			},
			"date": map[string]any{
				"type":        "string",
				"description": "終日予定の日付（例: 2026-09-01）。startDateTimeの代わりに使う",
			},
		},
		Required: []string{"summary"},
		Handler: func(ctx context.Context, userID string, args json.RawMessage) (string, bool) {
			var in createCalendarEventArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return fmt.Sprintf("invalid arguments: %v", err), false
			}
			if in.Summary == "" {
				return "invalid arguments: summary is required", false
			}
			if in.StartDateTime == "" && in.Date == "" {
				return "invalid arguments: either startDateTime or date is required", false
			}

			spec := calendar.EventSpec{
				Summary:     in.Summary,
				Description: in.Description,
				Location:    in.Location,
			}
			if in.Date != "" {
				spec.Start = calendar.EventTimeInput{Date: in.Date}
			} else {
				spec.Start = calendar.EventTimeInput{Raw: in.StartDateTime}
			}
			if in.EndDateTime != "" {
				spec.End = calendar.EventTimeInput{Raw: in.EndDateTime}
			}

			created, err := client.CreateEvent(ctx, userID, spec)
			if err != nil {
				return toolFailure(err), false
			}

			out, err := json.Marshal(created)
			if err != nil {
				return fmt.Sprintf("failed to encode event: %v", err), false
			}
			return "created: " + string(out), true
		},
	}
}

// NewCreateProjectTool はカンバンプロジェクトを作成するツールを生成する。
func NewCreateProjectTool(creator ProjectCreator) Tool {
	return Tool{
		Name:        "create_project",
		Description: "タスク管理用の新しいプロジェクト（カンバンボード）を作成する。",
		Parameters: map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "プロジェクト名",
			},
		},
		Required: []string{"title"},
		Handler: func(ctx context.Context, userID string, args json.RawMessage) (string, bool) {
			var in createProjectArgs
			if err := json.Unmarshal(args, &in); err != nil {
				return fmt.Sprintf("invalid arguments: %v", err), false
			}
			if in.Title == "" {
				return "invalid arguments: title is required", false
			}

			project, err := creator.CreateProject(ctx, userID, in.Title)
			if err != nil {
				return toolFailure(err), false
			}
			return fmt.Sprintf("created project %q (id: %s)", project.Title, project.ID), true
		},
	}
}
