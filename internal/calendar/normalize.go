package calendar

import (
	"fmt"
	"regexp"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

// EventTimeInput はイベント時刻の入力表現。
// ISO日時文字列、日付のみ（終日）、構造化済みのいずれかを受け付ける。
// Rawと構造化フィールドの両方が指定された場合は構造化フィールドを優先する。
type EventTimeInput struct {
	Raw      string `json:"raw,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

var dateOnlyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// 入力として許容する日時レイアウト。オフセット付きを優先して試す。
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// NormalizeEventTime はイベント時刻入力を正規化してGoogle Calendarの表現に変換する。
// 曖昧な入力表現をここで一本化し、以降の層には正規形のみを渡す。
// タイムゾーン未指定の日時はlocで解釈する。
func NormalizeEventTime(in EventTimeInput, loc *time.Location) (*gcal.EventDateTime, error) {
	// 構造化フィールドを優先
	if in.Date != "" {
		if !dateOnlyPattern.MatchString(in.Date) {
			return nil, fmt.Errorf("invalid date value: %q", in.Date)
		}
		if _, err := time.ParseInLocation("2006-01-02", in.Date, loc); err != nil {
			return nil, fmt.Errorf("invalid date value: %q", in.Date)
		}
		return &gcal.EventDateTime{Date: in.Date}, nil
	}

	raw := in.DateTime
	if raw == "" {
		raw = in.Raw
	}
	if raw == "" {
		return nil, fmt.Errorf("event time is empty")
	}

	tz := in.TimeZone
	if tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid time zone: %q", tz)
		}
		loc = parsed
	}

	// 日付のみの文字列は終日イベントとして扱う
	if dateOnlyPattern.MatchString(raw) {
		if _, err := time.ParseInLocation("2006-01-02", raw, loc); err != nil {
			return nil, fmt.Errorf("invalid date value: %q", raw)
		}
		return &gcal.EventDateTime{Date: raw}, nil
	}

	for _, layout := range dateTimeLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err != nil {
			continue
		}
		return &gcal.EventDateTime{
			DateTime: t.Format(time.RFC3339),
			TimeZone: loc.String(),
		}, nil
	}

	return nil, fmt.Errorf("unrecognized event time: %q", raw)
}

// DefaultEventEnd は終了時刻未指定の場合のデフォルト終了を返す（開始の1時間後）。
// 終日イベントの場合は開始の翌日を返す。
// Google Calendar APIのend.dateは排他的で、開始と同日の終了は空の期間として拒否される。
func DefaultEventEnd(start *gcal.EventDateTime, loc *time.Location) (*gcal.EventDateTime, error) {
	if start.Date != "" {
		day, err := time.ParseInLocation("2006-01-02", start.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start date: %w", err)
		}
		return &gcal.EventDateTime{Date: day.AddDate(0, 0, 1).Format("2006-01-02")}, nil
	}
	t, err := time.Parse(time.RFC3339, start.DateTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start time: %w", err)
	}
	return &gcal.EventDateTime{
		DateTime: t.Add(time.Hour).Format(time.RFC3339),
		TimeZone: loc.String(),
	}, nil
}
