// Package model はドメインモデルを定義する。
package model

import "time"

// Project はユーザーのカンバンプロジェクトを表す。
// プロジェクトは必ず1人のユーザーに属する。
type Project struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskStatus はタスクのカンバン列を表す。
type TaskStatus string

const (
	// TaskStatusTodo は未着手の列。
	TaskStatusTodo TaskStatus = "to-do"
	// TaskStatusInProgress は作業中の列。
	TaskStatusInProgress TaskStatus = "in-progress"
	// TaskStatusDone は完了の列。
	TaskStatusDone TaskStatus = "done"
)

// ValidTaskStatus は指定された文字列が有効なカンバン列かを返す。
func ValidTaskStatus(s string) bool {
	switch TaskStatus(s) {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Task はプロジェクト内のタスクを表す。
// タスクは必ず1つのプロジェクトと1つの列に属する。
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tag はタスクに付与するタグを表す。タスクとは多対多の関係。
type Tag struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// TaskWithTags はタスクとそのタグ一覧を結合した構造体。
type TaskWithTags struct {
	Task
	Tags []Tag
}
