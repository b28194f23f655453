package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/hisho/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, description, status, created_at, updated_at
		 FROM tasks WHERE id = $1`,
		id,
	).Scan(&task.ID, &task.ProjectID, &task.Title, &task.Description, &task.Status, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// ListByProjectID はプロジェクトのタスク一覧をタグ付きで返す。
// タグはタスクごとにまとめて取得する（N+1を避けるため1クエリでJOIN）。
func (r *PostgresTaskRepo) ListByProjectID(ctx context.Context, projectID string) ([]model.TaskWithTags, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.project_id, t.title, t.description, t.status, t.created_at, t.updated_at,
		        tg.id, tg.user_id, tg.name, tg.created_at
		 FROM tasks t
		 LEFT JOIN task_tags tt ON tt.task_id = t.id
		 LEFT JOIN tags tg ON tg.id = tt.tag_id
		 WHERE t.project_id = $1
		 ORDER BY t.created_at ASC, tg.name ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var result []model.TaskWithTags
	index := make(map[string]int)

	for rows.Next() {
		var task model.Task
		var tagID, tagUserID, tagName sql.NullString
		var tagCreatedAt sql.NullTime

		if err := rows.Scan(
			&task.ID, &task.ProjectID, &task.Title, &task.Description, &task.Status,
			&task.CreatedAt, &task.UpdatedAt,
			&tagID, &tagUserID, &tagName, &tagCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		pos, seen := index[task.ID]
		if !seen {
			result = append(result, model.TaskWithTags{Task: task})
			pos = len(result) - 1
			index[task.ID] = pos
		}

		if tagID.Valid {
			result[pos].Tags = append(result[pos].Tags, model.Tag{
				ID:        tagID.String,
				UserID:    tagUserID.String,
				Name:      tagName.String,
				CreatedAt: tagCreatedAt.Time,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return result, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project_id, title, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.ProjectID, task.Title, task.Description, task.Status, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Update はタスクのタイトル・説明・ステータスを上書き更新する。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET title = $1, description = $2, status = $3, updated_at = $4 WHERE id = $5`,
		task.Title, task.Description, task.Status, time.Now(), task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %s", task.ID)
	}
	return nil
}

// Delete は指定IDのタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
