package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/hisho/internal/model"
)

// PostgresTagRepo はPostgreSQLを使用したタグリポジトリ。
type PostgresTagRepo struct {
	db *sql.DB
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db *sql.DB) *PostgresTagRepo {
	return &PostgresTagRepo{db: db}
}

// FindOrCreate はユーザーと名前でタグを検索し、無ければ作成して返す。
// (user_id, name)のUNIQUE制約と競合した場合は既存レコードを読み直す。
func (r *PostgresTagRepo) FindOrCreate(ctx context.Context, userID, name string) (*model.Tag, error) {
	tag := &model.Tag{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM tags WHERE user_id = $1 AND name = $2`,
		userID, name,
	).Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt)

	if err == nil {
		return tag, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find tag: %w", err)
	}

	newTag := &model.Tag{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tags (id, user_id, name, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, name) DO NOTHING`,
		newTag.ID, newTag.UserID, newTag.Name, newTag.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	// 同時作成と競合した可能性があるため読み直す
	err = r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM tags WHERE user_id = $1 AND name = $2`,
		userID, name,
	).Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tag: %w", err)
	}

	return tag, nil
}

// AttachToTask はタスクにタグを付与する。付与済みの場合はno-op。
func (r *PostgresTagRepo) AttachToTask(ctx context.Context, taskID, tagID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		taskID, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to attach tag: %w", err)
	}
	return nil
}

// DetachFromTask はタスクからタグを外す。
func (r *PostgresTagRepo) DetachFromTask(ctx context.Context, taskID, tagID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM task_tags WHERE task_id = $1 AND tag_id = $2`,
		taskID, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to detach tag: %w", err)
	}
	return nil
}

// ListByTaskID はタスクのタグ一覧を返す。
func (r *PostgresTagRepo) ListByTaskID(ctx context.Context, taskID string) ([]model.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tg.id, tg.user_id, tg.name, tg.created_at
		 FROM tags tg
		 JOIN task_tags tt ON tt.tag_id = tg.id
		 WHERE tt.task_id = $1
		 ORDER BY tg.name ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}

// compile-time interface check
var _ TagRepository = (*PostgresTagRepo)(nil)
