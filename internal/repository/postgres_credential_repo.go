package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/hisho/internal/model"
)

// PostgresCredentialRepo はPostgreSQLを使用したクレデンシャルリポジトリ。
// 永続化の失敗はすべてmodel.StorageErrorでラップして返す。
type PostgresCredentialRepo struct {
	db *sql.DB
}

// NewPostgresCredentialRepo はPostgresCredentialRepoを生成する。
func NewPostgresCredentialRepo(db *sql.DB) *PostgresCredentialRepo {
	return &PostgresCredentialRepo{db: db}
}

// Save はクレデンシャルを冪等にUPSERTする。既存レコードは上書きされる。
func (r *PostgresCredentialRepo) Save(ctx context.Context, cred *model.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, access_token, refresh_token, expiry, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
		   access_token = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   expiry = EXCLUDED.expiry,
		   updated_at = EXCLUDED.updated_at`,
		cred.UserID, cred.AccessToken, cred.RefreshToken, cred.Expiry, time.Now(),
	)
	if err != nil {
		return &model.StorageError{Op: "save credential", Err: err}
	}
	return nil
}

// FindByUserID は指定ユーザーのクレデンシャルを取得する。
// 見つからない場合はnilを返す（エラーではない）。
func (r *PostgresCredentialRepo) FindByUserID(ctx context.Context, userID string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, access_token, refresh_token, expiry, updated_at
		 FROM credentials
		 WHERE user_id = $1`,
		userID,
	).Scan(&cred.UserID, &cred.AccessToken, &cred.RefreshToken, &cred.Expiry, &cred.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: "find credential", Err: err}
	}

	return cred, nil
}

// Exists は指定ユーザーのクレデンシャルが存在するかを返す。
func (r *PostgresCredentialRepo) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, &model.StorageError{Op: "check credential existence", Err: err}
	}
	return exists, nil
}

// DeleteByUserID は指定ユーザーのクレデンシャルを削除する。
// レコードが無い場合はno-op（エラーではない）。
func (r *PostgresCredentialRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return &model.StorageError{Op: "delete credential", Err: err}
	}
	return nil
}

// compile-time interface check
var _ CredentialRepository = (*PostgresCredentialRepo)(nil)
