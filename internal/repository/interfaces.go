// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/hisho/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、credentials、projectsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// CredentialRepository はOAuthクレデンシャルの永続化インターフェース。
// すべての読み取りはバッキングストアに直接アクセスする（キャッシュなし）。
// クレデンシャル確認はホットパスではないため、ラウンドトリップのコストは許容する。
type CredentialRepository interface {
	// Save はクレデンシャルを冪等にUPSERTする。既存レコードは上書きされる。
	Save(ctx context.Context, cred *model.Credential) error

	// FindByUserID は指定ユーザーのクレデンシャルを取得する。
	// 見つからない場合はnilを返す（エラーではない）。
	FindByUserID(ctx context.Context, userID string) (*model.Credential, error)

	// Exists は指定ユーザーのクレデンシャルが存在するかを返す。
	// レコードが無い場合もエラーにならない。
	Exists(ctx context.Context, userID string) (bool, error)

	// DeleteByUserID は指定ユーザーのクレデンシャルを削除する。
	// レコードが無い場合はno-op（エラーではない）。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProjectRepository はプロジェクトデータの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// ListByUserID はユーザーのプロジェクト一覧を作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Project, error)

	// Create はプロジェクトを作成する。
	Create(ctx context.Context, project *model.Project) error

	// UpdateTitle はプロジェクトのタイトルを更新する。
	UpdateTitle(ctx context.Context, id, title string) error

	// Delete は指定IDのプロジェクトを削除する。
	// 関連するtasks、task_tagsはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// DeleteByUserID はユーザーの全プロジェクトを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// ListByProjectID はプロジェクトのタスク一覧をタグ付きで返す。
	ListByProjectID(ctx context.Context, projectID string) ([]model.TaskWithTags, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクのタイトル・説明・ステータスを上書き更新する。
	Update(ctx context.Context, task *model.Task) error

	// Delete は指定IDのタスクを削除する。
	Delete(ctx context.Context, id string) error
}

// TagRepository はタグデータの永続化インターフェース。
type TagRepository interface {
	// FindOrCreate はユーザーと名前でタグを検索し、無ければ作成して返す。
	FindOrCreate(ctx context.Context, userID, name string) (*model.Tag, error)

	// AttachToTask はタスクにタグを付与する。付与済みの場合はno-op。
	AttachToTask(ctx context.Context, taskID, tagID string) error

	// DetachFromTask はタスクからタグを外す。
	DetachFromTask(ctx context.Context, taskID, tagID string) error

	// ListByTaskID はタスクのタグ一覧を返す。
	ListByTaskID(ctx context.Context, taskID string) ([]model.Tag, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
