// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, assistant, calendar, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	ErrCodeOAuthExchange    = "OAUTH_EXCHANGE_FAILED"
	ErrCodeNoRefreshToken   = "NO_REFRESH_TOKEN"
	ErrCodeStorage          = "STORAGE_ERROR"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeProjectNotFound  = "PROJECT_NOT_FOUND"
	ErrCodeTaskNotFound     = "TASK_NOT_FOUND"
	ErrCodeInvalidStatus    = "INVALID_STATUS"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
)

// NotAuthenticatedError は有効なクレデンシャルが存在しない場合のエラー。
// リトライ不可。呼び出し側は再認証フローへ誘導する。
type NotAuthenticatedError struct {
	UserID string
}

func (e *NotAuthenticatedError) Error() string {
	return fmt.Sprintf("user %s is not authenticated", e.UserID)
}

// OAuthExchangeError は認可コード交換またはプロファイル取得の失敗を表す。
// その試行に対しては終端。診断用に上流エラーを保持するが、
// 生トークンはメッセージに含めない。
type OAuthExchangeError struct {
	Err error
}

func (e *OAuthExchangeError) Error() string {
	return fmt.Sprintf("oauth code exchange failed: %v", e.Err)
}

// Unwrap はerrors.Is/Asのために上流エラーを返す。
func (e *OAuthExchangeError) Unwrap() error { return e.Err }

// NoRefreshTokenError は保存済みレコードにリフレッシュトークンが無い場合のエラー。
// 完全な再認証が必要な終端状態であり、自動リトライしない。
type NoRefreshTokenError struct {
	UserID string
}

func (e *NoRefreshTokenError) Error() string {
	return fmt.Sprintf("no refresh token stored for user %s", e.UserID)
}

// StorageError は永続化層の失敗をラップする。呼び出し側では5xx相当として扱う。
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

// Unwrap はerrors.Is/Asのために下位エラーを返す。
func (e *StorageError) Unwrap() error { return e.Err }

// TimeoutError は外部呼び出しがリクエストレベルのタイムアウトを超過したことを表す。
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

// Unwrap はerrors.Is/Asのために下位エラーを返す。
func (e *TimeoutError) Unwrap() error { return e.Err }

// NewNotAuthenticatedAPIError は未認証エラーのAPIレスポンスを生成する。
func NewNotAuthenticatedAPIError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "Googleカレンダーとの連携が有効ではありません。",
		Category: "auth",
		Action:   "ログインし直してカレンダー連携を許可してください。",
	}
}

// NewOAuthExchangeAPIError は認可コード交換失敗のAPIレスポンスを生成する。
func NewOAuthExchangeAPIError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthExchange,
		Message:  "Google認証に失敗しました。",
		Category: "auth",
		Action:   "もう一度ログインをお試しください。",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", projectID),
		Category: "validation",
		Action:   "プロジェクトIDを確認してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "validation",
		Action:   "タスクIDを確認してください。",
	}
}

// NewInvalidStatusError は無効なカンバン列エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには to-do、in-progress、done のいずれかを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
