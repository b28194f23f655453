// Package model はドメインモデルを定義する。
package model

import "time"

// Credential はユーザーごとのOAuthトークンセットを表す。
// 初回のOAuthコード交換時に作成し、リフレッシュのたびに上書きする。
// ログアウト時に削除する。変更はクレデンシャルストア経由のみ。
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	UpdatedAt    time.Time
}

// IsExpired はアクセストークンの有効期限が切れているかを返す。
// 外部呼び出しの途中で失効しないよう、マージンを持って判定する。
func (c *Credential) IsExpired(now time.Time, margin time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return now.Add(margin).After(c.Expiry)
}
