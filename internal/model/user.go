// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はブラウザが保持する不透明なハンドルとユーザーの紐付けを表す。
// インメモリのセッションレジストリにのみ存在し、プロセス再起動で消える。
// 再ログインは正常系として扱う。
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}
