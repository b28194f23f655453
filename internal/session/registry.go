// Package session はインメモリのセッションレジストリを提供する。
// セッションはプロセス内にのみ保持され、再起動で全て失われる。
// ユーザーは再ログインすることで新しいセッションを取得できる。
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/hisho/internal/model"
)

// Registry はセッションIDとユーザーIDの対応をメモリ上で管理する。
// 全操作はRWMutexにより並行アクセスから保護される。
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	maxAge   time.Duration
	now      func() time.Time
}

// NewRegistry は新しいRegistryを生成する。
// maxAgeを超過したセッションはGet時およびSweepExpired時に無効とみなされる。
func NewRegistry(maxAge time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*model.Session),
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Create は指定ユーザーの新しいセッションを生成して登録する。
// セッションIDは暗号論的乱数32バイトの16進表現。
func (r *Registry) Create(userID string) (*model.Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	s := &model.Session{
		ID:        hex.EncodeToString(buf),
		UserID:    userID,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s, nil
}

// Get はセッションIDに対応するセッションを返す。
// 存在しない、または有効期限切れの場合はnilを返す。
func (r *Registry) Get(id string) *model.Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	if r.now().Sub(s.CreatedAt) > r.maxAge {
		return nil
	}
	return s
}

// Delete はセッションを削除し、レコードを削除した場合のみtrueを返す。
// 存在しないIDに対しては何もせずfalseを返す。
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// DeleteByUserID は指定ユーザーの全セッションを削除し、削除件数を返す。
// ログアウトや退会時に使用する。
func (r *Registry) DeleteByUserID(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted
}

// SweepExpired は有効期限切れのセッションを一括削除し、削除件数を返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (r *Registry) SweepExpired() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, s := range r.sessions {
		if now.Sub(s.CreatedAt) > r.maxAge {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted
}

// Len は現在登録されているセッション数を返す（期限切れを含む）。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
