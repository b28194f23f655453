// Package calendar はOAuthトークンのライフサイクルをカレンダー操作の背後に隠蔽する
// Calendar Gatewayを提供する。呼び出し側はトークンの取得・リフレッシュ・保存を意識しない。
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/hitoshi/hisho/internal/metrics"
	"github.com/hitoshi/hisho/internal/model"
	"github.com/hitoshi/hisho/internal/repository"
)

// ProviderGoogle はidentitiesテーブルに記録するプロバイダー名。
const ProviderGoogle = "google"

// トークン失効判定のマージン。外部呼び出し中の失効を避ける。
const expiryMargin = 5 * time.Minute

// ExchangeResult はOAuthコード交換の結果。
type ExchangeResult struct {
	UserID string
	Email  string
	Name   string
}

// Event は正規化済みのカレンダーイベント。
type Event struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	AllDay      bool   `json:"allDay"`
	HTMLLink    string `json:"htmlLink,omitempty"`
}

// EventSpec はイベント作成の入力。
type EventSpec struct {
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Start       EventTimeInput `json:"start"`
	End         EventTimeInput `json:"end,omitempty"`
	Attendees   []string       `json:"attendees,omitempty"`
}

// Gateway はOAuthトークンのライフサイクルを管理しつつ、
// 正規化されたカレンダー操作を提供する。
type Gateway struct {
	oauth     OAuthClient
	api       CalendarAPI
	userRepo  repository.UserRepository
	identRepo repository.IdentityRepository
	credRepo  repository.CredentialRepository
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	location  *time.Location
	now       func() time.Time

	// ユーザー単位の書き込み直列化。リフレッシュと新規ログインの
	// 同時保存によるlost updateを防ぐ。
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewGateway はGatewayを生成する。
func NewGateway(
	oauth OAuthClient,
	api CalendarAPI,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	credRepo repository.CredentialRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	location *time.Location,
) *Gateway {
	return &Gateway{
		oauth:     oauth,
		api:       api,
		userRepo:  userRepo,
		identRepo: identRepo,
		credRepo:  credRepo,
		metrics:   collector,
		logger:    logger,
		location:  location,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// userLock はユーザーIDに対応するミューテックスを返す。
func (g *Gateway) userLock(userID string) *sync.Mutex {
	g.locksMu.Lock()
	defer g.locksMu.Unlock()

	mu, ok := g.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		g.locks[userID] = mu
	}
	return mu
}

// AuthCodeURL はOAuth認証URLを生成する。
func (g *Gateway) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

// ExchangeCode は認可コードをトークンに交換し、ユーザーを解決して
// クレデンシャルを保存する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成する。
// 失敗時はOAuthExchangeErrorを返す。トークンの生値はログに出さない。
func (g *Gateway) ExchangeCode(ctx context.Context, code string) (*ExchangeResult, error) {
	if code == "" {
		return nil, &model.OAuthExchangeError{Err: fmt.Errorf("authorization code is empty")}
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, &model.OAuthExchangeError{Err: err}
	}

	userInfo, err := g.oauth.FetchUserInfo(ctx, token)
	if err != nil {
		return nil, &model.OAuthExchangeError{Err: err}
	}

	identity, err := g.identRepo.FindByProviderAndProviderUserID(ctx, ProviderGoogle, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string

	if identity != nil {
		userID = identity.UserID
		g.logger.Info("existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", ProviderGoogle),
		)
	} else {
		now := g.now()
		newUser := &model.User{
			ID:        uuid.New().String(),
			Email:     userInfo.Email,
			Name:      userInfo.Name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         newUser.ID,
			Provider:       ProviderGoogle,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}

		if err := g.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		userID = newUser.ID
		g.logger.Info("new user registered",
			slog.String("user_id", userID),
			slog.String("provider", ProviderGoogle),
		)
	}

	cred := &model.Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		UpdatedAt:    g.now(),
	}

	mu := g.userLock(userID)
	mu.Lock()
	err = g.credRepo.Save(ctx, cred)
	mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	return &ExchangeResult{
		UserID: userID,
		Email:  userInfo.Email,
		Name:   userInfo.Name,
	}, nil
}

// IsAuthenticated はユーザーが有効なクレデンシャルを持つかを返す。
// 期限切れでリフレッシュトークンがある場合はサイレントリフレッシュを試みる
// （状態を変更しうる判定である点に注意）。
// リフレッシュトークンのない期限切れはfalseを返し、レコードは変更しない。
func (g *Gateway) IsAuthenticated(ctx context.Context, userID string) (bool, error) {
	cred, err := g.credRepo.FindByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return false, nil
	}
	if !cred.IsExpired(g.now(), expiryMargin) {
		return true, nil
	}
	if cred.RefreshToken == "" {
		return false, nil
	}

	if err := g.Refresh(ctx, userID); err != nil {
		g.logger.Warn("silent token refresh failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false, nil
	}
	return true, nil
}

// Refresh は保存済みリフレッシュトークンで新しいアクセストークンを取得し、
// クレデンシャルレコードを上書きする。
// リフレッシュトークンがない場合はNoRefreshTokenErrorを返す。
// これは再認証が必要な終端状態であり、自動リトライしない。
func (g *Gateway) Refresh(ctx context.Context, userID string) error {
	mu := g.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cred, err := g.credRepo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return &model.NotAuthenticatedError{UserID: userID}
	}
	if cred.RefreshToken == "" {
		return &model.NoRefreshTokenError{UserID: userID}
	}

	token, err := g.oauth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		g.metrics.RecordOAuthRefreshFailure()
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	// プロバイダーがリフレッシュトークンを返さない場合は既存値を維持する
	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}

	updated := &model.Credential{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		Expiry:       token.Expiry,
		UpdatedAt:    g.now(),
	}
	if err := g.credRepo.Save(ctx, updated); err != nil {
		g.metrics.RecordOAuthRefreshFailure()
		return fmt.Errorf("failed to save refreshed credential: %w", err)
	}

	g.metrics.RecordOAuthRefreshSuccess()
	g.logger.Info("access token refreshed",
		slog.String("user_id", userID),
	)
	return nil
}

// liveToken は有効なアクセストークンを返す。必要ならリフレッシュする。
func (g *Gateway) liveToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	cred, err := g.credRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	if cred == nil {
		return nil, &model.NotAuthenticatedError{UserID: userID}
	}

	if cred.IsExpired(g.now(), expiryMargin) {
		if cred.RefreshToken == "" {
			return nil, &model.NoRefreshTokenError{UserID: userID}
		}
		if err := g.Refresh(ctx, userID); err != nil {
			return nil, err
		}
		cred, err = g.credRepo.FindByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload credential: %w", err)
		}
		if cred == nil {
			return nil, &model.NotAuthenticatedError{UserID: userID}
		}
	}

	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}, nil
}

// ListEvents はプライマリカレンダーの今後のイベントを取得する。
// maxResultsが0以下の場合は10件とする。
func (g *Gateway) ListEvents(ctx context.Context, userID string, maxResults int64) ([]Event, error) {
	token, err := g.liveToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	if maxResults <= 0 {
		maxResults = 10
	}

	items, err := g.api.ListEvents(ctx, token, g.now(), maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	events := make([]Event, 0, len(items))
	for _, item := range items {
		events = append(events, toEvent(item))
	}
	return events, nil
}

// CreateEvent はプライマリカレンダーにイベントを作成する。
// 時刻入力はここで正規化し、終了未指定は開始の1時間後とする。
func (g *Gateway) CreateEvent(ctx context.Context, userID string, spec EventSpec) (*Event, error) {
	if spec.Summary == "" {
		return nil, fmt.Errorf("event summary is required")
	}

	token, err := g.liveToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	start, err := NormalizeEventTime(spec.Start, g.location)
	if err != nil {
		return nil, fmt.Errorf("invalid start time: %w", err)
	}

	var end *gcal.EventDateTime
	if spec.End == (EventTimeInput{}) {
		end, err = DefaultEventEnd(start, g.location)
		if err != nil {
			return nil, fmt.Errorf("failed to derive end time: %w", err)
		}
	} else {
		end, err = NormalizeEventTime(spec.End, g.location)
		if err != nil {
			return nil, fmt.Errorf("invalid end time: %w", err)
		}
	}

	event := &gcal.Event{
		Summary:     spec.Summary,
		Description: spec.Description,
		Location:    spec.Location,
		Start:       start,
		End:         end,
	}
	for _, email := range spec.Attendees {
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := g.api.InsertEvent(ctx, token, event)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar event: %w", err)
	}

	result := toEvent(created)
	return &result, nil
}

// Logout はユーザーのクレデンシャルレコードを削除する。
// レコードが存在しない場合も成功として扱う。
func (g *Gateway) Logout(ctx context.Context, userID string) error {
	mu := g.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := g.credRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// toEvent はGoogle Calendarのイベントを正規形に変換する。
func toEvent(e *gcal.Event) Event {
	event := Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		HTMLLink:    e.HtmlLink,
	}
	if e.Start != nil {
		if e.Start.Date != "" {
			event.Start = e.Start.Date
			event.AllDay = true
		} else {
			event.Start = e.Start.DateTime
		}
	}
	if e.End != nil {
		if e.End.Date != "" {
			event.End = e.End.Date
		} else {
			event.End = e.End.DateTime
		}
	}
	return event
}
