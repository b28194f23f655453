package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// UserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type UserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
}

// OAuthClient はOAuthプロバイダーとのやり取りを抽象化するインターフェース。
// テストではモック実装に差し替える。
type OAuthClient interface {
	// AuthCodeURL はOAuth認証URLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードをトークンセットに交換する。
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// Refresh はリフレッシュトークンから新しいアクセストークンを取得する。
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	// FetchUserInfo はアクセストークンでユーザー情報を取得する。
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}

// CalendarAPI はカレンダープロバイダーの操作を抽象化するインターフェース。
type CalendarAPI interface {
	ListEvents(ctx context.Context, token *oauth2.Token, timeMin time.Time, maxResults int64) ([]*gcal.Event, error)
	InsertEvent(ctx context.Context, token *oauth2.Token, event *gcal.Event) (*gcal.Event, error)
}

// GoogleOAuthConfig はGoogle OAuthクライアントの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleOAuthClient はGoogle OAuth 2.0によるOAuthClient実装。
type GoogleOAuthClient struct {
	conf *oauth2.Config
}

// compile-time interface check
var _ OAuthClient = (*GoogleOAuthClient)(nil)

// NewGoogleOAuthClient はGoogleOAuthClientを生成する。
// スコープにはカレンダーの読み書きとユーザー情報を含む。
func NewGoogleOAuthClient(config GoogleOAuthConfig) *GoogleOAuthClient {
	return &GoogleOAuthClient{
		conf: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				gcal.CalendarScope,
				oauth2api.UserinfoEmailScope,
				oauth2api.UserinfoProfileScope,
			},
		},
	}
}

// AuthCodeURL はGoogle OAuthの認証URLを生成する。
// リフレッシュトークンを確実に取得するため、再ログイン時も同意画面を要求する。
func (c *GoogleOAuthClient) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange は認可コードをトークンセットに交換する。
func (c *GoogleOAuthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh はリフレッシュトークンから新しいアクセストークンを取得する。
func (c *GoogleOAuthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	return token, nil
}

// FetchUserInfo はアクセストークンでGoogleのユーザー情報を取得する。
func (c *GoogleOAuthClient) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(c.conf.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &UserInfo{
		ProviderUserID: info.Id,
		Email:          info.Email,
		Name:           info.Name,
	}, nil
}

// GoogleCalendarAPI はGoogle Calendar v3によるCalendarAPI実装。
type GoogleCalendarAPI struct {
	conf *oauth2.Config
}

// compile-time interface check
var _ CalendarAPI = (*GoogleCalendarAPI)(nil)

// NewGoogleCalendarAPI はGoogleCalendarAPIを生成する。
// OAuthクライアントと同じ設定を共有する。
func NewGoogleCalendarAPI(config GoogleOAuthConfig) *GoogleCalendarAPI {
	return &GoogleCalendarAPI{
		conf: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarScope},
		},
	}
}

func (a *GoogleCalendarAPI) newService(ctx context.Context, token *oauth2.Token) (*gcal.Service, error) {
	client := oauth2.NewClient(ctx, a.conf.TokenSource(ctx, token))
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return svc, nil
}

// ListEvents はプライマリカレンダーのイベントを開始時刻順に取得する。
func (a *GoogleCalendarAPI) ListEvents(ctx context.Context, token *oauth2.Token, timeMin time.Time, maxResults int64) ([]*gcal.Event, error) {
	svc, err := a.newService(ctx, token)
	if err != nil {
		return nil, err
	}

	result, err := svc.Events.List("primary").
		TimeMin(timeMin.Format(time.RFC3339)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return result.Items, nil
}

// InsertEvent はプライマリカレンダーにイベントを作成する。
func (a *GoogleCalendarAPI) InsertEvent(ctx context.Context, token *oauth2.Token, event *gcal.Event) (*gcal.Event, error) {
	svc, err := a.newService(ctx, token)
	if err != nil {
		return nil, err
	}

	created, err := svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return created, nil
}
