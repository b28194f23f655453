package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/hisho/internal/metrics"
	"github.com/hitoshi/hisho/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 監視
	HealthChecker    HealthChecker
	MetricsCollector middleware.HTTPStatusRecorder
	MetricsGatherer  prometheus.Gatherer

	// 認証
	AuthGateway AuthGatewayInterface
	Sessions    SessionStore
	Profiles    ProfileGetter
	AuthConfig  AuthHandlerConfig

	// アシスタント
	AssistantRunner AssistantRunner

	// カレンダー
	CalendarService CalendarServiceInterface

	// プロジェクト
	ProjectService ProjectServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//	→（認証必須ルートのみ）Session → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）、/health、/metricsはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.MetricsCollector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsCollector))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthGateway, deps.Sessions, deps.Profiles, deps.AuthConfig)
	assistantHandler := NewAssistantHandler(deps.AssistantRunner, deps.ProjectService)
	calendarHandler := NewCalendarHandler(deps.CalendarService)
	projectHandler := NewProjectHandler(deps.ProjectService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// ヘルスチェック
	r.Get("/health", newHealthHandler(deps.HealthChecker))

	// Prometheusメトリクス
	if deps.MetricsGatherer != nil {
		r.Mount("/metrics", metrics.SetupMetricsRoute(deps.MetricsGatherer))
	}

	// CSRFトークン発行
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// チャット（チャット専用レート制限を追加）
		r.With(deps.RateLimiter.ChatMiddleware()).Post("/api/assistant/chat", assistantHandler.Chat)

		// カレンダー
		r.Route("/api/calendar", func(r chi.Router) {
			r.Get("/events", calendarHandler.ListEvents)
			r.Post("/events", calendarHandler.CreateEvent)
		})

		// プロジェクト管理
		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.ListProjects)
			r.Post("/", projectHandler.CreateProject)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.GetProject)
				r.Patch("/", projectHandler.RenameProject)
				r.Delete("/", projectHandler.DeleteProject)

				r.Get("/tasks", projectHandler.ListTasks)
				r.Post("/tasks", projectHandler.CreateTask)
			})
		})

		// タスク管理
		r.Route("/api/tasks/{id}", func(r chi.Router) {
			r.Patch("/", projectHandler.UpdateTask)
			r.Delete("/", projectHandler.DeleteTask)

			r.Post("/tags", projectHandler.AttachTag)
			r.Delete("/tags/{tagID}", projectHandler.DetachTag)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
