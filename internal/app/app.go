// Package app はアプリケーションの初期化と起動を担う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/hisho/internal/assistant"
	"github.com/hitoshi/hisho/internal/calendar"
	"github.com/hitoshi/hisho/internal/config"
	"github.com/hitoshi/hisho/internal/database"
	"github.com/hitoshi/hisho/internal/handler"
	"github.com/hitoshi/hisho/internal/llm"
	"github.com/hitoshi/hisho/internal/logger"
	"github.com/hitoshi/hisho/internal/metrics"
	"github.com/hitoshi/hisho/internal/middleware"
	"github.com/hitoshi/hisho/internal/project"
	"github.com/hitoshi/hisho/internal/repository"
	"github.com/hitoshi/hisho/internal/session"
	"github.com/hitoshi/hisho/internal/user"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	credRepo := repository.NewPostgresCredentialRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	tagRepo := repository.NewPostgresTagRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. タイムゾーンの解決
	location, err := time.LoadLocation(cfg.AssistantTimezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.AssistantTimezone, err)
	}

	// 5. セッションレジストリとスイーパーの初期化
	sessions := session.NewRegistry(cfg.SessionMaxAge)
	sweeper := session.NewSweeper(sessions, slog.Default(), cfg.SessionSweepInterval)

	// 6. カレンダーゲートウェイの初期化
	oauthConfig := calendar.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}
	gateway := calendar.NewGateway(
		calendar.NewGoogleOAuthClient(oauthConfig),
		calendar.NewGoogleCalendarAPI(oauthConfig),
		userRepo, identRepo, credRepo,
		collector, slog.Default(), location,
	)

	// 7. ドメインサービスの初期化
	projectService := project.NewService(projectRepo, taskRepo, tagRepo)
	userService := user.NewService(userRepo, credRepo, projectRepo, sessions)

	// 8. アシスタントの初期化
	toolRegistry := assistant.NewRegistry()
	toolRegistry.Register(assistant.NewGetCalendarEventsTool(gateway))
	toolRegistry.Register(assistant.NewCreateCalendarEventTool(gateway))
	toolRegistry.Register(assistant.NewCreateProjectTool(projectService))

	llmClient := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	orchestrator := assistant.NewOrchestrator(
		llmClient, toolRegistry, collector, slog.Default(),
		location, cfg.MaxToolRounds, cfg.AssistantTimeout,
	)

	// 9. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ChatRate = rate.Limit(float64(cfg.RateLimitChat) / 60.0)
	rateLimiterCfg.ChatBurst = cfg.RateLimitChat
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger: slog.Default(),

		HealthChecker:    db,
		MetricsCollector: collector,
		MetricsGatherer:  registry,

		AuthGateway: gateway,
		Sessions:    sessions,
		Profiles:    userService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: int(cfg.SessionMaxAge.Seconds()),
		},

		AssistantRunner: orchestrator,
		CalendarService: gateway,
		ProjectService:  projectService,
		UserService:     userService,
	}

	router := handler.NewRouter(deps)

	// 10. バックグラウンドジョブとHTTPサーバーの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 期限切れセッションの定期削除
	go sweeper.Start(ctx)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // チャットはLLM呼び出しを含むため長め
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

// --- compile-time interface checks ---

var _ handler.AuthGatewayInterface = (*calendar.Gateway)(nil)
var _ handler.CalendarServiceInterface = (*calendar.Gateway)(nil)
var _ handler.SessionStore = (*session.Registry)(nil)
var _ handler.ProfileGetter = (*user.Service)(nil)
var _ handler.UserServiceInterface = (*user.Service)(nil)
var _ handler.ProjectServiceInterface = (*project.Service)(nil)
var _ handler.AssistantRunner = (*assistant.Orchestrator)(nil)
var _ middleware.SessionFinder = (*session.Registry)(nil)
