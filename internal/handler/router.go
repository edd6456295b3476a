package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/stampcard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CallerResolvers   []middleware.CallerResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Observer          middleware.StatusObserver

	// 認証
	AuthService     AuthServiceInterface
	IdentityService IdentityServiceInterface
	AuthConfig      AuthHandlerConfig
	OAuthEnabled    bool

	// 台帳・投影
	LedgerService   LedgerServiceInterface
	StatusProjector StatusProjector

	// プロフィール
	ProfileService ProfileServiceInterface

	// 管理者
	AdminGateway AdminGatewayInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (Caller | Session) → RateLimit
//
// 認証ルート（/auth/*）と管理ルート（/admin/*）は呼び出し元解決の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Observer))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.IdentityService, deps.SessionFinder, deps.StatusProjector, deps.AuthConfig)
	stampHandler := NewStampHandler(deps.LedgerService, deps.StatusProjector)
	profileHandler := NewProfileHandler(deps.ProfileService)
	adminHandler := NewAdminHandler(deps.AdminGateway)

	// --- 呼び出し元解決が不要のルート ---

	r.Get("/health", healthHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)

		// OAuth構成が揃っている場合のみGoogleログインをマウントする
		if deps.OAuthEnabled {
			r.Get("/google/login", authHandler.GoogleLogin)
			r.Get("/google/callback", authHandler.GoogleCallback)
		}
	})

	// 管理ルートはトークンヘッダーで認可するため、呼び出し元解決もレート制限も通さない
	r.Post("/admin/grant", adminHandler.Grant)

	// --- 呼び出し元（セッションまたはゲストCookie）の解決が必要なルート ---
	// ミドルウェアスタック: Caller → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCallerMiddleware(deps.CallerResolvers...))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/status", stampHandler.GetStatus)

		// スタンプ変異は専用レート制限を追加で適用する
		r.With(deps.RateLimiter.MutationMiddleware()).Post("/api/stamps", stampHandler.AddStamp)
		r.With(deps.RateLimiter.MutationMiddleware()).Post("/api/stamps/reset", stampHandler.ResetStamps)
	})

	// --- ログインセッションが必須のルート ---
	// プロフィール編集はゲストCookieでは行えない
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Put("/api/profile", profileHandler.UpdateProfile)
	})

	return r
}

// healthHandler は死活監視エンドポイント。
// GET /health
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
