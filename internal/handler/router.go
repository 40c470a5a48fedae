package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/aihub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CookieCodec       *middleware.CookieCodec
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           middleware.HTTPMetricsRecorder

	// 認証
	AuthService AuthServiceInterface
	UserService UserWithdrawer
	AuthConfig  AuthHandlerConfig

	// APIキー
	APIKeyService APIKeyServiceInterface

	// チャット
	ChatService ChatServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging →
//	（認証前ルート: AuthMiddleware(IP単位)）
//	（保護ルート: SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)）
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.UserService, deps.CookieCodec, deps.AuthConfig)
	apikeyHandler := NewAPIKeyHandler(deps.APIKeyService)
	chatHandler := NewChatHandler(deps.ChatService)
	healthHandler := NewHealthHandler(deps.DB)

	// --- 認証不要のルート ---

	r.Get("/api/health", healthHandler.Check)

	r.Route("/api/auth", func(r chi.Router) {
		// 認証前エンドポイントはIP単位のレート制限でブルートフォースを抑止する
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Get("/verify-email", authHandler.VerifyEmail)
			r.Post("/resend-verification", authHandler.ResendVerification)
		})

		r.Post("/logout", authHandler.Logout)

		// 認証状態で応答が変わるエンドポイント
		r.With(middleware.NewOptionalSessionMiddleware(deps.CookieCodec, deps.SessionFinder)).
			Get("/session", authHandler.Session)

		// 認証が必要な自アカウント操作
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.CookieCodec, deps.SessionFinder))

			r.Get("/me", authHandler.Me)
			r.Delete("/me", authHandler.Withdraw)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.CookieCodec, deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// APIキー管理
		r.Route("/api/keys", func(r chi.Router) {
			r.Get("/", apikeyHandler.List)
			r.Post("/", apikeyHandler.Save)

			r.Route("/{provider}", func(r chi.Router) {
				r.Delete("/", apikeyHandler.Delete)
				r.Get("/validate", apikeyHandler.Validate)
			})
		})

		// チャット履歴管理
		r.Route("/api/chats", func(r chi.Router) {
			r.Get("/", chatHandler.List)
			r.Post("/", chatHandler.Create)

			r.Route("/{chatId}", func(r chi.Router) {
				r.Get("/", chatHandler.Get)
				r.Delete("/", chatHandler.Delete)
				r.Put("/messages", chatHandler.UpdateMessages)
				r.Put("/title", chatHandler.UpdateTitle)
			})
		})
	})

	return r
}
