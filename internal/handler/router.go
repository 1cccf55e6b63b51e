package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hydrate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	DeviceService   DeviceServiceInterface
	ProfileService  ProfileServiceInterface
	SettingsService SettingsServiceInterface
	IntakeService   IntakeServiceInterface
	ReminderService ReminderServiceInterface
	UserService     UserServiceInterface
	Realtime        RealtimeServer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Auth → RateLimit(General)
//
// /health、/metrics、デバイス登録（POST /api/devices）は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	healthHandler := NewHealthHandler(deps.HealthChecker, logger)
	deviceHandler := NewDeviceHandler(deps.DeviceService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	settingsHandler := NewSettingsHandler(deps.SettingsService)
	intakeHandler := NewIntakeHandler(deps.IntakeService)
	reminderHandler := NewReminderHandler(deps.ReminderService)
	userHandler := NewUserHandler(deps.UserService)
	realtimeHandler := NewRealtimeHandler(deps.Realtime, logger)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler.Check)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Post("/api/devices", deviceHandler.Register)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))

		// WebSocketは長時間接続のためレート制限の対象外
		r.Get("/api/realtime", realtimeHandler.Connect)

		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Put("/api/devices/me", deviceHandler.UpdateMe)

			r.Route("/api/profile", func(r chi.Router) {
				r.Get("/", profileHandler.GetProfile)
				r.Put("/", profileHandler.PutProfile)
			})

			r.Route("/api/goals/today", func(r chi.Router) {
				r.Get("/", profileHandler.GetTodayGoal)
				r.Put("/", profileHandler.PutTodayGoal)
				r.Delete("/override", profileHandler.DeleteGoalOverride)
			})

			r.Route("/api/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.GetSettings)
				r.Put("/", settingsHandler.UpdateSettings)
			})

			r.Route("/api/intake", func(r chi.Router) {
				// POST /api/intake - 摂取記録（記録専用レート制限を追加）
				r.With(deps.RateLimiter.IntakeMiddleware()).Post("/", intakeHandler.LogIntake)
				r.Get("/today", intakeHandler.GetToday)
				r.Get("/insights", intakeHandler.GetInsights)
				r.Delete("/{id}", intakeHandler.DeleteIntake)
			})

			r.Route("/api/reminders", func(r chi.Router) {
				r.Get("/plan", reminderHandler.GetPlan)
				r.Get("/pending", reminderHandler.GetPending)
				r.Post("/reschedule", reminderHandler.Reschedule)
				r.Post("/snooze", reminderHandler.Snooze)
			})

			r.Route("/api/users", func(r chi.Router) {
				r.Delete("/me", userHandler.Withdraw)
			})
		})
	})

	return r
}
