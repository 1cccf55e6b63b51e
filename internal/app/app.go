package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hydrate/internal/auth"
	"github.com/hitoshi/hydrate/internal/config"
	"github.com/hitoshi/hydrate/internal/database"
	"github.com/hitoshi/hydrate/internal/handler"
	"github.com/hitoshi/hydrate/internal/intake"
	"github.com/hitoshi/hydrate/internal/logger"
	"github.com/hitoshi/hydrate/internal/metrics"
	"github.com/hitoshi/hydrate/internal/middleware"
	"github.com/hitoshi/hydrate/internal/notify"
	"github.com/hitoshi/hydrate/internal/profile"
	"github.com/hitoshi/hydrate/internal/reminder"
	"github.com/hitoshi/hydrate/internal/repository"
	"github.com/hitoshi/hydrate/internal/security"
	"github.com/hitoshi/hydrate/internal/settings"
	"github.com/hitoshi/hydrate/internal/user"
	"github.com/hitoshi/hydrate/internal/worker/cleanup"
	"github.com/hitoshi/hydrate/internal/worker/dispatch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// dbPingTimeout は起動時のDB疎通確認の待ち時間の上限。
	dbPingTimeout = 5 * time.Second
	// shutdownTimeout はグレースフルシャットダウンの待ち時間の上限。
	shutdownTimeout = 30 * time.Second
	// cleanupInterval はクリーンアップジョブの実行間隔。
	cleanupInterval = 24 * time.Hour
	// expoHTTPTimeout はExpo送信APIへのリクエストタイムアウト。
	expoHTTPTimeout = 10 * time.Second
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

	// .envで指定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

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
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	// migrateの引数は接続前に検証する
	var migration MigrateArgs
	if cmd == CommandMigrate {
		var err error
		migration, err = ParseMigrateArgs(args[1:])
		if err != nil {
			return err
		}
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, migration)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// WebSocketハブは同じプロセスにしかいないため、リアルタイム配信を担う
// 配信ワーカーもこのプロセス内で動かす。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log := slog.Default()

	// 2. メトリクスとリアルタイムハブ
	registry := newRegistry()
	collector := metrics.NewCollector(registry)
	hub := notify.NewHub(log, collector, cfg.CORSAllowedOrigin)
	defer hub.Close()

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	deviceRepo := repository.NewPostgresDeviceRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	goalRepo := repository.NewPostgresGoalRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)
	intakeRepo := repository.NewPostgresIntakeRepo(db)
	reminderRepo := repository.NewPostgresReminderRepo(db)

	// 4. ドメインサービスの初期化
	days := profile.NewDayResolver(profileRepo, goalRepo)
	reminderService := reminder.NewService(
		days, intakeRepo, settingsRepo, deviceRepo, reminderRepo,
		hub, collector, log,
	)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(userRepo, deviceRepo, tokens, reminderService, log)
	profileService := profile.NewService(profileRepo, goalRepo, days, reminderService, log)
	settingsService := settings.NewService(settingsRepo, security.NewWebhookGuard(), reminderService, log)
	intakeService := intake.NewService(
		intakeRepo, days, security.NewNoteSanitizer(), reminderService,
		hub, collector, log,
	)
	userService := user.NewService(userRepo, hub, log)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitIntake),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		DeviceService:   authService,
		ProfileService:  profileService,
		SettingsService: settingsService,
		IntakeService:   intakeService,
		ReminderService: reminderService,
		UserService:     userService,
		Realtime:        hub,
	})

	// 6. 配信ワーカーの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := newDispatcher(cfg, db, hub, collector)
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Start(ctx, cfg.DispatchInterval)
	}()

	// 7. HTTPサーバーの起動
	// WebSocketの接続はWriteTimeoutの影響を受けないようハブ側で書き込み期限を管理する
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := serveUntilSignal(server); err != nil {
		return err
	}

	cancel()
	<-dispatchDone

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 配信ワーカーとクリーンアップジョブを動かし、/healthと/metricsだけを公開する。
// このプロセスにはWebSocketハブがないため、リアルタイム配信は行わない。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log := slog.Default()
	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	// 2. ジョブの初期化
	dispatcher := newDispatcher(cfg, db, nil, collector)

	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresReminderRepo(db),
		repository.NewPostgresIntakeRepo(db),
		log,
	)
	cleanupJob.ReminderRetentionDays = cfg.ReminderRetentionDays
	cleanupJob.IntakeRetentionDays = cfg.IntakeRetentionDays

	// 3. 運用エンドポイント
	r := chi.NewRouter()
	r.Get("/health", handler.NewHealthHandler(db, log).Check)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("dispatch_interval", cfg.DispatchInterval),
		slog.Int("max_concurrent", cfg.DispatchMaxConcurrent),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.Start(ctx, cleanupInterval)

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Start(ctx, cfg.DispatchInterval)
	}()

	if err := serveUntilSignal(server); err != nil {
		return err
	}

	cancel()
	<-dispatchDone

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, args MigrateArgs) error {
	slog.Info("running database migrations",
		slog.String("action", string(args.Action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch args.Action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, args.Steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", args.Steps))
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(url string) error {
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

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connection established")
	return db, nil
}

// newRegistry はGoランタイムとプロセスの標準メトリクスを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// newDispatcher は設定から配信ワーカーを組み立てる。publisherがnilの場合はリアルタイム配信を行わない。
func newDispatcher(cfg *config.Config, db *sql.DB, publisher dispatch.EventPublisher, collector *metrics.Collector) *dispatch.Dispatcher {
	log := slog.Default()
	expo := notify.NewExpoClient(&http.Client{Timeout: expoHTTPTimeout}, log, notify.ExpoConfig{
		Endpoint:      cfg.ExpoPushEndpoint,
		AccessToken:   cfg.ExpoAccessToken,
		RatePerSecond: cfg.ExpoRatePerSecond,
	})
	webhook := notify.NewWebhookSender(security.NewWebhookGuard().NewSafeClient(cfg.WebhookTimeout), log)

	return dispatch.NewDispatcher(
		repository.NewPostgresReminderRepo(db),
		repository.NewPostgresDeviceRepo(db),
		repository.NewPostgresSettingsRepo(db),
		expo, webhook, publisher, collector, log,
		dispatch.Config{
			BatchSize:      cfg.DispatchBatchSize,
			MaxConcurrency: cfg.DispatchMaxConcurrent,
			MaxAttempts:    cfg.DeliveryMaxAttempts,
		},
	)
}

// serveUntilSignal はサーバーを起動し、SIGINTまたはSIGTERMを受信したらシャットダウンする。
// 起動に失敗した場合はシグナルを待たずにエラーを返す。
func serveUntilSignal(server *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}

	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://***@" + u.Host + u.Path
}
