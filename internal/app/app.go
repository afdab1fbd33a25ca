// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hitoshi/newsportal/internal/cache"
	"github.com/hitoshi/newsportal/internal/category"
	"github.com/hitoshi/newsportal/internal/config"
	"github.com/hitoshi/newsportal/internal/database"
	"github.com/hitoshi/newsportal/internal/feed"
	"github.com/hitoshi/newsportal/internal/fetcher"
	"github.com/hitoshi/newsportal/internal/handler"
	"github.com/hitoshi/newsportal/internal/image"
	"github.com/hitoshi/newsportal/internal/logger"
	"github.com/hitoshi/newsportal/internal/metrics"
	"github.com/hitoshi/newsportal/internal/middleware"
	"github.com/hitoshi/newsportal/internal/news"
	"github.com/hitoshi/newsportal/internal/repository"
	"github.com/hitoshi/newsportal/internal/scrape"
	"github.com/hitoshi/newsportal/internal/security"
	"github.com/hitoshi/newsportal/internal/source"
	fetchpkg "github.com/hitoshi/newsportal/internal/worker/fetch"
	"github.com/hitoshi/newsportal/internal/worker/viewcount"
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// deps はserve/workerモードで共有する依存関係の束。
type deps struct {
	db          *sql.DB
	mongoClient *mongo.Client
	cacheSvc    *cache.RedisCache

	articleRepo  repository.ArticleRepository
	sourceRepo   repository.SourceRepository
	categoryRepo repository.CategoryRepository

	imageStore  *image.GridFSStore
	collector   *metrics.Collector
	viewWorker  *viewcount.Worker
	newsService *news.Service
	sourceSvc   *source.Service
	categorySvc *category.Service
	scheduler   *fetchpkg.Scheduler
}

// buildDeps は全依存関係をワイヤリングする。
func buildDeps(cfg *config.Config) (*deps, error) {
	// 1. PostgreSQL接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	slog.Info("database connection established")

	// 2. Redis接続
	cacheSvc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("redis connection established")

	// 3. MongoDB接続（GridFS画像ストア用）
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		cacheSvc.Close()
		db.Close()
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		cacheSvc.Close()
		db.Close()
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	slog.Info("mongodb connection established")

	// 4. リポジトリの初期化
	articleRepo := repository.NewPostgresArticleRepo(db)
	sourceRepo := repository.NewPostgresSourceRepo(db)
	categoryRepo := repository.NewPostgresCategoryRepo(db)

	// 5. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 6. メトリクスの初期化（画像ストアとワーカーが参照する）
	collector := metrics.NewCollector()

	// 7. 画像ストアとワーカーの初期化
	imageStore, err := image.NewGridFSStore(
		mongoClient.Database(cfg.MongoDatabase),
		ssrfGuard,
		cfg.FetchTimeout, cfg.ImageMaxSize, cfg.UserAgent,
		cfg.ThumbnailWidth, cfg.ThumbnailHeight,
		collector,
	)
	if err != nil {
		cacheSvc.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create image store: %w", err)
	}

	viewWorker := viewcount.NewWorker(articleRepo, cfg.ViewCountQueueSize, collector)

	// 8. ドメインサービスの初期化
	newsService := news.NewService(
		articleRepo, sourceRepo, categoryRepo,
		sanitizer, imageStore, cacheSvc, viewWorker,
	)
	sourceSvc := source.NewService(sourceRepo, articleRepo, cacheSvc)
	categorySvc := category.NewService(categoryRepo, articleRepo, cacheSvc)

	// 9. フェッチスタックの初期化
	extractor := scrape.NewExtractor(ssrfGuard, cfg.FetchTimeout, cfg.FetchMaxSize, cfg.UserAgent)
	feedParser := feed.NewParser(ssrfGuard, cfg.FetchTimeout, cfg.FetchMaxSize, cfg.UserAgent)
	dispatcher := fetcher.NewDispatcher(
		fetcher.NewFeedFetcher(feedParser),
		fetcher.NewAPIFetcher(),
		fetcher.NewScrapeFetcher(extractor, cfg.ScrapeMaxArticles),
	)
	scheduler := fetchpkg.NewScheduler(sourceRepo, dispatcher, newsService, sourceSvc, collector)

	return &deps{
		db:           db,
		mongoClient:  mongoClient,
		cacheSvc:     cacheSvc,
		articleRepo:  articleRepo,
		sourceRepo:   sourceRepo,
		categoryRepo: categoryRepo,
		imageStore:   imageStore,
		collector:    collector,
		viewWorker:   viewWorker,
		newsService:  newsService,
		sourceSvc:    sourceSvc,
		categorySvc:  categorySvc,
		scheduler:    scheduler,
	}, nil
}

// close は依存関係の接続をすべて閉じる。
func (d *deps) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.mongoClient.Disconnect(ctx); err != nil {
		slog.Warn("mongodb disconnect failed", slog.String("error", err.Error()))
	}
	if err := d.cacheSvc.Close(); err != nil {
		slog.Warn("redis close failed", slog.String("error", err.Error()))
	}
	if err := d.db.Close(); err != nil {
		slog.Warn("database close failed", slog.String("error", err.Error()))
	}
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーと閲覧数ワーカーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	// 閲覧数ワーカーをバックグラウンドで起動
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go d.viewWorker.Start(workerCtx)

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Collector:         d.collector,

		NewsService:     d.newsService,
		CategoryService: d.categorySvc,
		SourceService:   d.sourceSvc,
		ImageStore:      d.imageStore,
		FetchTrigger:    d.scheduler,
		Cache:           d.cacheSvc,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// フェッチスケジューラと閲覧数ワーカーを起動し、メトリクスを公開する
// 軽量HTTPサーバーを立てる。SIGINTまたはSIGTERMシグナルを受信すると
// シャットダウンする。
func runWorker(cfg *config.Config) error {
	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 閲覧数ワーカーをバックグラウンドで起動
	go d.viewWorker.Start(ctx)

	// メトリクスとヘルスチェック用の軽量HTTPサーバー
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: mux,
	}
	go func() {
		slog.Info("worker metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting", slog.Duration("fetch_interval", cfg.FetchInterval))

	// フェッチスケジューラをメインgoroutineで実行（ブロッキング）
	d.scheduler.Start(ctx, cfg.FetchInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
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
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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
